package models

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

const DefaultSSHPort = 22

// Credentials is a username/password pair used to authenticate against a device.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) IsComplete() bool {
	return c.Username != "" && c.Password != ""
}

// DeviceTarget describes one connection attempt. It is treated as immutable once handed to a
// bootstrapper; the orchestrator builds a fresh value for the backup-credential attempt.
type DeviceTarget struct {
	Host           string
	Port           int
	Credentials    Credentials
	Enable         bool
	EnablePassword string
	ConnectTimeout time.Duration
}

// Address returns host:port, defaulting the port to 22. A port already embedded in Host wins.
func (t DeviceTarget) Address() string {
	if _, _, err := net.SplitHostPort(t.Host); err == nil {
		return t.Host
	}
	port := t.Port
	if port == 0 {
		port = DefaultSSHPort
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

func (t DeviceTarget) Validate() error {
	if t.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if t.Port < 0 || t.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", t.Port)
	}
	if t.Credentials.Username == "" {
		return fmt.Errorf("username cannot be empty for %s", t.Host)
	}
	if t.Enable && t.EnablePassword == "" {
		return fmt.Errorf("enable requested for %s without an enable password", t.Host)
	}
	return nil
}

// WithCredentials returns a copy of the target using another credential pair and enable secret.
func (t DeviceTarget) WithCredentials(creds Credentials, enablePassword string) DeviceTarget {
	t.Credentials = creds
	t.EnablePassword = enablePassword
	return t
}
