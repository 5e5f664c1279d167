// Package inventory loads device and command lists.
package inventory

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/offalexp/ceSSHar/pkg/models"
)

// ReadLines returns the whitespace-trimmed, non-blank lines of path.
func ReadLines(path string) ([]string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", expanded, err)
	}
	defer f.Close()

	lines, err := ParseLines(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", expanded, err)
	}
	return lines, nil
}

func ParseLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// Device is one entry of a YAML port inventory.
type Device struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port,omitempty"`
	Username       string   `yaml:"username,omitempty"`
	Password       string   `yaml:"password,omitempty"`
	Enable         bool     `yaml:"enable,omitempty"`
	EnablePassword string   `yaml:"enable_password,omitempty"`
	Interfaces     []string `yaml:"interfaces"`
}

type Inventory struct {
	Devices []Device `yaml:"devices"`
}

// Target builds the connection target for d, taking credentials from defaults where d has none.
func (d Device) Target(defaults models.Credentials) models.DeviceTarget {
	creds := models.Credentials{Username: d.Username, Password: d.Password}
	if creds.Username == "" {
		creds.Username = defaults.Username
	}
	if creds.Password == "" {
		creds.Password = defaults.Password
	}
	return models.DeviceTarget{
		Host:           d.Host,
		Port:           d.Port,
		Credentials:    creds,
		Enable:         d.Enable,
		EnablePassword: d.EnablePassword,
	}
}

func LoadInventory(path string) (*Inventory, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}
	return ParseInventory(data)
}

func ParseInventory(data []byte) (*Inventory, error) {
	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("failed to parse inventory: %w", err)
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (inv *Inventory) Validate() error {
	if len(inv.Devices) == 0 {
		return fmt.Errorf("inventory lists no devices")
	}
	for i, d := range inv.Devices {
		if strings.TrimSpace(d.Host) == "" {
			return fmt.Errorf("device %d has no host", i+1)
		}
		if d.Port < 0 || d.Port > 65535 {
			return fmt.Errorf("device %s has invalid port %d", d.Host, d.Port)
		}
		if len(d.Interfaces) == 0 {
			return fmt.Errorf("device %s lists no interfaces", d.Host)
		}
	}
	return nil
}
