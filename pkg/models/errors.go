package models

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a device could not be brought to a usable session.
type FailureKind int

const (
	FailureUnknown FailureKind = iota
	FailureAuthentication
	FailureProtocol
	FailureNetwork
	FailureHostnameDiscovery
)

func (k FailureKind) String() string {
	switch k {
	case FailureAuthentication:
		return "AuthenticationFailed"
	case FailureProtocol:
		return "ProtocolError"
	case FailureNetwork:
		return "NetworkError"
	case FailureHostnameDiscovery:
		return "HostnameDiscoveryFailed"
	default:
		return "Unknown"
	}
}

var (
	ErrCommandTimedOut = errors.New("command timed out")
	ErrCommandBlocked  = errors.New("command blocked by safety filter")
	ErrSessionClosed   = errors.New("session is closed")
)

// ConnectionError is returned by the bootstrapper for every failure before a session is usable.
type ConnectionError struct {
	Kind FailureKind
	Host string
	Err  error
}

func NewConnectionError(kind FailureKind, host string, err error) *ConnectionError {
	return &ConnectionError{Kind: kind, Host: host, Err: err}
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connecting to %s: %v", e.Kind, e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// FailureKindOf extracts the kind from a wrapped ConnectionError, or FailureUnknown.
func FailureKindOf(err error) FailureKind {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.Kind
	}
	return FailureUnknown
}
