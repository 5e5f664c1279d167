package sshutils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/crypto/ssh"

	"github.com/offalexp/ceSSHar/pkg/logger"
	"github.com/offalexp/ceSSHar/pkg/models"
)

// SSHConfig holds everything needed to dial and authenticate one device.
type SSHConfig struct {
	Host          string
	Address       string
	User          string
	Timeout       time.Duration
	Retries       int
	RetryInterval time.Duration
	ClientConfig  *ssh.ClientConfig
	SSHDialer     SSHDialer
	Logger        *logger.Logger
}

// NewSSHConfigFunc is the function used to create new SSH configurations
// This can be overridden for testing
var NewSSHConfigFunc = NewSSHConfig

func NewSSHConfig(target models.DeviceTarget) (*SSHConfig, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	timeout := target.ConnectTimeout
	if timeout <= 0 {
		timeout = SSHDialTimeout
	}
	return &SSHConfig{
		Host:          target.Host,
		Address:       target.Address(),
		User:          target.Credentials.Username,
		Timeout:       timeout,
		Retries:       SSHRetryAttempts,
		RetryInterval: TimeInBetweenSSHRetries,
		ClientConfig:  NewClientConfig(target.Credentials, timeout),
		SSHDialer:     SSHDialerFunc(),
		Logger:        logger.Get(),
	}, nil
}

// NewClientConfig offers password and keyboard-interactive auth with the same secret. Host keys are
// not verified; network gear is commonly re-keyed on upgrade.
func NewClientConfig(creds models.Credentials, timeout time.Duration) *ssh.ClientConfig {
	password := creds.Password
	return &ssh.ClientConfig{
		User: creds.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(
				func(_, _ string, questions []string, _ []bool) ([]string, error) {
					answers := make([]string, len(questions))
					for i := range answers {
						answers[i] = password
					}
					return answers, nil
				},
			),
		},
		HostKeyCallback:   ssh.InsecureIgnoreHostKey(), //nolint:gosec
		HostKeyAlgorithms: SupportedHostKeyAlgorithms,
		Timeout:           timeout,
		Config: ssh.Config{
			Ciphers:      SupportedCiphers,
			KeyExchanges: SupportedKeyExchanges,
		},
	}
}

// Connect dials the device. Network failures are retried with exponential backoff up to Retries
// extra attempts; authentication and protocol failures are returned at once. Every error is a
// *models.ConnectionError.
func (c *SSHConfig) Connect(ctx context.Context) (SSHClienter, error) {
	l := c.Logger
	if l == nil {
		l = logger.Get()
	}
	l.Infof("Connecting to SSH server: %s as %s", c.Address, c.User)

	attempt := 0
	operation := func() (SSHClienter, error) {
		attempt++
		l.Debugf("Attempt %d to connect via SSH to %s", attempt, c.Address)
		client, err := c.SSHDialer.Dial(ctx, "tcp", c.Address, c.ClientConfig)
		if err == nil {
			return client, nil
		}
		kind := ClassifyError(err)
		connErr := models.NewConnectionError(kind, c.Host, err)
		if kind != models.FailureNetwork {
			return nil, backoff.Permanent(connErr)
		}
		l.Debugf("Failed to connect to %s: %v", c.Address, err)
		return nil, connErr
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.RetryInterval
	b.MaxInterval = SSHMaxRetryInterval
	b.MaxElapsedTime = 0
	retries := c.Retries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)

	client, err := backoff.RetryWithData[SSHClienter](operation, policy)
	if err != nil {
		var connErr *models.ConnectionError
		if !errors.As(err, &connErr) {
			err = models.NewConnectionError(ClassifyError(err), c.Host, err)
		}
		return nil, fmt.Errorf("failed to connect after %d attempts: %w", attempt, err)
	}
	l.Debugf("SSH connection to %s established", c.Address)
	return client, nil
}

// ClassifyError maps an error from the dial and handshake path onto the connection failure kinds.
func ClassifyError(err error) models.FailureKind {
	if err == nil {
		return models.FailureUnknown
	}
	msg := err.Error()
	var netErr net.Error
	switch {
	case strings.Contains(msg, "unable to authenticate"),
		strings.Contains(msg, "no supported methods remain"):
		return models.FailureAuthentication
	case errors.As(err, &netErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, context.DeadlineExceeded),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "connection refused"):
		return models.FailureNetwork
	case strings.HasPrefix(msg, "ssh:"),
		strings.Contains(msg, "handshake failed"):
		return models.FailureProtocol
	default:
		return models.FailureUnknown
	}
}
