// Package session drives interactive shells on IOS-style devices: connecting and bootstrapping a
// session, then running commands against it until the prompt returns.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/offalexp/ceSSHar/pkg/models"
	"github.com/offalexp/ceSSHar/pkg/prompt"
	"github.com/offalexp/ceSSHar/pkg/sshutils"
)

// Session is a bootstrapped shell bound to one device and its discovered hostname. It must be used
// by one goroutine at a time and cannot be reused after Close.
type Session struct {
	target   models.DeviceTarget
	client   sshutils.SSHClienter
	channel  sshutils.SSHChanneler
	hostname string
	matcher  *prompt.Matcher
	runner   *Runner

	mu     sync.Mutex
	closed bool
}

func (s *Session) Hostname() string {
	return s.hostname
}

func (s *Session) Matcher() *prompt.Matcher {
	return s.matcher
}

func (s *Session) Target() models.DeviceTarget {
	return s.target
}

// Client exposes the SSH connection for side channels such as SFTP.
func (s *Session) Client() sshutils.SSHClienter {
	return s.client
}

func (s *Session) Run(
	ctx context.Context,
	command string,
	bailTimeout time.Duration,
) (models.CommandResult, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return models.CommandResult{Command: command, Status: models.CommandInterrupted}, models.ErrSessionClosed
	}
	return s.runner.Run(ctx, s.channel, command, s.matcher, bailTimeout)
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	if s.channel != nil {
		errs = append(errs, s.channel.Close())
	}
	if s.client != nil {
		errs = append(errs, s.client.Close())
	}
	return errors.Join(errs...)
}
