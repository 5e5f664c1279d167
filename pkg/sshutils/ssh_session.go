package sshutils

import (
	"io"

	"golang.org/x/crypto/ssh"
)

// SSHSessioner covers what an interactive shell needs from an SSH session.
type SSHSessioner interface {
	RequestPty(term string, h, w int, termmodes ssh.TerminalModes) error
	StdinPipe() (io.WriteCloser, error)
	StdoutPipe() (io.Reader, error)
	Shell() error
	Close() error
}

type SSHSessionWrapper struct {
	Session *ssh.Session
}

func (s *SSHSessionWrapper) RequestPty(term string, h, w int, termmodes ssh.TerminalModes) error {
	return s.Session.RequestPty(term, h, w, termmodes)
}

func (s *SSHSessionWrapper) StdinPipe() (io.WriteCloser, error) {
	return s.Session.StdinPipe()
}

func (s *SSHSessionWrapper) StdoutPipe() (io.Reader, error) {
	return s.Session.StdoutPipe()
}

func (s *SSHSessionWrapper) Shell() error {
	return s.Session.Shell()
}

func (s *SSHSessionWrapper) Close() error {
	return s.Session.Close()
}

var _ SSHSessioner = &SSHSessionWrapper{}
