package sshutils

import (
	"fmt"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SSHClienter is the part of an SSH client connection the rest of the tool needs.
type SSHClienter interface {
	NewSession() (SSHSessioner, error)
	NewSFTPClient() (SFTPClienter, error)
	Close() error
}

type SSHClientWrapper struct {
	*ssh.Client
}

func (w *SSHClientWrapper) NewSession() (SSHSessioner, error) {
	session, err := w.Client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to open SSH session: %w", err)
	}
	return &SSHSessionWrapper{Session: session}, nil
}

func (w *SSHClientWrapper) NewSFTPClient() (SFTPClienter, error) {
	client, err := sftp.NewClient(w.Client)
	if err != nil {
		return nil, fmt.Errorf("failed to start SFTP subsystem: %w", err)
	}
	return &sftpClientWrapper{Client: client}, nil
}

func (w *SSHClientWrapper) Close() error {
	return w.Client.Close()
}

var _ SSHClienter = &SSHClientWrapper{}
