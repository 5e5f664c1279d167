package sshutils

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

type SSHDialer interface {
	Dial(ctx context.Context, network, addr string, config *ssh.ClientConfig) (SSHClienter, error)
}

// SSHDialerFunc builds the dialer used by NewSSHConfig. Tests swap it for a mock.
var SSHDialerFunc = NewSSHDial

func NewSSHDial() SSHDialer {
	return &SSHDial{}
}

// SSHDial dials TCP with the context and bounds the SSH handshake by config.Timeout.
type SSHDial struct{}

func (d *SSHDial) Dial(
	ctx context.Context,
	network, addr string,
	config *ssh.ClientConfig,
) (SSHClienter, error) {
	dialer := &net.Dialer{Timeout: config.Timeout}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	if config.Timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(config.Timeout)); err != nil {
			conn.Close()
			return nil, err
		}
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		sshConn.Close()
		return nil, fmt.Errorf("failed to clear handshake deadline: %w", err)
	}
	return &SSHClientWrapper{Client: ssh.NewClient(sshConn, chans, reqs)}, nil
}
