package sshutils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHChanneler is an interactive shell as a byte stream: write, probe, bounded read.
type SSHChanneler interface {
	Send(data string) error
	// RecvReady reports whether Recv would return without blocking: data is buffered or the stream
	// has ended.
	RecvReady() bool
	// Recv returns at most n buffered bytes. Once the buffer is drained after the stream ended it
	// returns the terminating error.
	Recv(n int) ([]byte, error)
	// WaitReady blocks until RecvReady, the timeout, or ctx is done.
	WaitReady(ctx context.Context, timeout time.Duration) bool
	Close() error
}

// ShellChannel pumps the remote stdout into a buffer from a single goroutine and signals readers
// through a one-slot notification channel.
type ShellChannel struct {
	stdin  io.WriteCloser
	closer io.Closer

	mu     sync.Mutex
	buf    bytes.Buffer
	err    error
	notify chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func NewShellChannel(stdin io.WriteCloser, stdout io.Reader, closer io.Closer) *ShellChannel {
	c := &ShellChannel{
		stdin:  stdin,
		closer: closer,
		notify: make(chan struct{}, 1),
	}
	go c.pump(stdout)
	return c
}

// OpenShell starts a PTY-backed interactive shell on a fresh session of client.
func OpenShell(client SSHClienter) (*ShellChannel, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, err
	}
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(TerminalType, PtyHeight, PtyWidth, modes); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to request pty: %w", err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := session.Shell(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}
	return NewShellChannel(stdin, stdout, session), nil
}

func (c *ShellChannel) pump(r io.Reader) {
	chunk := make([]byte, ReadChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			c.mu.Lock()
			c.buf.Write(chunk[:n])
			c.mu.Unlock()
			c.signal()
		}
		if err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			c.signal()
			return
		}
	}
}

func (c *ShellChannel) signal() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *ShellChannel) Send(data string) error {
	if _, err := io.WriteString(c.stdin, data); err != nil {
		return fmt.Errorf("failed to write to shell: %w", err)
	}
	return nil
}

func (c *ShellChannel) RecvReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Len() > 0 || c.err != nil
}

func (c *ShellChannel) Recv(n int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf.Len() == 0 {
		return nil, c.err
	}
	out := make([]byte, min(n, c.buf.Len()))
	_, _ = c.buf.Read(out)
	return out, nil
}

func (c *ShellChannel) WaitReady(ctx context.Context, timeout time.Duration) bool {
	if c.RecvReady() {
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-c.notify:
			if c.RecvReady() {
				return true
			}
		case <-timer.C:
			return c.RecvReady()
		case <-ctx.Done():
			return false
		}
	}
}

func (c *ShellChannel) Close() error {
	c.closeOnce.Do(func() {
		_ = c.stdin.Close()
		if c.closer != nil {
			if err := c.closer.Close(); err != nil && !errors.Is(err, io.EOF) {
				c.closeErr = err
			}
		}
	})
	return c.closeErr
}

var _ SSHChanneler = &ShellChannel{}
