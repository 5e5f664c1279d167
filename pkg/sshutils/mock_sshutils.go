package sshutils

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/ssh"
)

// MockSSHDialer is a mock implementation of SSHDialer
type MockSSHDialer struct {
	mock.Mock
}

func NewMockSSHDialer() *MockSSHDialer {
	return &MockSSHDialer{}
}

func (m *MockSSHDialer) Dial(
	ctx context.Context,
	network, addr string,
	config *ssh.ClientConfig,
) (SSHClienter, error) {
	args := m.Called(ctx, network, addr, config)
	if args.Get(1) != nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(SSHClienter), nil
}

type MockSSHClient struct {
	mock.Mock
}

func (m *MockSSHClient) NewSession() (SSHSessioner, error) {
	args := m.Called()
	if args.Get(1) != nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(SSHSessioner), nil
}

func (m *MockSSHClient) NewSFTPClient() (SFTPClienter, error) {
	args := m.Called()
	if args.Get(1) != nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(SFTPClienter), nil
}

func (m *MockSSHClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockSSHSession struct {
	mock.Mock
}

func NewMockSSHSession() *MockSSHSession {
	return &MockSSHSession{}
}

func (m *MockSSHSession) RequestPty(term string, h, w int, termmodes ssh.TerminalModes) error {
	args := m.Called(term, h, w, termmodes)
	return args.Error(0)
}

func (m *MockSSHSession) StdinPipe() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(1) != nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), nil
}

func (m *MockSSHSession) StdoutPipe() (io.Reader, error) {
	args := m.Called()
	if args.Get(1) != nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.Reader), nil
}

func (m *MockSSHSession) Shell() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSSHSession) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockSFTPClient struct {
	mock.Mock
}

func (m *MockSFTPClient) Open(path string) (io.ReadCloser, error) {
	args := m.Called(path)
	if args.Get(1) != nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), nil
}

func (m *MockSFTPClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

var (
	_ SSHDialer    = &MockSSHDialer{}
	_ SSHClienter  = &MockSSHClient{}
	_ SSHSessioner = &MockSSHSession{}
	_ SFTPClienter = &MockSFTPClient{}
)
