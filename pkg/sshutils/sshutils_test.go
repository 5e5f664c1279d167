package sshutils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/offalexp/ceSSHar/pkg/logger"
	"github.com/offalexp/ceSSHar/pkg/models"
)

func testTarget() models.DeviceTarget {
	return models.DeviceTarget{
		Host:           "10.0.0.1",
		Credentials:    models.Credentials{Username: "admin", Password: "cisco"},
		ConnectTimeout: 3 * time.Second,
	}
}

func newTestConfig(t *testing.T, dialer SSHDialer) *SSHConfig {
	config, err := NewSSHConfig(testTarget())
	require.NoError(t, err)
	config.SSHDialer = dialer
	config.RetryInterval = time.Millisecond
	config.Logger = logger.NewTestLogger(t).Logger
	return config
}

func TestNewSSHConfig(t *testing.T) {
	config, err := NewSSHConfig(testTarget())
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1:22", config.Address)
	assert.Equal(t, "admin", config.User)
	assert.Equal(t, 3*time.Second, config.Timeout)
	assert.Equal(t, SSHRetryAttempts, config.Retries)
	assert.Equal(t, "admin", config.ClientConfig.User)
	assert.Len(t, config.ClientConfig.Auth, 2)
	assert.Contains(t, config.ClientConfig.Ciphers, "aes128-cbc")
	assert.Contains(t, config.ClientConfig.KeyExchanges, "diffie-hellman-group1-sha1")
	assert.IsType(t, &SSHDial{}, config.SSHDialer)
}

func TestNewSSHConfigRejectsInvalidTarget(t *testing.T) {
	target := testTarget()
	target.Credentials.Username = ""
	_, err := NewSSHConfig(target)
	assert.Error(t, err)
}

func TestNewSSHConfigDefaultsTimeout(t *testing.T) {
	target := testTarget()
	target.ConnectTimeout = 0
	config, err := NewSSHConfig(target)
	require.NoError(t, err)
	assert.Equal(t, SSHDialTimeout, config.Timeout)
}

func TestConnect(t *testing.T) {
	mockDialer := NewMockSSHDialer()
	mockClient := &MockSSHClient{}
	mockDialer.On("Dial", mock.Anything, "tcp", "10.0.0.1:22", mock.AnythingOfType("*ssh.ClientConfig")).
		Return(mockClient, nil)

	client, err := newTestConfig(t, mockDialer).Connect(context.Background())
	require.NoError(t, err)
	assert.Same(t, mockClient, client)
	mockDialer.AssertExpectations(t)
}

func TestConnectDoesNotRetryAuthenticationFailure(t *testing.T) {
	mockDialer := NewMockSSHDialer()
	authErr := errors.New(
		"ssh: handshake failed: ssh: unable to authenticate, attempted methods [none password], no supported methods remain",
	)
	mockDialer.On("Dial", mock.Anything, "tcp", "10.0.0.1:22", mock.Anything).Return(nil, authErr).Once()

	config := newTestConfig(t, mockDialer)
	config.Retries = 3
	_, err := config.Connect(context.Background())
	require.Error(t, err)

	assert.Equal(t, models.FailureAuthentication, models.FailureKindOf(err))
	assert.ErrorIs(t, err, authErr)
	mockDialer.AssertNumberOfCalls(t, "Dial", 1)
}

func TestConnectRetriesNetworkFailure(t *testing.T) {
	mockDialer := NewMockSSHDialer()
	mockClient := &MockSSHClient{}
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	mockDialer.On("Dial", mock.Anything, "tcp", "10.0.0.1:22", mock.Anything).Return(nil, refused).Once()
	mockDialer.On("Dial", mock.Anything, "tcp", "10.0.0.1:22", mock.Anything).Return(mockClient, nil).Once()

	config := newTestConfig(t, mockDialer)
	config.Retries = 2
	client, err := config.Connect(context.Background())
	require.NoError(t, err)
	assert.Same(t, mockClient, client)
	mockDialer.AssertNumberOfCalls(t, "Dial", 2)
}

func TestConnectGivesUpAfterRetries(t *testing.T) {
	mockDialer := NewMockSSHDialer()
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	mockDialer.On("Dial", mock.Anything, "tcp", "10.0.0.1:22", mock.Anything).Return(nil, refused)

	config := newTestConfig(t, mockDialer)
	config.Retries = 2
	_, err := config.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.FailureNetwork, models.FailureKindOf(err))
	assert.Contains(t, err.Error(), "failed to connect after 3 attempts")
	mockDialer.AssertNumberOfCalls(t, "Dial", 3)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.FailureKind
	}{
		{"nil", nil, models.FailureUnknown},
		{"auth", errors.New("ssh: handshake failed: ssh: unable to authenticate"), models.FailureAuthentication},
		{"net op", &net.OpError{Op: "dial", Err: errors.New("no route to host")}, models.FailureNetwork},
		{"eof", fmt.Errorf("ssh: handshake failed: %w", io.EOF), models.FailureNetwork},
		{"timeout", context.DeadlineExceeded, models.FailureNetwork},
		{"kex", errors.New("ssh: handshake failed: ssh: no common algorithm for key exchange"), models.FailureProtocol},
		{"other", errors.New("boom"), models.FailureUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestKeyboardInteractiveAnswersWithPassword(t *testing.T) {
	config := NewClientConfig(models.Credentials{Username: "u", Password: "p"}, time.Second)
	assert.Equal(t, time.Second, config.Timeout)
	assert.NotNil(t, config.HostKeyCallback)
	assert.Equal(t, SupportedHostKeyAlgorithms, config.HostKeyAlgorithms)
}

type pipeCloser struct {
	io.Writer
	closed bool
}

func (p *pipeCloser) Close() error {
	p.closed = true
	return nil
}

func TestShellChannelDeliversDataInChunks(t *testing.T) {
	remoteOut, deviceWrites := io.Pipe()
	var sent strings.Builder
	stdin := &pipeCloser{Writer: &sent}
	ch := NewShellChannel(stdin, remoteOut, nil)
	defer ch.Close()

	require.NoError(t, ch.Send("show clock\n"))
	assert.Equal(t, "show clock\n", sent.String())
	assert.False(t, ch.RecvReady())

	go func() {
		_, _ = deviceWrites.Write([]byte("*10:00:00.000 UTC Mon Mar 1 1993\r\nsw1#"))
	}()
	require.True(t, ch.WaitReady(context.Background(), 2*time.Second))

	var got strings.Builder
	deadline := time.Now().Add(2 * time.Second)
	for !strings.HasSuffix(got.String(), "sw1#") && time.Now().Before(deadline) {
		ch.WaitReady(context.Background(), 50*time.Millisecond)
		data, err := ch.Recv(8)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(data), 8)
		got.Write(data)
	}
	assert.Equal(t, "*10:00:00.000 UTC Mon Mar 1 1993\r\nsw1#", got.String())
}

func TestShellChannelReportsEndOfStream(t *testing.T) {
	remoteOut, deviceWrites := io.Pipe()
	ch := NewShellChannel(&pipeCloser{Writer: io.Discard}, remoteOut, nil)

	go func() {
		_, _ = deviceWrites.Write([]byte("bye"))
		_ = deviceWrites.Close()
	}()

	var got []byte
	for {
		require.True(t, ch.WaitReady(context.Background(), 2*time.Second))
		data, err := ch.Recv(ReadChunkSize)
		if err != nil {
			assert.ErrorIs(t, err, io.EOF)
			break
		}
		got = append(got, data...)
	}
	assert.Equal(t, "bye", string(got))
}

func TestShellChannelWaitReadyTimesOutAndCancels(t *testing.T) {
	remoteOut, _ := io.Pipe()
	ch := NewShellChannel(&pipeCloser{Writer: io.Discard}, remoteOut, nil)

	start := time.Now()
	assert.False(t, ch.WaitReady(context.Background(), 30*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, ch.WaitReady(ctx, time.Minute))
}

func TestShellChannelCloseIsIdempotent(t *testing.T) {
	remoteOut, _ := io.Pipe()
	stdin := &pipeCloser{Writer: io.Discard}
	session := NewMockSSHSession()
	session.On("Close").Return(nil).Once()

	ch := NewShellChannel(stdin, remoteOut, session)
	assert.NoError(t, ch.Close())
	assert.NoError(t, ch.Close())
	assert.True(t, stdin.closed)
	session.AssertExpectations(t)
}

func TestOpenShell(t *testing.T) {
	remoteOut, _ := io.Pipe()
	stdin := &pipeCloser{Writer: io.Discard}
	session := NewMockSSHSession()
	session.On("RequestPty", TerminalType, PtyHeight, PtyWidth, mock.AnythingOfType("ssh.TerminalModes")).Return(nil)
	session.On("StdinPipe").Return(stdin, nil)
	session.On("StdoutPipe").Return(remoteOut, nil)
	session.On("Shell").Return(nil)
	session.On("Close").Return(nil)

	client := &MockSSHClient{}
	client.On("NewSession").Return(session, nil)

	ch, err := OpenShell(client)
	require.NoError(t, err)
	require.NoError(t, ch.Close())
	session.AssertExpectations(t)
}

func TestOpenShellClosesSessionOnPtyFailure(t *testing.T) {
	session := NewMockSSHSession()
	session.On("RequestPty", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("pty refused"))
	session.On("Close").Return(nil).Once()

	client := &MockSSHClient{}
	client.On("NewSession").Return(session, nil)

	_, err := OpenShell(client)
	assert.ErrorContains(t, err, "failed to request pty")
	session.AssertExpectations(t)
}

func TestFetchFile(t *testing.T) {
	sftpClient := &MockSFTPClient{}
	sftpClient.On("Open", "flash:/config.text").
		Return(io.NopCloser(strings.NewReader("hostname core-sw1\n")), nil)
	sftpClient.On("Close").Return(nil)

	client := &MockSSHClient{}
	client.On("NewSFTPClient").Return(sftpClient, nil)

	var out strings.Builder
	n, err := FetchFile(client, "flash:/config.text", &out)
	require.NoError(t, err)
	assert.Equal(t, int64(len("hostname core-sw1\n")), n)
	assert.Equal(t, "hostname core-sw1\n", out.String())
	sftpClient.AssertExpectations(t)
}

func TestFetchFileOpenError(t *testing.T) {
	sftpClient := &MockSFTPClient{}
	sftpClient.On("Open", "missing").Return(nil, errors.New("file does not exist"))
	sftpClient.On("Close").Return(nil)

	client := &MockSSHClient{}
	client.On("NewSFTPClient").Return(sftpClient, nil)

	_, err := FetchFile(client, "missing", io.Discard)
	assert.ErrorContains(t, err, "failed to open remote file missing")
}
