package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offalexp/ceSSHar/pkg/logger"
	"github.com/offalexp/ceSSHar/pkg/models"
	"github.com/offalexp/ceSSHar/pkg/prompt"
	"github.com/offalexp/ceSSHar/pkg/sshutils"
)

// scriptedChannel replies to each sent line with a canned response.
type scriptedChannel struct {
	mu      sync.Mutex
	sent    []string
	pending []byte
	err     error
	sendErr error
	replies map[string]string
	closed  bool
}

func newScriptedChannel(replies map[string]string) *scriptedChannel {
	return &scriptedChannel{replies: replies}
}

func (c *scriptedChannel) Send(data string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, data)
	c.pending = append(c.pending, c.replies[strings.TrimSuffix(data, "\n")]...)
	return nil
}

func (c *scriptedChannel) deliverAfter(d time.Duration, data string, err error) {
	go func() {
		time.Sleep(d)
		c.mu.Lock()
		defer c.mu.Unlock()
		c.pending = append(c.pending, data...)
		c.err = err
	}()
}

func (c *scriptedChannel) RecvReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) > 0 || c.err != nil
}

func (c *scriptedChannel) Recv(n int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil, c.err
	}
	n = min(n, len(c.pending))
	out := append([]byte{}, c.pending[:n]...)
	c.pending = c.pending[n:]
	return out, nil
}

func (c *scriptedChannel) WaitReady(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.RecvReady() {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	return c.RecvReady()
}

func (c *scriptedChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *scriptedChannel) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.sent...)
}

var _ sshutils.SSHChanneler = &scriptedChannel{}

func testRunner(t *testing.T) (*Runner, *logger.TestLogger) {
	tl := logger.NewTestLogger(t)
	r := NewRunner()
	r.PollInterval = 10 * time.Millisecond
	r.Logger = tl.Logger
	return r, tl
}

func coreMatcher(t *testing.T) *prompt.Matcher {
	m, err := prompt.NewMatcher("core-sw1")
	require.NoError(t, err)
	return m
}

func TestRunReturnsAtPrompt(t *testing.T) {
	reply := "show version\r\nCisco IOS Software, C2960 Software\r\ncore-sw1#"
	ch := newScriptedChannel(map[string]string{"show version": reply})
	r, _ := testRunner(t)

	bail := 5 * time.Second
	result, err := r.Run(context.Background(), ch, "show version", coreMatcher(t), bail)
	require.NoError(t, err)

	assert.Equal(t, models.CommandDone, result.Status)
	assert.Equal(t, reply, result.Output)
	assert.Less(t, result.Elapsed, bail)
	assert.Equal(t, []string{"show version\n"}, ch.Sent(), "command is written exactly once")
}

func TestRunAccumulatesAcrossSmallChunks(t *testing.T) {
	reply := "show interfaces status\r\n" + strings.Repeat("Gi1/0/1 connected 1 a-full a-1000\r\n", 40) + "core-sw1#"
	ch := newScriptedChannel(map[string]string{"show interfaces status": reply})
	r, _ := testRunner(t)
	r.ChunkSize = 7

	result, err := r.Run(context.Background(), ch, "show interfaces status", coreMatcher(t), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, reply, result.Output)
}

func TestRunWaitsForDelayedPrompt(t *testing.T) {
	ch := newScriptedChannel(map[string]string{"copy run start": "copy run start\r\nDestination filename [startup-config]? "})
	ch.deliverAfter(50*time.Millisecond, "\r\nBuilding configuration...\r\n[OK]\r\ncore-sw1#", nil)
	r, _ := testRunner(t)

	result, err := r.Run(context.Background(), ch, "copy run start", coreMatcher(t), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, models.CommandDone, result.Status)
	assert.True(t, strings.HasSuffix(result.Output, "[OK]\r\ncore-sw1#"))
}

func TestRunBailsWithoutPrompt(t *testing.T) {
	ch := newScriptedChannel(map[string]string{"show tech": "show tech\r\n------------------ show clock ------------------"})
	r, tl := testRunner(t)

	bail := 150 * time.Millisecond
	result, err := r.Run(context.Background(), ch, "show tech", coreMatcher(t), bail)
	require.NoError(t, err, "a bail is not fatal")

	assert.Equal(t, models.CommandBailed, result.Status)
	assert.GreaterOrEqual(t, result.Elapsed, bail)
	assert.True(t, strings.HasPrefix(result.Output, "show tech\r\n------------------ show clock"))
	assert.True(t, strings.HasSuffix(result.Output, "\ncesshar bailed on command: show tech"))
	assert.True(t, tl.Contains("bailing"))
}

func TestRunIgnoresOtherHostsPrompt(t *testing.T) {
	ch := newScriptedChannel(map[string]string{"show cdp neighbors": "show cdp neighbors\r\ndist-sw2#"})
	r, _ := testRunner(t)

	result, err := r.Run(context.Background(), ch, "show cdp neighbors", coreMatcher(t), 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, models.CommandBailed, result.Status)
}

func TestRunBailsWithEmptyOutput(t *testing.T) {
	ch := newScriptedChannel(nil)
	r, _ := testRunner(t)

	result, err := r.Run(context.Background(), ch, "show clock", coreMatcher(t), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "cesshar bailed on command: show clock", result.Output)
}

func TestRunHonoursCancellation(t *testing.T) {
	ch := newScriptedChannel(map[string]string{"show log": "show log\r\nSyslog logging: enabled"})
	r, _ := testRunner(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()
	result, err := r.Run(ctx, ch, "show log", coreMatcher(t), time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.CommandCancelled, result.Status)
	assert.Contains(t, result.Output, "Syslog logging: enabled")
	assert.Contains(t, result.Output, "bailed on command: show log")
}

func TestRunReportsLostConnection(t *testing.T) {
	ch := newScriptedChannel(map[string]string{"show users": "show users\r\n    Line"})
	ch.deliverAfter(20*time.Millisecond, "", io.EOF)
	r, _ := testRunner(t)

	result, err := r.Run(context.Background(), ch, "show users", coreMatcher(t), time.Minute)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, models.CommandInterrupted, result.Status)
	assert.True(t, strings.HasPrefix(result.Output, "show users\r\n    Line"))
}

func TestRunSendFailure(t *testing.T) {
	ch := newScriptedChannel(nil)
	ch.sendErr = errors.New("broken pipe")
	r, _ := testRunner(t)

	result, err := r.Run(context.Background(), ch, "show ip route", coreMatcher(t), time.Second)
	assert.ErrorContains(t, err, "broken pipe")
	assert.Equal(t, models.CommandInterrupted, result.Status)
}
