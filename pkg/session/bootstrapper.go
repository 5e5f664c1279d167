package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/offalexp/ceSSHar/pkg/logger"
	"github.com/offalexp/ceSSHar/pkg/models"
	"github.com/offalexp/ceSSHar/pkg/prompt"
	"github.com/offalexp/ceSSHar/pkg/sshutils"
)

const (
	EnableCommand        = "enable"
	PagingDisableCommand = "terminal length 0"
	HostnameQueryCommand = "show running-config | include hostname"
)

var (
	DefaultBannerWait    = 2 * time.Second
	DefaultBannerIdle    = 300 * time.Millisecond
	DefaultEnablePause   = 500 * time.Millisecond
	DefaultPromptTimeout = 30 * time.Second

	errPromptTimeout = errors.New("timed out waiting for device output")
)

// DialFunc opens an authenticated SSH connection to target.
type DialFunc func(ctx context.Context, target models.DeviceTarget) (sshutils.SSHClienter, error)

// ShellFunc opens an interactive shell on client.
type ShellFunc func(client sshutils.SSHClienter) (sshutils.SSHChanneler, error)

type Bootstrapper struct {
	Runner        *Runner
	BannerWait    time.Duration
	BannerIdle    time.Duration
	EnablePause   time.Duration
	PromptTimeout time.Duration
	DialRetries   int
	Logger        *logger.Logger

	Dial      DialFunc
	OpenShell ShellFunc
}

func NewBootstrapper() *Bootstrapper {
	b := &Bootstrapper{
		Runner:        NewRunner(),
		BannerWait:    DefaultBannerWait,
		BannerIdle:    DefaultBannerIdle,
		EnablePause:   DefaultEnablePause,
		PromptTimeout: DefaultPromptTimeout,
		DialRetries:   sshutils.SSHRetryAttempts,
	}
	b.Dial = b.dialSSH
	b.OpenShell = func(client sshutils.SSHClienter) (sshutils.SSHChanneler, error) {
		return sshutils.OpenShell(client)
	}
	return b
}

func (b *Bootstrapper) runner() *Runner {
	if b.Runner != nil {
		return b.Runner
	}
	return NewRunner()
}

func (b *Bootstrapper) logger() *logger.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return logger.Get()
}

func (b *Bootstrapper) dialSSH(ctx context.Context, target models.DeviceTarget) (sshutils.SSHClienter, error) {
	config, err := sshutils.NewSSHConfigFunc(target)
	if err != nil {
		return nil, models.NewConnectionError(models.FailureUnknown, target.Host, err)
	}
	config.Retries = b.DialRetries
	config.Logger = b.logger()
	return config.Connect(ctx)
}

// Connect dials target, opens a shell and bootstraps it. Every error is a *models.ConnectionError.
func (b *Bootstrapper) Connect(ctx context.Context, target models.DeviceTarget) (*Session, error) {
	client, err := b.Dial(ctx, target)
	if err != nil {
		var connErr *models.ConnectionError
		if !errors.As(err, &connErr) {
			err = models.NewConnectionError(sshutils.ClassifyError(err), target.Host, err)
		}
		return nil, err
	}

	ch, err := b.OpenShell(client)
	if err != nil {
		client.Close()
		return nil, models.NewConnectionError(models.FailureProtocol, target.Host, err)
	}
	return b.Establish(ctx, target, client, ch)
}

// Establish runs the bootstrap sequence on an already open shell. On failure both ch and client are
// closed.
func (b *Bootstrapper) Establish(
	ctx context.Context,
	target models.DeviceTarget,
	client sshutils.SSHClienter,
	ch sshutils.SSHChanneler,
) (*Session, error) {
	l := b.logger()
	fail := func(kind models.FailureKind, err error) (*Session, error) {
		ch.Close()
		if client != nil {
			client.Close()
		}
		return nil, models.NewConnectionError(kind, target.Host, err)
	}

	banner := b.drain(ctx, ch, b.BannerWait)
	l.Debugf("Discarded %d bytes of banner from %s", len(banner), target.Host)

	if target.Enable {
		if err := b.enable(ctx, ch, target.EnablePassword); err != nil {
			return fail(models.FailureProtocol, err)
		}
	}

	if err := ch.Send(PagingDisableCommand + "\n"); err != nil {
		return fail(models.FailureProtocol, err)
	}
	if _, err := b.readUntil(ctx, ch, "", func(buf string) bool {
		return strings.Contains(buf, "#")
	}); err != nil {
		return fail(models.FailureHostnameDiscovery, fmt.Errorf("no privileged prompt after %q: %w", PagingDisableCommand, err))
	}

	if err := ch.Send(HostnameQueryCommand + "\n"); err != nil {
		return fail(models.FailureProtocol, err)
	}
	var hostname, rest string
	var found bool
	if _, err := b.readUntil(ctx, ch, "", func(buf string) bool {
		hostname, rest, found = ParseHostname(buf)
		return found || promptAfterEcho(buf, HostnameQueryCommand)
	}); err != nil {
		return fail(models.FailureHostnameDiscovery, fmt.Errorf("hostname not reported: %w", err))
	}
	if !found {
		return fail(models.FailureHostnameDiscovery, errors.New("device returned to the prompt without a hostname line"))
	}

	matcher, err := prompt.NewMatcher(hostname)
	if err != nil {
		return fail(models.FailureHostnameDiscovery, err)
	}

	// consume the prompt that follows the hostname line so it does not lead the first command's output
	if !matcher.MatchBuffer(rest) {
		if _, err := b.readUntil(ctx, ch, rest, matcher.MatchBuffer); err != nil {
			l.Debugf("Prompt for %s not seen after hostname discovery: %v", hostname, err)
		}
	}

	l.Infof("Session established with %s (%s)", target.Host, hostname)
	return &Session{
		target:   target,
		client:   client,
		channel:  ch,
		hostname: hostname,
		matcher:  matcher,
		runner:   b.runner(),
	}, nil
}

func (b *Bootstrapper) enable(ctx context.Context, ch sshutils.SSHChanneler, secret string) error {
	if err := ch.Send(EnableCommand + "\n"); err != nil {
		return err
	}
	if err := sleepContext(ctx, b.EnablePause); err != nil {
		return err
	}
	if err := ch.Send(secret + "\n"); err != nil {
		return err
	}
	// the prompt answering the secret can be slow behind TACACS and must be consumed here
	if _, err := b.readUntil(ctx, ch, "", endsAtAnyPrompt); err != nil {
		if ctx.Err() != nil {
			return err
		}
		b.logger().Debugf("No prompt after the enable secret: %v", err)
	}
	return nil
}

// drain waits up to firstWait for output, then reads until the channel has been quiet for
// BannerIdle. It gives up after PromptTimeout of continuous output.
func (b *Bootstrapper) drain(ctx context.Context, ch sshutils.SSHChanneler, firstWait time.Duration) string {
	var buf strings.Builder
	wait := firstWait
	limit := time.Now().Add(b.PromptTimeout)
	for time.Now().Before(limit) {
		if !ch.WaitReady(ctx, wait) {
			break
		}
		data, err := ch.Recv(sshutils.ReadChunkSize)
		buf.Write(data)
		if err != nil {
			break
		}
		wait = b.BannerIdle
	}
	return buf.String()
}

// readUntil accumulates output, starting from initial, until done reports true for the whole
// buffer or PromptTimeout passes.
func (b *Bootstrapper) readUntil(
	ctx context.Context,
	ch sshutils.SSHChanneler,
	initial string,
	done func(string) bool,
) (string, error) {
	var buf strings.Builder
	buf.WriteString(initial)
	deadline := time.Now().Add(b.PromptTimeout)
	for {
		if ch.RecvReady() {
			data, err := ch.Recv(sshutils.ReadChunkSize)
			buf.Write(data)
			if done(buf.String()) {
				return buf.String(), nil
			}
			if err != nil {
				return buf.String(), err
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return buf.String(), err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return buf.String(), errPromptTimeout
		}
		ch.WaitReady(ctx, min(remaining, b.pollInterval()))
	}
}

func (b *Bootstrapper) pollInterval() time.Duration {
	if b.Runner != nil && b.Runner.PollInterval > 0 {
		return b.Runner.PollInterval
	}
	return DefaultPollInterval
}

func lastLine(buf string) (string, bool) {
	cut := strings.LastIndexAny(buf, "\r\n")
	if cut < 0 {
		return "", false
	}
	return strings.TrimSpace(buf[cut+1:]), true
}

// endsAtPrompt reports whether the text after the last line break looks like a privileged prompt.
func endsAtPrompt(buf string) bool {
	line, ok := lastLine(buf)
	return ok && strings.HasSuffix(line, "#")
}

// endsAtAnyPrompt also accepts the user mode prompt, which a rejected enable secret returns to.
func endsAtAnyPrompt(buf string) bool {
	line, ok := lastLine(buf)
	return ok && (strings.HasSuffix(line, "#") || strings.HasSuffix(line, ">"))
}

// promptAfterEcho reports whether buf holds the echo of command followed by a privileged prompt.
// Prompts that arrive before the echo belong to earlier commands.
func promptAfterEcho(buf, command string) bool {
	i := strings.LastIndex(buf, command)
	return i >= 0 && endsAtPrompt(buf[i:])
}

// ParseHostname finds the first complete line whose first field is "hostname" and returns its
// second field and whatever follows that line.
func ParseHostname(buf string) (hostname, rest string, ok bool) {
	offset := 0
	for {
		end := strings.IndexAny(buf[offset:], "\r\n")
		if end < 0 {
			return "", "", false
		}
		line := buf[offset : offset+end]
		offset += end + 1
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "hostname" {
			return fields[1], buf[offset:], true
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
