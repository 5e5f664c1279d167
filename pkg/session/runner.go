package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/offalexp/ceSSHar/pkg/logger"
	"github.com/offalexp/ceSSHar/pkg/models"
	"github.com/offalexp/ceSSHar/pkg/prompt"
	"github.com/offalexp/ceSSHar/pkg/sshutils"
)

// BailSuffixFormat is appended to the output of a command that never returned to the prompt.
const BailSuffixFormat = "cesshar bailed on command: %s"

var DefaultPollInterval = 250 * time.Millisecond

// Runner drives a single command: send it once, then accumulate output until a prompt line is
// seen (done) or the bail deadline passes (bailed).
type Runner struct {
	ChunkSize    int
	PollInterval time.Duration
	Logger       *logger.Logger
}

func NewRunner() *Runner {
	return &Runner{
		ChunkSize:    sshutils.ReadChunkSize,
		PollInterval: DefaultPollInterval,
	}
}

func (r *Runner) logger() *logger.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return logger.Get()
}

// Run returns a result for every outcome. The error is non-nil only when the rest of the session is
// unusable: the channel failed or ctx was cancelled. A bail is not an error.
func (r *Runner) Run(
	ctx context.Context,
	ch sshutils.SSHChanneler,
	command string,
	matcher *prompt.Matcher,
	bailTimeout time.Duration,
) (models.CommandResult, error) {
	l := r.logger()
	result := models.CommandResult{Command: command}
	start := time.Now()

	if err := ch.Send(command + "\n"); err != nil {
		result.Status = models.CommandInterrupted
		return result, fmt.Errorf("failed to send %q: %w", command, err)
	}

	deadline := start.Add(bailTimeout)
	scanner := prompt.NewScanner(matcher)
	chunkSize := r.ChunkSize
	if chunkSize <= 0 {
		chunkSize = sshutils.ReadChunkSize
	}
	poll := r.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	var output strings.Builder

	finish := func(status models.CommandStatus) models.CommandResult {
		result.Status = status
		result.Elapsed = time.Since(start)
		if status != models.CommandDone {
			output.WriteString(bailSuffix(output.String(), command))
		}
		result.Output = output.String()
		return result
	}

	for {
		if ch.RecvReady() {
			data, err := ch.Recv(chunkSize)
			if len(data) > 0 {
				output.Write(data)
				if scanner.Feed(string(data)) {
					l.Debugf("Command %q completed in %s", command, time.Since(start))
					return finish(models.CommandDone), nil
				}
			}
			if err != nil {
				l.Warnf("Connection lost while running %q: %v", command, err)
				return finish(models.CommandInterrupted), fmt.Errorf("connection lost during %q: %w", command, err)
			}
			continue
		}

		if err := ctx.Err(); err != nil {
			l.Warnf("Command %q cancelled after %s", command, time.Since(start))
			return finish(models.CommandCancelled), err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			l.Warnf("Command %q took %s to run, bailing!", command, bailTimeout)
			return finish(models.CommandBailed), nil
		}
		ch.WaitReady(ctx, min(remaining, poll))
	}
}

func bailSuffix(output, command string) string {
	suffix := fmt.Sprintf(BailSuffixFormat, command)
	if output != "" && !strings.HasSuffix(output, "\n") {
		return "\n" + suffix
	}
	return suffix
}
