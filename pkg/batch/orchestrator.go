// Package batch runs a command list against a device list with bounded concurrency.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/offalexp/ceSSHar/pkg/display"
	"github.com/offalexp/ceSSHar/pkg/goroutine"
	"github.com/offalexp/ceSSHar/pkg/logger"
	"github.com/offalexp/ceSSHar/pkg/models"
	"github.com/offalexp/ceSSHar/pkg/output"
	"github.com/offalexp/ceSSHar/pkg/safety"
	"github.com/offalexp/ceSSHar/pkg/session"
)

const (
	// ProgressThreshold is the job size (commands × devices) above which milestones are printed.
	ProgressThreshold = 100
	progressStep      = 10
)

var ErrRunAborted = errors.New("run aborted")

// DeviceSession is a connected, bootstrapped device shell.
type DeviceSession interface {
	Hostname() string
	Run(ctx context.Context, command string, bailTimeout time.Duration) (models.CommandResult, error)
	Close() error
}

type Connector interface {
	Connect(ctx context.Context, target models.DeviceTarget) (DeviceSession, error)
}

// BootstrapConnector connects through a session.Bootstrapper.
type BootstrapConnector struct {
	Bootstrapper *session.Bootstrapper
}

func (c BootstrapConnector) Connect(ctx context.Context, target models.DeviceTarget) (DeviceSession, error) {
	s, err := c.Bootstrapper.Connect(ctx, target)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type Options struct {
	Targets  []models.DeviceTarget
	Commands []string

	// Backup, when set, is tried once after the primary credentials fail.
	Backup               *models.Credentials
	BackupEnablePassword string

	BailTimeout time.Duration
	Delay       time.Duration
	DevicePause time.Duration
	Workers     int

	ExitOnFailure bool
	WriteOutput   bool
	PrintOutput   bool
	OutputDir     string

	Filter       *safety.Filter
	StrictSafety bool
	// Prescreened skips the up-front screening when the caller already ran ScreenCommands.
	Prescreened bool

	Logger *logger.Logger
}

type Orchestrator struct {
	opts      Options
	connector Connector
	console   *display.Console
	namer     *output.Namer
	logger    *logger.Logger

	total    int64
	progress atomic.Int64
	start    time.Time
	now      func() time.Time
}

func New(opts Options, connector Connector, console *display.Console) (*Orchestrator, error) {
	if connector == nil {
		return nil, fmt.Errorf("connector is required")
	}
	if console == nil {
		return nil, fmt.Errorf("console is required")
	}
	if len(opts.Targets) == 0 {
		return nil, fmt.Errorf("no devices to run against")
	}
	if len(opts.Commands) == 0 {
		return nil, fmt.Errorf("no commands to run")
	}
	if opts.BailTimeout <= 0 {
		return nil, fmt.Errorf("bail timeout must be positive")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Filter == nil {
		opts.Filter = safety.NewFilter()
	}
	l := opts.Logger
	if l == nil {
		l = logger.Get()
	}
	return &Orchestrator{
		opts:      opts,
		connector: connector,
		console:   console,
		namer:     output.NewNamer(opts.OutputDir),
		logger:    l,
		total:     int64(len(opts.Targets) * len(opts.Commands)),
		now:       time.Now,
	}, nil
}

// ScreenCommands reports every blocked command on console. Under strict safety any blocked
// command is an error.
func ScreenCommands(filter *safety.Filter, commands []string, strict bool, console *display.Console, l *logger.Logger) error {
	if !filter.Enabled() {
		console.SafetyDisabled()
		return nil
	}
	blocked := filter.Screen(commands)
	for _, v := range blocked {
		l.Warnf("Blocked command: %s", v.Reason)
		console.HarmfulCommand(v, strict)
	}
	if strict && len(blocked) > 0 {
		return fmt.Errorf("%w: %d harmful command(s)", models.ErrCommandBlocked, len(blocked))
	}
	return nil
}

func (o *Orchestrator) Screen() error {
	if o.opts.Prescreened {
		return nil
	}
	return ScreenCommands(o.opts.Filter, o.opts.Commands, o.opts.StrictSafety, o.console, o.logger)
}

// EstimatedDuration is the up-front guess shown when commands are delayed.
func (o *Orchestrator) EstimatedDuration() time.Duration {
	return time.Duration(len(o.opts.Commands)*len(o.opts.Targets)*2) * o.opts.Delay
}

// Run processes every device and returns the summary even when the run was aborted or cancelled.
func (o *Orchestrator) Run(ctx context.Context) (*models.RunSummary, error) {
	summary := models.NewRunSummary()
	if err := o.Screen(); err != nil {
		summary.Finish()
		return summary, err
	}

	o.start = o.now()
	if o.opts.Delay > 0 {
		o.console.Estimate(o.start, o.start.Add(o.EstimatedDuration()))
	}
	o.logger.Infof("Running %d command(s) on %d device(s) with %d worker(s)",
		len(o.opts.Commands), len(o.opts.Targets), o.opts.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for _, target := range o.opts.Targets {
		if gctx.Err() != nil {
			break
		}
		target := target
		g.Go(func() error {
			id := goroutine.RegisterGoroutine("device " + target.Address())
			defer goroutine.DeregisterGoroutine(id)
			if err := gctx.Err(); err != nil {
				return err
			}

			record, err := o.runDevice(gctx, target)
			summary.Add(record)
			if err != nil {
				return err
			}
			if !record.Connected() {
				return nil
			}
			return sleepContext(gctx, o.opts.DevicePause)
		})
	}
	err := g.Wait()
	summary.Finish()

	var finish time.Time
	if o.opts.Delay > 0 {
		finish = summary.EndTime
	}
	o.console.Finished(summary.OutputFiles(), finish, summary.Elapsed())

	if ctxErr := ctx.Err(); ctxErr != nil {
		return summary, fmt.Errorf("run interrupted: %w", ctxErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return summary, err
	}
	return summary, nil
}

func (o *Orchestrator) connect(ctx context.Context, target models.DeviceTarget, record *models.RunRecord) (DeviceSession, error) {
	l := o.logger.ForDevice(record.Address)
	sess, err := o.connector.Connect(ctx, target)
	if err == nil {
		return sess, nil
	}
	l.Errorf("Connection failed: %v", err)
	o.console.ConnectionFailed(err)
	if o.opts.Backup == nil || ctx.Err() != nil {
		return nil, err
	}

	o.console.TryingBackup(record.Address)
	backup := target.WithCredentials(*o.opts.Backup, o.opts.BackupEnablePassword)
	sess, err = o.connector.Connect(ctx, backup)
	if err != nil {
		l.Errorf("Connection with backup credentials failed: %v", err)
		o.console.ConnectionFailed(err)
		return nil, err
	}
	record.UsedBackup = true
	return sess, nil
}

// runDevice returns a non-nil error only when the whole run must stop.
func (o *Orchestrator) runDevice(ctx context.Context, target models.DeviceTarget) (*models.RunRecord, error) {
	record := models.NewRunRecord(target.Address())
	l := o.logger.ForDevice(record.Address)

	sess, err := o.connect(ctx, target, record)
	if err != nil {
		record.Finalize(err)
		if ctx.Err() != nil {
			return record, ctx.Err()
		}
		if o.opts.ExitOnFailure {
			return record, fmt.Errorf("%w: %s: %w", ErrRunAborted, record.Address, err)
		}
		return record, nil
	}
	defer func() {
		if err := sess.Close(); err != nil {
			l.Debugf("Error closing session: %v", err)
		}
	}()

	record.Hostname = sess.Hostname()
	l.Infof("Connected, hostname %s", record.Hostname)

	var w *output.Writer
	if o.opts.WriteOutput {
		w, err = output.Create(o.namer.Capture(record.Hostname))
		if err != nil {
			l.Errorf("Cannot write output: %v", err)
			o.console.Notice(err.Error())
			record.Finalize(err)
			return record, nil
		}
		record.OutputFile = w.Path()
		defer w.Close()
	}

	runErr := o.runCommands(ctx, sess, record, w)
	record.Finalize(runErr)
	if ctx.Err() != nil {
		return record, ctx.Err()
	}
	o.console.DeviceDone(record.Address, record.OutputFile)
	return record, nil
}

func (o *Orchestrator) runCommands(ctx context.Context, sess DeviceSession, record *models.RunRecord, w *output.Writer) error {
	l := o.logger.ForDevice(record.Address)
	for _, command := range o.opts.Commands {
		if v := o.opts.Filter.Check(command); v.Blocked {
			l.Warnf("Skipping %s", v.Reason)
			record.Add(models.CommandResult{Command: command, Status: models.CommandBlocked, BlockReason: v.Reason})
			o.advance()
			continue
		}

		o.console.Running(record.Hostname, command)
		result, err := sess.Run(ctx, command, o.opts.BailTimeout)
		record.Add(result)
		if result.Status == models.CommandBailed {
			o.console.Bailed(command, o.opts.BailTimeout)
		}
		if o.opts.PrintOutput {
			o.console.Output(result.Output)
		}
		if w != nil && result.Output != "" {
			if werr := w.WriteOutput(result.Output); werr != nil {
				l.Errorf("Failed to write output: %v", werr)
			}
		}
		if err != nil {
			return fmt.Errorf("session lost on %q: %w", command, err)
		}

		if err := sleepContext(ctx, o.opts.Delay); err != nil {
			return err
		}
		o.advance()
	}
	return nil
}

// advance bumps the progress counter and prints a milestone every tenth item once past 9%.
func (o *Orchestrator) advance() {
	if o.total <= ProgressThreshold {
		return
	}
	done := o.progress.Add(1) - 1
	if done%progressStep != 0 {
		return
	}
	percent := int(float64(done) / float64(o.total) * 100)
	if percent <= 9 {
		return
	}
	var eta time.Time
	if o.opts.Delay > 0 {
		eta = o.estimateCompletion(done)
	}
	o.console.Progress(percent, eta)
}

func (o *Orchestrator) estimateCompletion(done int64) time.Time {
	now := o.now()
	if done <= 0 {
		return now
	}
	perItem := now.Sub(o.start) / time.Duration(done)
	return now.Add(perItem * time.Duration(o.total-done))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
