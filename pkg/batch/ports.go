package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/offalexp/ceSSHar/pkg/goroutine"
	"github.com/offalexp/ceSSHar/pkg/logger"
	"github.com/offalexp/ceSSHar/pkg/models"
	"github.com/offalexp/ceSSHar/pkg/portstats"
	"github.com/offalexp/ceSSHar/pkg/table"
)

const ShowInterfaceCommand = "show interfaces %s"

// PortJob is one device and the interfaces to inspect on it.
type PortJob struct {
	Target     models.DeviceTarget
	Interfaces []string
}

type PortChecker struct {
	Connector   Connector
	Thresholds  portstats.Thresholds
	BailTimeout time.Duration
	Workers     int
	Logger      *logger.Logger
}

// Check inspects every job and returns one row per interface, in job order. Connection and
// command failures become rows carrying the error; only cancellation stops the check.
func (p *PortChecker) Check(ctx context.Context, jobs []PortJob) ([]table.PortRow, error) {
	l := p.Logger
	if l == nil {
		l = logger.FromContext(ctx)
	}
	results := make([][]table.PortRow, len(jobs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.Workers, 1))
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			id := goroutine.RegisterGoroutine("ports " + job.Target.Address())
			defer goroutine.DeregisterGoroutine(id)

			rows := p.checkDevice(gctx, job, l.ForDevice(job.Target.Address()))
			mu.Lock()
			results[i] = rows
			mu.Unlock()
			return gctx.Err()
		})
	}
	err := g.Wait()

	var rows []table.PortRow
	for _, r := range results {
		rows = append(rows, r...)
	}
	return rows, err
}

func (p *PortChecker) checkDevice(ctx context.Context, job PortJob, l *logger.Logger) []table.PortRow {
	device := job.Target.Address()
	failAll := func(err error) []table.PortRow {
		rows := make([]table.PortRow, 0, len(job.Interfaces))
		for _, name := range job.Interfaces {
			rows = append(rows, table.PortRow{Device: device, Interface: name, Err: err})
		}
		return rows
	}

	sess, err := p.Connector.Connect(ctx, job.Target)
	if err != nil {
		l.Errorf("Connection failed: %v", err)
		return failAll(err)
	}
	defer sess.Close()
	device = sess.Hostname()

	var rows []table.PortRow
	for i, name := range job.Interfaces {
		result, err := sess.Run(ctx, fmt.Sprintf(ShowInterfaceCommand, name), p.BailTimeout)
		row := table.PortRow{Device: device, Interface: name}
		switch {
		case err != nil:
			row.Err = err
		case result.Status != models.CommandDone:
			row.Err = fmt.Errorf("%w: %s", models.ErrCommandTimedOut, result.Command)
		default:
			row.Stats = portstats.Parse(result.Output)
			row.Problems = p.Thresholds.Problems(row.Stats)
			l.Debugf("%s: %d problem(s)", name, len(row.Problems))
		}
		rows = append(rows, row)
		if err != nil {
			for _, rest := range job.Interfaces[i+1:] {
				rows = append(rows, table.PortRow{Device: device, Interface: rest, Err: err})
			}
			break
		}
	}
	return rows
}
