package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/offalexp/ceSSHar/pkg/goroutine"
	"github.com/offalexp/ceSSHar/pkg/logger"
	"github.com/offalexp/ceSSHar/pkg/models"
	"github.com/offalexp/ceSSHar/pkg/output"
	"github.com/offalexp/ceSSHar/pkg/session"
	"github.com/offalexp/ceSSHar/pkg/sshutils"
)

type FetchResult struct {
	Address    string
	RemotePath string
	LocalPath  string
	Bytes      int64
	Err        error
}

// Fetcher downloads files from devices over SFTP on the same authenticated connection path as
// command runs.
type Fetcher struct {
	Dial    session.DialFunc
	Namer   *output.Namer
	Workers int
	Logger  *logger.Logger
}

func (f *Fetcher) Fetch(ctx context.Context, targets []models.DeviceTarget, remotePaths []string) ([]FetchResult, error) {
	l := f.Logger
	if l == nil {
		l = logger.FromContext(ctx)
	}
	results := make([][]FetchResult, len(targets))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(f.Workers, 1))
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			id := goroutine.RegisterGoroutine("fetch " + target.Address())
			defer goroutine.DeregisterGoroutine(id)

			res := f.fetchDevice(gctx, target, remotePaths, l.ForDevice(target.Address()))
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return gctx.Err()
		})
	}
	err := g.Wait()

	var out []FetchResult
	for _, r := range results {
		out = append(out, r...)
	}
	return out, err
}

func (f *Fetcher) fetchDevice(ctx context.Context, target models.DeviceTarget, paths []string, l *logger.Logger) []FetchResult {
	address := target.Address()
	client, err := f.Dial(ctx, target)
	if err != nil {
		l.Errorf("Connection failed: %v", err)
		results := make([]FetchResult, 0, len(paths))
		for _, p := range paths {
			results = append(results, FetchResult{Address: address, RemotePath: p, Err: err})
		}
		return results
	}
	defer client.Close()

	results := make([]FetchResult, 0, len(paths))
	for _, p := range paths {
		res := FetchResult{Address: address, RemotePath: p, LocalPath: f.Namer.Fetch(target.Host, p)}
		res.Bytes, res.Err = fetchOne(client, p, res.LocalPath)
		if res.Err != nil {
			l.Errorf("Fetch of %s failed: %v", p, res.Err)
			res.LocalPath = ""
		} else {
			l.Infof("Fetched %s (%d bytes) to %s", p, res.Bytes, res.LocalPath)
		}
		results = append(results, res)
	}
	return results
}

func fetchOne(client sshutils.SSHClienter, remotePath, localPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.OpenFile(localPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	n, err := sshutils.FetchFile(client, remotePath, file)
	closeErr := file.Close()
	if err != nil {
		_ = os.Remove(localPath)
		return n, err
	}
	return n, closeErr
}
