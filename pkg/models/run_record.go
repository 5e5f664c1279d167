package models

import (
	"sort"
	"sync"
	"time"
)

// RunRecord is the per-device outcome of a batch run.
type RunRecord struct {
	Address    string
	Hostname   string
	Results    []CommandResult
	OutputFile string
	UsedBackup bool
	Failure    error
	StartTime  time.Time
	EndTime    time.Time
}

func NewRunRecord(address string) *RunRecord {
	return &RunRecord{Address: address, StartTime: time.Now()}
}

func (r *RunRecord) Add(result CommandResult) {
	r.Results = append(r.Results, result)
}

func (r *RunRecord) Finalize(err error) {
	r.Failure = err
	r.EndTime = time.Now()
}

// Connected reports whether a session was opened, which is when the hostname becomes known.
func (r *RunRecord) Connected() bool {
	return r.Hostname != ""
}

func (r *RunRecord) Succeeded() bool {
	return r.Failure == nil
}

func (r *RunRecord) Count(status CommandStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

func (r *RunRecord) StatusCode() StatusCode {
	switch {
	case r.Failure != nil && r.Hostname == "":
		return StatusSkipped
	case r.Failure != nil:
		return StatusFailed
	case r.Count(CommandBailed) > 0:
		return StatusBailed
	default:
		return StatusSucceeded
	}
}

// RunSummary collects records from concurrent device workers.
type RunSummary struct {
	mu        sync.Mutex
	records   []*RunRecord
	StartTime time.Time
	EndTime   time.Time
}

func NewRunSummary() *RunSummary {
	return &RunSummary{StartTime: time.Now()}
}

func (s *RunSummary) Add(record *RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

// Records returns the records ordered by device address so reports are stable across worker scheduling.
func (s *RunSummary) Records() []*RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]*RunRecord{}, s.records...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

func (s *RunSummary) OutputFiles() []string {
	var files []string
	for _, r := range s.Records() {
		if r.OutputFile != "" {
			files = append(files, r.OutputFile)
		}
	}
	return files
}

func (s *RunSummary) Failed() []*RunRecord {
	var failed []*RunRecord
	for _, r := range s.Records() {
		if !r.Succeeded() {
			failed = append(failed, r)
		}
	}
	return failed
}

func (s *RunSummary) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EndTime = time.Now()
}

func (s *RunSummary) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}
