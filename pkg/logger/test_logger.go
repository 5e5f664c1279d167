package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger writes to the test output and keeps every message for assertions.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

func NewTestLogger(tb zaptest.TestingT) *TestLogger {
	observedCore, observed := observer.New(zapcore.DebugLevel)
	testCore := zaptest.NewLogger(tb, zaptest.Level(zapcore.DebugLevel)).Core()
	z := zap.New(zapcore.NewTee(testCore, observedCore))
	return &TestLogger{Logger: &Logger{Logger: z}, observed: observed}
}

// GetLogs returns captured messages in order.
func (tl *TestLogger) GetLogs() []string {
	entries := tl.observed.All()
	logs := make([]string, 0, len(entries))
	for _, e := range entries {
		logs = append(logs, e.Message)
	}
	return logs
}

func (tl *TestLogger) Contains(substr string) bool {
	for _, msg := range tl.GetLogs() {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

func (tl *TestLogger) CountAtLevel(level zapcore.Level) int {
	return tl.observed.FilterLevelExact(level).Len()
}
