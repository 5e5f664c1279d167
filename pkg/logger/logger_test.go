package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitializeWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	require.NoError(t, Initialize(Config{Level: "debug", FilePath: path}))
	t.Cleanup(func() { Sync(); SetGlobalLogger(nil) })

	l := Get()
	l.Debugf("dialing %s", "10.0.0.1:22")
	l.WarnWithFields("bailed", zap.String("command", "show tech"))
	require.NoError(t, l.Sync())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "dialing 10.0.0.1:22")
	assert.Contains(t, string(content), "show tech")
	assert.Contains(t, string(content), "cesshar")
}

func TestInitializeRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	require.NoError(t, Initialize(Config{Level: "warn", FilePath: path}))
	t.Cleanup(func() { Sync(); SetGlobalLogger(nil) })

	Get().Infof("hidden")
	Get().Warnf("shown")
	require.NoError(t, Get().Sync())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "hidden")
	assert.Contains(t, string(content), "shown")
}

func TestTestLoggerCaptures(t *testing.T) {
	tl := NewTestLogger(t)
	tl.Infof("connected to %s", "core-sw1")
	tl.ForDevice("10.0.0.1").Warn("slow command")

	assert.Equal(t, []string{"connected to core-sw1"}, tl.GetLogs()[:1])
	assert.True(t, tl.Contains("slow command"))
	assert.Equal(t, 1, tl.CountAtLevel(zapcore.WarnLevel))
}

func TestContextRoundTrip(t *testing.T) {
	tl := NewTestLogger(t)
	ctx := IntoContext(context.Background(), tl.Logger)
	assert.Same(t, tl.Logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestGetZapLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, getZapLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, getZapLevel("warning"))
	assert.Equal(t, zapcore.InfoLevel, getZapLevel("bogus"))
}
