package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LogFilePermissions = 0600
	InfoLogLevel       = "info"
	loggerName         = "cesshar"
)

var (
	DefaultLogPath = filepath.Join(os.TempDir(), "cesshar.log")

	globalLogger *Logger
	loggerMutex  sync.RWMutex

	// GlobalLogFile is kept so the command layer can close it on exit.
	GlobalLogFile *os.File
)

// Logger wraps zap with printf-style helpers. The plain Debug/Info/Warn/Error methods take only a
// message; use the WithFields variants for structured fields.
type Logger struct {
	*zap.Logger
}

func NewLogger(z *zap.Logger) *Logger {
	return &Logger{Logger: z}
}

func NewNopLogger() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Get returns the process logger. Until Initialize runs it is a file logger at info level.
func Get() *Logger {
	loggerMutex.RLock()
	l := globalLogger
	loggerMutex.RUnlock()
	if l != nil {
		return l
	}

	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if globalLogger == nil {
		z, err := build(Config{Level: InfoLogLevel, FilePath: DefaultLogPath})
		if err != nil {
			z = zap.NewNop()
		}
		globalLogger = &Logger{Logger: z}
	}
	return globalLogger
}

func SetGlobalLogger(l *Logger) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	globalLogger = l
}

func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// ForDevice tags every entry with the device address.
func (l *Logger) ForDevice(address string) *Logger {
	return l.With(zap.String("device", address))
}

func (l *Logger) Debug(msg string) { l.Logger.Debug(msg) }
func (l *Logger) Info(msg string)  { l.Logger.Info(msg) }
func (l *Logger) Warn(msg string)  { l.Logger.Warn(msg) }
func (l *Logger) Error(msg string) { l.Logger.Error(msg) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.Debug(fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...interface{})  { l.Info(fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.Warn(fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.Error(fmt.Sprintf(format, args...)) }

func (l *Logger) DebugWithFields(msg string, fields ...zap.Field) { l.Logger.Debug(msg, fields...) }
func (l *Logger) InfoWithFields(msg string, fields ...zap.Field)  { l.Logger.Info(msg, fields...) }
func (l *Logger) WarnWithFields(msg string, fields ...zap.Field)  { l.Logger.Warn(msg, fields...) }
func (l *Logger) ErrorWithFields(msg string, fields ...zap.Field) { l.Logger.Error(msg, fields...) }

func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(fmt.Sprintf("[%s]", t.Format("2006-01-02 15:04:05")))
}

func getZapLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
