package logger

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the configuration for the logger
type Config struct {
	Level         string `yaml:"level"          json:"level"`
	FilePath      string `yaml:"file_path"      json:"file_path"`
	Format        string `yaml:"format"         json:"format"`
	WithTrace     bool   `yaml:"with_trace"     json:"with_trace"`
	EnableConsole bool   `yaml:"enable_console" json:"enable_console"`
}

// Initialize replaces the global logger according to config.
func Initialize(config Config) error {
	z, err := build(config)
	if err != nil {
		return err
	}
	SetGlobalLogger(&Logger{Logger: z})
	return nil
}

// Sync flushes the global logger and closes its file.
func Sync() {
	_ = Get().Sync()
	if GlobalLogFile != nil {
		_ = GlobalLogFile.Close()
		GlobalLogFile = nil
	}
}

func build(config Config) (*zap.Logger, error) {
	if config.Level == "" {
		config.Level = InfoLogLevel
	}
	level := getZapLevel(config.Level)

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     customTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var cores []zapcore.Core

	if config.EnableConsole {
		consoleEncoderConfig := encoderConfig
		consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEncoderConfig.EncodeCaller = nil
		consoleEncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format("15:04:05"))
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderConfig),
			zapcore.AddSync(os.Stderr),
			level,
		))
	}

	if config.FilePath != "" {
		var encoder zapcore.Encoder
		if config.Format == "json" {
			encoder = zapcore.NewJSONEncoder(encoderConfig)
		} else {
			encoder = zapcore.NewConsoleEncoder(encoderConfig)
		}
		file, err := os.OpenFile(
			config.FilePath,
			os.O_APPEND|os.O_CREATE|os.O_WRONLY,
			LogFilePermissions,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		if GlobalLogFile != nil {
			_ = GlobalLogFile.Close()
		}
		GlobalLogFile = file
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(file), level))
	}

	if len(cores) == 0 {
		return zap.NewNop(), nil
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}
	if config.WithTrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return zap.New(zapcore.NewTee(cores...), opts...).Named(loggerName), nil
}
