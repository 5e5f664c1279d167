package logger

import (
	"context"
)

type ctxKey struct{}

// IntoContext returns a copy of ctx carrying l. The root command stores the
// initialized logger this way so workers started from a command pick it up.
func IntoContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or the global logger.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
			return l
		}
	}
	return Get()
}
