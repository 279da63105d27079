package logger

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

type ctxKey struct{}

var fallback atomic.Pointer[zap.Logger]

// SetFallback sets the logger FromContext returns for contexts that carry none,
// such as background index rebuilds started outside a request.
func SetFallback(l *zap.Logger) { fallback.Store(l) }

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from the context.
// Without one it returns the fallback logger, or zap.NewNop() if none was set.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	if l := fallback.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}
