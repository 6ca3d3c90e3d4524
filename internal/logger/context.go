package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from the context.
// Returns zap.NewNop() if no logger is found.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithProject returns a context whose logger carries the tenant slug. Every
// log line downstream of request routing identifies its tenant.
func WithProject(ctx context.Context, slug string) context.Context {
	return ContextWithLogger(ctx, FromContext(ctx).With(zap.String("project", slug)))
}
