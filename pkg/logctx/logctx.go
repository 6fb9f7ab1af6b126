// Package logctx carries the process logger through context.Context so that
// library code never has to touch a package-level logger.
package logctx

import (
	"context"

	"github.com/rs/zerolog"
)

type logKey struct{}

// WithLogger attaches the given logger to the context
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, logKey{}, logger)
}

// FromContext returns the logger attached to the context. Contexts without a
// logger get a no-op logger so callers don't have to guard every log call.
func FromContext(ctx context.Context) *zerolog.Logger {
	logger, ok := ctx.Value(logKey{}).(*zerolog.Logger)
	if !ok {
		nop := zerolog.Nop()
		return &nop
	}

	return logger
}
