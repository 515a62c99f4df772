package log

import (
	"context"

	"github.com/smallbiznis/vendorhub/pkg/log/ctxlogger"
	"go.uber.org/zap"
)

// L returns a context-aware logger with correlation and tracing metadata.
func L(ctx context.Context) *zap.Logger {
	return ctxlogger.FromContext(ctx)
}

// With enriches base with the same metadata as L.
func With(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		return L(ctx)
	}
	return ctxlogger.WithContext(ctx, base)
}
