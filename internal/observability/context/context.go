package context

import (
	stdcontext "context"
	"strings"
)

type requestIDKey struct{}

type entityKey struct{}

func WithRequestID(ctx stdcontext.Context, requestID string) stdcontext.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return stdcontext.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithEntity tags the context with the entity key an operation works on,
// e.g. "service:1234".
func WithEntity(ctx stdcontext.Context, key string) stdcontext.Context {
	key = strings.TrimSpace(key)
	if key == "" {
		return ctx
	}
	return stdcontext.WithValue(ctx, entityKey{}, key)
}

func EntityFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(entityKey{}).(string)
	return value
}
