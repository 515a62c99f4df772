package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/vendorhub/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Gin context keys handlers may set to annotate the request span.
const (
	SpanKeyPricingMode = "pricing_mode"
	SpanKeyEditorState = "editor_state"
)

// GinMiddleware opens a server span per request. The span is named after the
// matched route and carries the service id when the route has one.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("vendorhub/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		method := strings.ToUpper(c.Request.Method)
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if id := strings.TrimSpace(c.Param("id")); id != "" {
			ctx = obscontext.WithEntity(ctx, "service:"+id)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		span.SetName("HTTP " + method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
		}
		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			attrs = append(attrs, attribute.String("request_id", requestID))
		}
		if entity := obscontext.EntityFromContext(ctx); entity != "" {
			attrs = append(attrs, attribute.String("vendorhub.entity", entity))
		}
		for _, key := range []string{SpanKeyPricingMode, SpanKeyEditorState} {
			if value := c.GetString(key); value != "" {
				attrs = append(attrs, attribute.String("vendorhub."+key, value))
			}
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if c.Writer.Status() >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				span.RecordError(SafeError(lastErr.Err))
			}
			span.SetStatus(codes.Error, http.StatusText(c.Writer.Status()))
		}
	}
}
