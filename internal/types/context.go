package types

import "context"

type ctxKey int

const traceIDKey ctxKey = 0

// WithTraceID returns a context carrying the trace ID of the current unit of
// work (one generation job or one HTTP request).
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFrom extracts the trace ID from the context, or "" when absent.
func TraceIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}
