package libtracker

import (
	"context"
	"fmt"
	"math/rand/v2"
)

type contextKey string

var ContextKeyRequestID = contextKey("request_id")
var ContextKeyTraceID = contextKey("trace_id")
var ContextKeySpanID = contextKey("span_id")

// CopyTrackingValues carries request, trace and span ids from src into dst.
// Used when work detaches from the caller's context (fire-and-forget goroutines).
func CopyTrackingValues(src context.Context, dst context.Context) context.Context {
	ctx := dst
	for _, key := range []contextKey{ContextKeyRequestID, ContextKeyTraceID, ContextKeySpanID} {
		if v := src.Value(key); v != nil {
			ctx = context.WithValue(ctx, key, v)
		}
	}
	return ctx
}

// WithNewRequestID stamps a fresh random request ID into ctx.
// Call this at the top of any CLI command or goroutine entry-point that
// doesn't already have a request ID so the tracker never logs SERVERBUG.
func WithNewRequestID(ctx context.Context) context.Context {
	id := fmt.Sprintf("cli-%016x", rand.Uint64())
	return context.WithValue(ctx, ContextKeyRequestID, id)
}

// RequestID returns the request id stored in ctx or "SERVERBUG" when missing.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyRequestID).(string); ok && id != "" {
		return id
	}
	return "SERVERBUG"
}

func traceValues(ctx context.Context) []any {
	var out []any
	if v, ok := ctx.Value(ContextKeyTraceID).(string); ok && v != "" {
		out = append(out, "trace_id", v)
	}
	if v, ok := ctx.Value(ContextKeySpanID).(string); ok && v != "" {
		out = append(out, "span_id", v)
	}
	return out
}
