package tracing

import "context"

type contextKey string

const runIDKey contextKey = "run_id"

// RunIDFromContext returns the kernel run ID carried by ctx, or "".
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRunID attaches a run ID. An empty id returns ctx unchanged.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}
