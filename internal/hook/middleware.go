package hook

import (
	"context"
	"time"

	"github.com/zjrosen/tapkit/internal/log"
)

// Call describes the handler about to run within an invocation.
type Call struct {
	Name   string
	Plugin string
	Kind   Kind
	Stage  int
	// Index is the handler's position in the ordered list.
	Index int
}

// Handler executes one registration within an invocation.
type Handler func(ctx context.Context, call Call, opts any, value any) (any, error)

// Middleware wraps a Handler to add behavior around every handler call.
type Middleware func(Handler) Handler

// Chain applies middlewares to a handler in reverse order, so the first
// middleware is the outermost wrapper.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] != nil {
			h = middlewares[i](h)
		}
	}
	return h
}

// NewLoggingMiddleware logs each handler's outcome and duration.
func NewLoggingMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, call Call, opts any, value any) (any, error) {
			start := time.Now()
			result, err := next(ctx, call, opts, value)
			duration := time.Since(start)

			if err != nil {
				log.Error(log.CatHook, "handler failed",
					"name", call.Name,
					"plugin", call.Plugin,
					"kind", call.Kind,
					"index", call.Index,
					"duration", duration,
					"error", err.Error(),
				)
				return result, err
			}

			log.Debug(log.CatHook, "handler completed",
				"name", call.Name,
				"plugin", call.Plugin,
				"kind", call.Kind,
				"index", call.Index,
				"duration", duration,
			)
			return result, nil
		}
	}
}
