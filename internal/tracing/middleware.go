package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/tapkit/internal/hook"
)

// NewHookMiddleware opens a child span for every hook handler call. A nil
// tracer yields a pass-through middleware.
func NewHookMiddleware(tracer trace.Tracer) hook.Middleware {
	if tracer == nil {
		return func(next hook.Handler) hook.Handler {
			return next
		}
	}

	return func(next hook.Handler) hook.Handler {
		return func(ctx context.Context, call hook.Call, opts any, value any) (any, error) {
			ctx, span := tracer.Start(ctx, SpanPrefixHandle+call.Name,
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			defer span.End()

			span.SetAttributes(
				attribute.String(hook.AttrHookName, call.Name),
				attribute.String(hook.AttrHookPlugin, call.Plugin),
				attribute.String(hook.AttrHookKind, call.Kind.String()),
				attribute.Int(hook.AttrHookStage, call.Stage),
				attribute.Int(hook.AttrHookIndex, call.Index),
			)
			if runID := RunIDFromContext(ctx); runID != "" {
				span.SetAttributes(attribute.String(AttrRunID, runID))
			}

			result, err := next(ctx, call, opts, value)
			if err != nil {
				RecordError(span, err)
				return result, err
			}
			span.SetStatus(codes.Ok, "")
			return result, nil
		}
	}
}

// RecordError marks span as failed with err.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
}
