package hook

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span attribute keys recorded for hook invocations.
const (
	AttrHookName     = "hook.name"
	AttrHookKind     = "hook.kind"
	AttrHookHandlers = "hook.handlers"
	AttrHookPlugin   = "hook.plugin"
	AttrHookStage    = "hook.stage"
	AttrHookIndex    = "hook.index"
)

// SpanPrefixInvoke prefixes the span opened for each non-empty invocation.
const SpanPrefixInvoke = "invoke."

// Engine executes the ordered handlers of a hook name.
type Engine struct {
	registry   *Registry
	tracer     trace.Tracer
	middleware []Middleware
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithTracer sets the tracer used for invocation spans.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithMiddleware wraps every handler call. The first middleware is outermost.
func WithMiddleware(mws ...Middleware) EngineOption {
	return func(e *Engine) {
		e.middleware = append(e.middleware, mws...)
	}
}

// NewEngine creates an engine reading registrations from registry.
func NewEngine(registry *Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		tracer:   noop.NewTracerProvider().Tracer("noop"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Invoke runs every handler registered under name, strictly one after another.
//
// With no handlers, initial is returned as is (an empty collection for collect
// hooks given a nil initial). Otherwise the result depends on the kind: the
// last handler's value for waterfalls, the ordered results for collects and
// nil for events. The first failing handler stops the invocation with a
// *HandlerError.
func (e *Engine) Invoke(ctx context.Context, name string, opts any, initial any) (any, error) {
	kind := Classify(name)

	ordered, err := e.registry.Ordered(name)
	if err != nil {
		return nil, fmt.Errorf("order hook %q: %w", name, err)
	}
	if len(ordered) == 0 {
		if kind == KindCollect && initial == nil {
			return []any{}, nil
		}
		return initial, nil
	}

	ctx, span := e.tracer.Start(ctx, SpanPrefixInvoke+name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(AttrHookName, name),
			attribute.String(AttrHookKind, kind.String()),
			attribute.Int(AttrHookHandlers, len(ordered)),
		),
	)
	defer span.End()

	handler := Chain(runRegistration(ordered), e.middleware...)

	result, err := aggregate(ctx, kind, ordered, handler, opts, initial)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func aggregate(ctx context.Context, kind Kind, ordered []Registration, handler Handler, opts any, initial any) (any, error) {
	switch kind {
	case KindWaterfall:
		value := initial
		for i, reg := range ordered {
			res, err := call(ctx, handler, reg, i, opts, value)
			if err != nil {
				return nil, err
			}
			value = res
		}
		return value, nil

	case KindCollect:
		collected := make([]any, 0, len(ordered))
		for i, reg := range ordered {
			var arg any = initial
			if i > 0 {
				arg = append([]any(nil), collected...)
			}
			res, err := call(ctx, handler, reg, i, opts, arg)
			if err != nil {
				return nil, err
			}
			collected = append(collected, res)
		}
		return collected, nil

	default:
		for i, reg := range ordered {
			if _, err := call(ctx, handler, reg, i, opts, initial); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
}

func call(ctx context.Context, handler Handler, reg Registration, index int, opts any, value any) (any, error) {
	c := Call{
		Name:   reg.Name,
		Plugin: reg.Plugin,
		Kind:   reg.Kind,
		Stage:  reg.Stage,
		Index:  index,
	}
	res, err := handler(ctx, c, opts, value)
	if err != nil {
		return nil, &HandlerError{Name: reg.Name, Plugin: reg.Plugin, Err: err}
	}
	return res, nil
}

// runRegistration is the innermost handler: it calls the registration at
// call.Index.
func runRegistration(ordered []Registration) Handler {
	return func(ctx context.Context, c Call, opts any, value any) (any, error) {
		return ordered[c.Index].Fn(ctx, opts, value)
	}
}
