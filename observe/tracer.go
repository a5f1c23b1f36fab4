package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Pipeline stages.
const (
	StageAuth    = "auth"
	StageRequest = "request"
)

// CallMeta describes one dispatched stage. Library and Callback are
// required; ID defaults to "library.callback".
type CallMeta struct {
	ID       string
	Library  string
	Callback string
	Stage    string
	Method   string
	Path     string
}

func (m CallMeta) CallID() string {
	if m.ID != "" {
		return m.ID
	}
	return m.Library + "." + m.Callback
}

// SpanName is dispatch.<stage>.<call id>, or dispatch.<call id> without a
// stage.
func (m CallMeta) SpanName() string {
	if m.Stage == "" {
		return "dispatch." + m.CallID()
	}
	return "dispatch." + m.Stage + "." + m.CallID()
}

func (m CallMeta) spanAttributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("call.id", m.CallID()),
		attribute.String("call.library", m.Library),
		attribute.String("call.callback", m.Callback),
	}
	if m.Stage != "" {
		attrs = append(attrs, attribute.String("call.stage", m.Stage))
	}
	if m.Method != "" {
		attrs = append(attrs, semconv.HTTPRequestMethodKey.String(m.Method))
	}
	if m.Path != "" {
		attrs = append(attrs, semconv.HTTPRoute(m.Path))
	}
	return attrs
}

// Tracer opens one span per pipeline stage. EndSpan must not panic.
type Tracer interface {
	StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span)
	EndSpan(span trace.Span, err error)
}

type stageTracer struct {
	tracer trace.Tracer
}

func newTracer(t trace.Tracer) Tracer {
	return stageTracer{tracer: t}
}

func newNoopTracer() Tracer {
	return newTracer(tracenoop.NewTracerProvider().Tracer(""))
}

func (t stageTracer) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(meta.spanAttributes()...),
	)
}

// EndSpan closes span with status Ok, or Error plus an error event.
func (t stageTracer) EndSpan(span trace.Span, err error) {
	defer span.End()
	span.SetAttributes(attribute.Bool("call.error", err != nil))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
