package observe

import (
	"context"
	"time"
)

// StageFunc is one pipeline stage. Results travel through the closure;
// only the error is observed.
type StageFunc func(ctx context.Context, meta CallMeta) error

// Middleware gives every pipeline stage a span, a run count, a latency
// sample and a log line. The wrapped stage's error is returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware substitutes a no-op for any nil component.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	m := &Middleware{tracer: tracer, metrics: metrics, logger: logger}
	if m.tracer == nil {
		m.tracer = newNoopTracer()
	}
	if m.metrics == nil {
		m.metrics = noopMetrics{}
	}
	if m.logger == nil {
		m.logger = NopLogger()
	}
	return m
}

func NoopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// MiddlewareFromObserver builds the middleware over an Observer's providers.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(newTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

func (m *Middleware) Wrap(fn StageFunc) StageFunc {
	return func(ctx context.Context, meta CallMeta) error {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()
		err := fn(ctx, meta)
		took := time.Since(start)

		m.tracer.EndSpan(span, err)
		m.metrics.RecordStage(ctx, meta, took, err)

		log := m.logger.WithCall(meta)
		elapsed := Field{Key: "duration_ms", Value: float64(took.Microseconds()) / 1000}
		if err != nil {
			log.Error(ctx, "stage failed", elapsed, Field{Key: "error", Value: err.Error()})
		} else {
			log.Debug(ctx, "stage completed", elapsed)
		}
		return err
	}
}

// RecordCache counts a cache lookup and logs hits at debug level.
func (m *Middleware) RecordCache(ctx context.Context, meta CallMeta, hit bool) {
	m.metrics.RecordCache(ctx, meta, hit)
	if hit {
		m.logger.WithCall(meta).Debug(ctx, "cache hit")
	}
}

func (m *Middleware) Logger() Logger {
	return m.logger
}
