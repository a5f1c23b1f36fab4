package observe

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names. The prometheus exporter renders them with underscores
// and a _total suffix on counters.
const (
	MetricStageRuns     = "dispatch.stage.runs"
	MetricStageDuration = "dispatch.stage.duration"
	MetricCacheLookups  = "dispatch.cache.lookups"
)

// stageBuckets spans in-process handlers to slow remote calls, in seconds.
var stageBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics records stage runs and cache lookups. Implementations must be
// safe for concurrent use and return quickly.
type Metrics interface {
	RecordStage(ctx context.Context, meta CallMeta, duration time.Duration, err error)
	RecordCache(ctx context.Context, meta CallMeta, hit bool)
}

type stageMetrics struct {
	runs     metric.Int64Counter
	duration metric.Float64Histogram
	lookups  metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*stageMetrics, error) {
	var m stageMetrics
	var errs [3]error
	m.runs, errs[0] = meter.Int64Counter(MetricStageRuns,
		metric.WithDescription("Pipeline stage runs by outcome"),
		metric.WithUnit("{run}"))
	m.duration, errs[1] = meter.Float64Histogram(MetricStageDuration,
		metric.WithDescription("Pipeline stage latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...))
	m.lookups, errs[2] = meter.Int64Counter(MetricCacheLookups,
		metric.WithDescription("Outcome cache lookups by result"),
		metric.WithUnit("{lookup}"))
	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return &m, nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *stageMetrics) RecordStage(ctx context.Context, meta CallMeta, duration time.Duration, err error) {
	call := []attribute.KeyValue{
		attribute.String("call.id", meta.CallID()),
		attribute.String("call.stage", meta.Stage),
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(append(call, attribute.String("outcome", outcome(err)))...))
	m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(call...))
}

func (m *stageMetrics) RecordCache(ctx context.Context, meta CallMeta, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("call.id", meta.CallID()),
		attribute.String("cache.result", result),
	))
}

type noopMetrics struct{}

func (noopMetrics) RecordStage(context.Context, CallMeta, time.Duration, error) {}
func (noopMetrics) RecordCache(context.Context, CallMeta, bool) {}
