package observe

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Accepted exporter and level names. An empty exporter, like "none",
// disables the signal; an empty level is info.
var (
	TracingExporters = []string{"otlp", "stdout", "none", ""}
	MetricsExporters = []string{"otlp", "prometheus", "stdout", "none", ""}
	LogLevels        = []string{"debug", "info", "warn", "error", ""}
)

// Config describes the telemetry of one service.
type Config struct {
	ServiceName string
	Version     string

	// TraceExporter is one of TracingExporters.
	TraceExporter string
	// SampleRatio is the share of root traces kept, from 0 to 1. Traces
	// started upstream follow the caller's decision.
	SampleRatio float64

	// MetricExporter is one of MetricsExporters.
	MetricExporter string
	// Registerer receives the collector of the prometheus exporter. Nil
	// uses the client_golang default registerer, which promhttp.Handler
	// serves.
	Registerer prometheus.Registerer

	// LogLevel is one of LogLevels.
	LogLevel string
	// LogOutput receives log lines. Nil is stderr.
	LogOutput io.Writer
}

// TracingEnabled reports whether a trace exporter is selected.
func (c *Config) TracingEnabled() bool { return enabled(c.TraceExporter) }

// MetricsEnabled reports whether a metrics exporter is selected.
func (c *Config) MetricsEnabled() bool { return enabled(c.MetricExporter) }

func enabled(exporter string) bool {
	return exporter != "" && exporter != "none"
}

// Validate checks names and ranges. The sample ratio only matters, and is
// only checked, when tracing is enabled.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return ErrMissingServiceName
	}
	if !slices.Contains(TracingExporters, c.TraceExporter) {
		return fmt.Errorf("%w: %q", ErrInvalidTracingExporter, c.TraceExporter)
	}
	if c.TracingEnabled() && (c.SampleRatio < 0 || c.SampleRatio > 1) {
		return fmt.Errorf("%w, got: %g", ErrInvalidSamplePct, c.SampleRatio)
	}
	if !slices.Contains(MetricsExporters, c.MetricExporter) {
		return fmt.Errorf("%w: %q", ErrInvalidMetricsExporter, c.MetricExporter)
	}
	if !slices.Contains(LogLevels, c.LogLevel) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	return nil
}
