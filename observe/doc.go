// Package observe provides observability primitives for call dispatch.
//
// It sets up OpenTelemetry tracing and metrics, offers a JSON structured
// logger, and wraps pipeline stages with spans, counters and logs.
// Consumers wire the observer into the dispatch pipeline and HTTP server.
package observe
