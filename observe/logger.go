package observe

import (
	"context"
	"encoding/json"
	"io"
	"maps"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Logger writes structured entries.
//
// Implementations are safe for concurrent use. Logging is best effort and
// never panics.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)

	// WithCall scopes the logger to one pipeline stage.
	WithCall(meta CallMeta) Logger
	// With adds fields to every entry.
	With(fields ...Field) Logger
}

// Field is one structured attribute.
type Field struct {
	Key   string
	Value any
}

// LogLevel orders entries by severity.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"debug", "info", "warn", "error"}

// ParseLogLevel maps a level name to its LogLevel. Unknown names are info.
func ParseLogLevel(s string) LogLevel {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return LogLevel(i)
		}
	}
	return LevelInfo
}

func (l LogLevel) String() string {
	if l < LevelDebug || l > LevelError {
		return "info"
	}
	return levelNames[l]
}

// RedactedFields are field keys whose values never reach the output.
var RedactedFields = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"apiKey",
	"credential",
	"authorization",
	"cookie",
	"set-cookie",
}

var redactedKeys = func() map[string]bool {
	m := make(map[string]bool, len(RedactedFields))
	for _, k := range RedactedFields {
		m[strings.ToLower(k)] = true
	}
	return m
}()

func redact(f Field) any {
	if redactedKeys[strings.ToLower(f.Key)] {
		return "[REDACTED]"
	}
	return f.Value
}

// jsonLogger writes one JSON object per line. Loggers derived with With
// and WithCall share the writer and its lock.
type jsonLogger struct {
	level LogLevel
	out   *syncWriter
	attrs map[string]any
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) write(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.w.Write(b)
}

// NewLogger returns a JSON logger writing to stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter returns a JSON logger writing to w.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return &jsonLogger{level: ParseLogLevel(level), out: &syncWriter{w: w}}
}

func (l *jsonLogger) WithCall(meta CallMeta) Logger {
	fields := []Field{{Key: "call.id", Value: meta.CallID()}}
	if meta.Stage != "" {
		fields = append(fields, Field{Key: "call.stage", Value: meta.Stage})
	}
	if meta.Method != "" {
		fields = append(fields, Field{Key: "route.method", Value: meta.Method})
	}
	if meta.Path != "" {
		fields = append(fields, Field{Key: "route.path", Value: meta.Path})
	}
	return l.With(fields...)
}

func (l *jsonLogger) With(fields ...Field) Logger {
	attrs := make(map[string]any, len(l.attrs)+len(fields))
	maps.Copy(attrs, l.attrs)
	for _, f := range fields {
		attrs[f.Key] = redact(f)
	}
	return &jsonLogger{level: l.level, out: l.out, attrs: attrs}
}

func (l *jsonLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelInfo, msg, fields)
}

func (l *jsonLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelWarn, msg, fields)
}

func (l *jsonLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelError, msg, fields)
}

func (l *jsonLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelDebug, msg, fields)
}

func (l *jsonLogger) log(ctx context.Context, level LogLevel, msg string, fields []Field) {
	if level < l.level {
		return
	}

	entry := make(map[string]any, len(l.attrs)+len(fields)+5)
	maps.Copy(entry, l.attrs)
	for _, f := range fields {
		entry[f.Key] = redact(f)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		entry["trace_id"] = sc.TraceID().String()
		entry["span_id"] = sc.SpanID().String()
	}
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	entry["timestamp"] = ts
	entry["level"] = level.String()
	entry["msg"] = msg

	b, err := json.Marshal(entry)
	if err != nil {
		// a field value json cannot encode; keep the message
		b, _ = json.Marshal(map[string]any{
			"timestamp": ts,
			"level":     level.String(),
			"msg":       msg,
			"log_error": err.Error(),
		})
	}
	l.out.write(append(b, '\n'))
}

type nopLogger struct{}

func (nopLogger) Info(context.Context, string, ...Field)  {}
func (nopLogger) Warn(context.Context, string, ...Field)  {}
func (nopLogger) Error(context.Context, string, ...Field) {}
func (nopLogger) Debug(context.Context, string, ...Field) {}
func (n nopLogger) WithCall(CallMeta) Logger              { return n }
func (n nopLogger) With(...Field) Logger                  { return n }

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return nopLogger{}
}

var _ Logger = (*jsonLogger)(nil)
