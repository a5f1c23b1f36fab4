package server

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/calldispatch/dispatch"
	"github.com/jonwraymond/calldispatch/observe"
	"github.com/jonwraymond/calldispatch/resilience"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

type requestIDKey struct{}

// RequestID tags each request with an id. A well-formed UUID sent by the
// client is kept; anything else is replaced.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// GetRequestID returns the id set by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// statusRecorder captures the status code written downstream.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logging logs every request on completion, and its start at debug level.
func Logging(logger observe.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()
			reqLog := logger.With(
				observe.Field{Key: "request_id", Value: GetRequestID(ctx)},
				observe.Field{Key: "method", Value: r.Method},
				observe.Field{Key: "path", Value: r.URL.Path},
			)
			reqLog.Debug(ctx, "request started", observe.Field{Key: "remote_addr", Value: r.RemoteAddr})

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			reqLog.Info(ctx, "request completed",
				observe.Field{Key: "status", Value: rec.status},
				observe.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
			)
		})
	}
}

// Recover turns a handler panic into a 500 failure envelope.
func Recover(logger observe.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}
				logger.Error(r.Context(), "handler panicked",
					observe.Field{Key: "request_id", Value: GetRequestID(r.Context())},
					observe.Field{Key: "panic", Value: v},
					observe.Field{Key: "stack", Value: string(debug.Stack())},
				)
				writeJSON(w, http.StatusInternalServerError,
					dispatch.FailureBody(dispatch.NewError(CodeInternal, "internal error"), nil))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// rejectEnvelope answers requests refused by admission control with a
// failure envelope and the admission status code.
func rejectEnvelope(w http.ResponseWriter, _ *http.Request, err error, retryAfter time.Duration) {
	resilience.SetRetryAfter(w, retryAfter)
	status := resilience.StatusFor(err)
	code := CodeOverloaded
	if status == http.StatusTooManyRequests {
		code = CodeRateLimited
	}
	writeJSON(w, status, dispatch.FailureBody(dispatch.NewError(code, err.Error()), nil))
}
