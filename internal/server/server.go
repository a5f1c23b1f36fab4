// Package server exposes a route document over HTTP: one chi route per call,
// request parameter extraction and validation, the dispatch pipeline, and
// the response emitter.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jonwraymond/calldispatch/dispatch"
	"github.com/jonwraymond/calldispatch/health"
	"github.com/jonwraymond/calldispatch/observe"
	"github.com/jonwraymond/calldispatch/resilience"
	"github.com/jonwraymond/calldispatch/route"
	"github.com/jonwraymond/calldispatch/validate"
)

// PathMetrics serves the Prometheus exposition when metrics are enabled.
const PathMetrics = "/metrics"

// Options configures a Server. Pipeline is required.
type Options struct {
	Pipeline *dispatch.Pipeline
	Calls    []route.Call
	Logger   observe.Logger

	// Admission guards the call routes. Nil admits everything.
	Admission *resilience.AdmissionConfig

	// Health mounts the probe endpoints when set.
	Health *health.Aggregator

	// Metrics is mounted at PathMetrics when set.
	Metrics http.Handler

	// MaxBodyBytes bounds request bodies. Zero is unbounded.
	MaxBodyBytes int64

	// ServiceName names the otelhttp server spans.
	ServiceName string
}

// Server routes requests for the calls of a route document.
type Server struct {
	handler  http.Handler
	pipeline *dispatch.Pipeline
	logger   observe.Logger
	maxBody  int64
}

// New builds the router. It fails when two calls map to conflicting chi
// patterns.
func New(opts Options) (*Server, error) {
	if opts.Pipeline == nil {
		return nil, errors.New("server: pipeline is required")
	}
	if opts.Logger == nil {
		opts.Logger = observe.NopLogger()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "calldispatch"
	}

	s := &Server{
		pipeline: opts.Pipeline,
		logger:   opts.Logger,
		maxBody:  opts.MaxBodyBytes,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logging(opts.Logger))
	r.Use(Recover(opts.Logger))

	if opts.Health != nil {
		health.Mount(r, opts.Health)
	}
	if opts.Metrics != nil {
		r.Method(http.MethodGet, PathMetrics, opts.Metrics)
	}

	var mountErr error
	r.Group(func(g chi.Router) {
		if opts.Admission != nil {
			cfg := *opts.Admission
			if cfg.Reject == nil {
				cfg.Reject = rejectEnvelope
			}
			g.Use(resilience.Admission(cfg))
		}
		for i := range opts.Calls {
			if err := s.mount(g, &opts.Calls[i]); err != nil {
				mountErr = err
				return
			}
		}
	})
	if mountErr != nil {
		return nil, mountErr
	}

	s.handler = otelhttp.NewHandler(r, opts.ServiceName)
	return s, nil
}

// mount registers call on g. chi panics on conflicting patterns; the panic
// is reported as an error naming the call.
func (s *Server) mount(g chi.Router, call *route.Call) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("server: mount %s %s: %v", call.Method, call.Path, v)
		}
	}()
	g.Method(call.Method, Pattern(call.Path), s.handle(call))
	return nil
}

// Pattern converts ":name" path segments to chi's "{name}".
func Pattern(path string) string {
	segs := strings.Split(path, "/")
	for i, seg := range segs {
		if len(seg) > 1 && seg[0] == ':' {
			segs[i] = "{" + seg[1:] + "}"
		}
	}
	return strings.Join(segs, "/")
}

// Handler returns the instrumented root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) handle(call *route.Call) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		params, files, err := extractParams(w, r, s.maxBody)
		if err != nil {
			writeJSON(w, http.StatusOK, dispatch.FailureBody(dispatch.NewError(CodeBadRequest, err.Error()), nil))
			return
		}

		if errs := validate.Validate(call, params, files); !errs.Empty() {
			writeJSON(w, http.StatusOK, dispatch.FailureBody(errs, nil))
			return
		}

		res, err := s.pipeline.Execute(ctx, call, dispatch.NewRequestContext(params, r, w))
		if err != nil {
			s.logger.Error(ctx, "dispatch failed",
				observe.Field{Key: "request_id", Value: GetRequestID(ctx)},
				observe.Field{Key: "call", Value: call.ID()},
				observe.Field{Key: "error", Value: err.Error()},
			)
			writeJSON(w, http.StatusOK, dispatch.FailureBody(dispatch.ErrorValue(err), nil))
			return
		}
		Emit(w, r, res)
	}
}

// Timeouts bound an http.Server started by ListenAndServe.
type Timeouts struct {
	Read     time.Duration
	Write    time.Duration
	Shutdown time.Duration
}

// ListenAndServe serves on addr until ctx is done, then drains in-flight
// requests for up to t.Shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string, t Timeouts) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       t.Read,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      t.Write,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "listening", observe.Field{Key: "addr", Value: addr})
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.Shutdown)
	defer cancel()
	s.logger.Info(ctx, "shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
