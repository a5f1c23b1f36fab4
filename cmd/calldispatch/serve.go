package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/calldispatch/dispatch"
	"github.com/jonwraymond/calldispatch/health"
	"github.com/jonwraymond/calldispatch/internal/config"
	"github.com/jonwraymond/calldispatch/internal/server"
	"github.com/jonwraymond/calldispatch/observe"
	"github.com/jonwraymond/calldispatch/resilience"
	"github.com/jonwraymond/calldispatch/route"
)

func newServeCmd(register registerFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the route document over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, register)
		},
	}
	cmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides server.port)")
	cmd.Flags().StringP("log-level", "l", "", "Log level: debug, info, warn, error")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, register registerFunc) (err error) {
	doc, err := route.Load(cfg.Server.Routes)
	if err != nil {
		return err
	}
	if err := cfg.CheckRoutes(doc.Routes()); err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	obsCfg := cfg.ObserverConfig(version)
	obsCfg.Registerer = promReg

	obs, err := observe.NewObserver(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		err = errors.Join(err, obs.Shutdown(shutdownCtx))
	}()
	logger := obs.Logger()

	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}

	reg := dispatch.NewRegistry()
	if err := register(reg); err != nil {
		return err
	}

	backend, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, backend.Close()) }()

	opts := []dispatch.Option{dispatch.WithMiddleware(mw)}
	if backend.Cache != nil {
		opts = append(opts, dispatch.WithCache(backend.Cache, cfg.Policy()))
	}
	pipeline := dispatch.New(reg, opts...)

	calls := doc.Routes()
	var agg *health.Aggregator
	if cfg.Server.Health {
		agg = health.NewAggregator()
		if err := agg.Register("routes", health.NewRoutesChecker(calls, reg)); err != nil {
			return err
		}
		if backend.Pinger != nil {
			if err := agg.Register("cache", health.NewCacheChecker(cfg.Cache.Backend, backend.Pinger, 0)); err != nil {
				return err
			}
		}
	}

	for _, u := range health.NewRoutesChecker(calls, reg).Unresolved() {
		logger.Warn(ctx, "unresolved handler", observe.Field{Key: "route", Value: u})
	}

	srvOpts := server.Options{
		Pipeline:     pipeline,
		Calls:        calls,
		Logger:       logger,
		Admission:    admission(cfg.Server),
		Health:       agg,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		ServiceName:  cfg.Observe.ServiceName,
	}
	if cfg.Server.Metrics && cfg.Observe.Metrics.Exporter == "prometheus" {
		srvOpts.Metrics = promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})
	}

	srv, err := server.New(srvOpts)
	if err != nil {
		return err
	}

	logger.Info(ctx, "serving routes",
		observe.Field{Key: "routes", Value: len(calls)},
		observe.Field{Key: "cache", Value: cfg.Cache.Backend},
		observe.Field{Key: "version", Value: version},
	)
	return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Server.Port), server.Timeouts{
		Read:     cfg.Server.ReadTimeout,
		Write:    cfg.Server.WriteTimeout,
		Shutdown: cfg.Server.ShutdownTimeout,
	})
}

// admission builds the admission guards the server section enables, or nil.
func admission(s config.ServerConfig) *resilience.AdmissionConfig {
	var cfg resilience.AdmissionConfig
	if s.RateLimit > 0 {
		cfg.Limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: s.RateLimit, Burst: s.Burst})
	}
	if s.ClientRateLimit > 0 {
		cfg.PerClient = resilience.NewKeyedRateLimiter(resilience.RateLimiterConfig{Rate: s.ClientRateLimit, Burst: s.ClientBurst}, 0)
	}
	if s.MaxConcurrent > 0 {
		cfg.Bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: s.MaxConcurrent})
	}
	if cfg.Limiter == nil && cfg.PerClient == nil && cfg.Bulkhead == nil {
		return nil
	}
	return &cfg
}
