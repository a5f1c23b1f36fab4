package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/calldispatch/cache"
	"github.com/jonwraymond/calldispatch/internal/config"
	"github.com/jonwraymond/calldispatch/observe"
	"github.com/jonwraymond/calldispatch/resilience"
)

// cacheBackend is an opened cache with its optional health probe and the
// function that releases it.
type cacheBackend struct {
	Cache  cache.Cache
	Pinger cache.Pinger
	close  func() error
}

func (b *cacheBackend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// openCache opens the configured backend. Remote backends are wrapped in a
// circuit breaker with a per-operation timeout.
func openCache(ctx context.Context, cfg *config.Config, logger observe.Logger) (*cacheBackend, error) {
	cc := cfg.Cache
	switch cc.Backend {
	case config.BackendNone:
		return &cacheBackend{}, nil

	case config.BackendMemory:
		c := cache.NewMemoryCache(cc.Capacity)
		return &cacheBackend{Cache: c, Pinger: c}, nil

	case config.BackendSturdyc:
		c, err := cache.NewSturdycCache(cfg.SturdycConfig())
		if err != nil {
			return nil, err
		}
		return &cacheBackend{Cache: c, Pinger: c}, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cc.Redis.Addr,
			Password: cc.Redis.Password,
			DB:       cc.Redis.DB,
		})
		guarded := cache.NewGuarded(cache.NewRedisCache(client, cc.Redis.Prefix), breaker(ctx, cc, logger))
		return &cacheBackend{Cache: guarded, Pinger: guarded, close: client.Close}, nil

	case config.BackendSQLite:
		c, err := cache.OpenSQLiteCache(cc.SQLite.Path)
		if err != nil {
			return nil, err
		}
		stop := purgeLoop(ctx, c, cc.SQLite.PurgeInterval, logger)
		return &cacheBackend{Cache: c, Pinger: c, close: func() error {
			stop()
			return c.Close()
		}}, nil
	}
	return nil, fmt.Errorf("%w: cache.backend %q", config.ErrInvalid, cc.Backend)
}

func breaker(ctx context.Context, cc config.CacheConfig, logger observe.Logger) *resilience.Executor {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "cache:" + cc.Backend,
		MaxFailures:  cc.BreakerFailures,
		ResetTimeout: cc.BreakerReset,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn(ctx, "circuit breaker state changed",
				observe.Field{Key: "breaker", Value: name},
				observe.Field{Key: "from", Value: from.String()},
				observe.Field{Key: "to", Value: to.String()},
			)
		},
	})
	return resilience.NewExecutor(
		resilience.WithCircuitBreaker(cb),
		resilience.WithTimeout(cc.Timeout),
	)
}

// purgeLoop deletes expired rows every interval until ctx ends or stop is
// called. A non-positive interval disables it.
func purgeLoop(ctx context.Context, c *cache.SQLiteCache, interval time.Duration, logger observe.Logger) (stop func()) {
	if interval <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := c.PurgeExpired(ctx)
				if err != nil {
					logger.Warn(ctx, "cache purge failed", observe.Field{Key: "error", Value: err.Error()})
					continue
				}
				if n > 0 {
					logger.Debug(ctx, "cache purged", observe.Field{Key: "rows", Value: n})
				}
			}
		}
	}()
	return cancel
}
