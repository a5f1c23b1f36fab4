package cache

import (
	"context"
	"time"
)

// Executor runs an operation under some failure policy, such as
// resilience.Executor with a circuit breaker and timeout.
type Executor interface {
	Execute(ctx context.Context, op func(context.Context) error) error
}

// Fetcher is implemented by backends whose reads can fail for reasons other
// than a miss. Fetch reports (nil, false, nil) on a miss.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, bool, error)
}

// Guarded routes every operation on a remote backend through an Executor.
// A read refused or failed by the executor is a miss, so an unreachable
// backend degrades dispatch to uncached execution.
type Guarded struct {
	inner Cache
	exec  Executor
}

// NewGuarded wraps inner. Reads only count as failures when inner
// implements Fetcher.
func NewGuarded(inner Cache, exec Executor) *Guarded {
	return &Guarded{inner: inner, exec: exec}
}

// Get returns (nil, false) on miss, backend error, or an open guard.
func (g *Guarded) Get(ctx context.Context, key string) ([]byte, bool) {
	var (
		val []byte
		ok  bool
	)
	err := g.exec.Execute(ctx, func(ctx context.Context) error {
		if f, isFetcher := g.inner.(Fetcher); isFetcher {
			var err error
			val, ok, err = f.Fetch(ctx, key)
			return err
		}
		val, ok = g.inner.Get(ctx, key)
		return nil
	})
	if err != nil {
		return nil, false
	}
	return val, ok
}

// Set stores value through the executor.
func (g *Guarded) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return g.exec.Execute(ctx, func(ctx context.Context) error {
		return g.inner.Set(ctx, key, value, ttl)
	})
}

// Delete removes key through the executor.
func (g *Guarded) Delete(ctx context.Context, key string) error {
	return g.exec.Execute(ctx, func(ctx context.Context) error {
		return g.inner.Delete(ctx, key)
	})
}

// Ping bypasses the executor so health checks see the backend itself.
func (g *Guarded) Ping(ctx context.Context) error {
	if p, ok := g.inner.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

var (
	_ Cache  = (*Guarded)(nil)
	_ Pinger = (*Guarded)(nil)
)
