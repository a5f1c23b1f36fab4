package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/calldispatch/cache"
)

// DefaultSlowPing is the ping latency above which a cache reports degraded.
const DefaultSlowPing = 250 * time.Millisecond

// CacheChecker pings a cache backend.
//
// A cache outage never fails a call: lookups become misses and stores are
// dropped. So an unreachable cache is Degraded, not Unhealthy.
type CacheChecker struct {
	backend string
	pinger  cache.Pinger
	slow    time.Duration
}

// NewCacheChecker creates a checker for the named backend. slow <= 0 uses
// DefaultSlowPing.
func NewCacheChecker(backend string, pinger cache.Pinger, slow time.Duration) *CacheChecker {
	if slow <= 0 {
		slow = DefaultSlowPing
	}
	return &CacheChecker{backend: backend, pinger: pinger, slow: slow}
}

func (c *CacheChecker) Check(ctx context.Context) Result {
	start := time.Now()
	err := c.pinger.Ping(ctx)
	latency := time.Since(start)

	var r Result
	switch {
	case err != nil:
		r = Degraded("cache unreachable, calls run uncached")
		r.Err = fmt.Errorf("%w: %v", ErrCheckFailed, err)
	case latency > c.slow:
		r = Degraded(fmt.Sprintf("cache ping slow: %s", latency))
	default:
		r = Healthy("cache reachable")
	}
	return r.With("backend", c.backend).With("latency", latency.String())
}

var _ Checker = (*CacheChecker)(nil)
