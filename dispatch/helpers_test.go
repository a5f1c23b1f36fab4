package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/calldispatch/cache"
	"github.com/jonwraymond/calldispatch/route"
)

// countingHandler returns out/err and counts invocations.
type countingHandler struct {
	calls atomic.Int32
	out   Outcome
	err   error
}

func (h *countingHandler) handle(context.Context, *RequestContext) (Outcome, error) {
	h.calls.Add(1)
	return h.out, h.err
}

// recordingCache wraps a MemoryCache and records keys and failures.
type recordingCache struct {
	*cache.MemoryCache
	mu      sync.Mutex
	gets    []string
	sets    []string
	failSet error
}

func newRecordingCache() *recordingCache {
	return &recordingCache{MemoryCache: cache.NewMemoryCache(0)}
}

func (c *recordingCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	c.gets = append(c.gets, key)
	c.mu.Unlock()
	return c.MemoryCache.Get(ctx, key)
}

func (c *recordingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	c.sets = append(c.sets, key)
	c.mu.Unlock()
	if c.failSet != nil {
		return c.failSet
	}
	return c.MemoryCache.Set(ctx, key, value, ttl)
}

func (c *recordingCache) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sets)
}

func cachedCall(library, callback string) *route.Call {
	return &route.Call{
		Method:   "GET",
		Path:     "/" + callback,
		Library:  library,
		Callback: callback,
		Caching:  route.CachingPolicy{Enabled: true},
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func boolPtr(b bool) *bool { return &b }
