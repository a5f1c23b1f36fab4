package cache

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// backends returns every backend that runs without external services.
func backends(t *testing.T) map[string]Cache {
	t.Helper()

	st, err := NewSturdycCache(SturdycConfig{
		Capacity:           100,
		NumShards:          4,
		TTL:                time.Minute,
		EvictionPercentage: 10,
	})
	if err != nil {
		t.Fatalf("NewSturdycCache: %v", err)
	}

	sq, err := OpenSQLiteCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteCache: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })

	return map[string]Cache{
		"memory":  NewMemoryCache(0),
		"sturdyc": st,
		"sqlite":  sq,
	}
}

func TestBackends_GetSetDelete(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if val, ok := c.Get(ctx, "nonexistent"); ok || val != nil {
				t.Errorf("Get on empty cache = (%q, %v), want (nil, false)", val, ok)
			}

			value := []byte("test-value")
			if err := c.Set(ctx, "k", value, time.Minute); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			got, ok := c.Get(ctx, "k")
			if !ok || !bytes.Equal(got, value) {
				t.Errorf("Get after Set = (%q, %v), want (%q, true)", got, ok, value)
			}

			if err := c.Delete(ctx, "k"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, ok := c.Get(ctx, "k"); ok {
				t.Error("Get after Delete should miss")
			}
			if err := c.Delete(ctx, "k"); err != nil {
				t.Errorf("Delete should be idempotent, got %v", err)
			}
		})
	}
}

func TestBackends_ZeroTTLStoresNothing(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			if _, ok := c.Get(ctx, "k"); ok {
				t.Error("TTL=0 must not store")
			}
		})
	}
}

func TestBackends_StoredValueIsCopied(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			value := []byte("abc")
			_ = c.Set(ctx, "k", value, time.Minute)
			value[0] = 'z'
			got, _ := c.Get(ctx, "k")
			if string(got) != "abc" {
				t.Errorf("stored value aliased caller buffer: %q", got)
			}
		})
	}
}

func TestBackends_Overwrite(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_ = c.Set(ctx, "k", []byte("one"), time.Minute)
			_ = c.Set(ctx, "k", []byte("two"), time.Minute)
			got, _ := c.Get(ctx, "k")
			if string(got) != "two" {
				t.Errorf("Get = %q, want last write", got)
			}
		})
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(0)
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), time.Second)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Error("Get before expiry should hit")
	}

	now = now.Add(time.Second)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("Get at expiry should miss")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not removed, Len() = %d", c.Len())
	}
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryCache(2)
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), time.Minute)
	_ = c.Set(ctx, "b", []byte("2"), time.Minute)
	_, _ = c.Get(ctx, "a")
	_ = c.Set(ctx, "c", []byte("3"), time.Minute)

	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	if _, ok := c.Get(ctx, "b"); ok {
		t.Error("b was least recently used and should be gone")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(ctx, k); !ok {
			t.Errorf("%s evicted", k)
		}
	}

	// overwriting an existing key never evicts
	_ = c.Set(ctx, "c", []byte("4"), time.Minute)
	if c.Len() != 2 {
		t.Errorf("Len() after overwrite = %d, want 2", c.Len())
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := NewMemoryCache(0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%5))
			_ = c.Set(ctx, key, []byte{byte(i)}, time.Minute)
			_, _ = c.Get(ctx, key)
			if i%7 == 0 {
				_ = c.Delete(ctx, key)
			}
		}(i)
	}
	wg.Wait()
}

func TestSQLiteCache_ExpiryAndPurge(t *testing.T) {
	c, err := OpenSQLiteCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteCache: %v", err)
	}
	defer func() { _ = c.Close() }()

	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.Set(ctx, "short", []byte("v"), time.Second)
	_ = c.Set(ctx, "long", []byte("v"), time.Hour)

	now = now.Add(2 * time.Second)

	if _, ok := c.Get(ctx, "short"); ok {
		t.Error("expired row should miss")
	}
	if _, ok := c.Get(ctx, "long"); !ok {
		t.Error("live row should hit")
	}

	_ = c.Set(ctx, "short2", []byte("v"), time.Second)
	now = now.Add(2 * time.Second)
	n, err := c.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeExpired removed %d rows, want 1", n)
	}
	if err := c.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestSQLiteCache_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	c, err := OpenSQLiteCache(path)
	if err != nil {
		t.Fatalf("OpenSQLiteCache: %v", err)
	}
	_ = c.Set(ctx, "k", []byte("kept"), time.Hour)
	_ = c.Close()

	c, err = OpenSQLiteCache(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = c.Close() }()

	got, ok := c.Get(ctx, "k")
	if !ok || string(got) != "kept" {
		t.Errorf("Get after reopen = (%q, %v)", got, ok)
	}
}

func TestSturdycConfig_Validate(t *testing.T) {
	base := DefaultSturdycConfig()
	if err := base.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*SturdycConfig)
	}{
		{"capacity", func(c *SturdycConfig) { c.Capacity = 0 }},
		{"shards", func(c *SturdycConfig) { c.NumShards = 0 }},
		{"ttl", func(c *SturdycConfig) { c.TTL = 0 }},
		{"eviction low", func(c *SturdycConfig) { c.EvictionPercentage = 0 }},
		{"eviction high", func(c *SturdycConfig) { c.EvictionPercentage = 101 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected error")
			}
			if _, err := NewSturdycCache(cfg); err == nil {
				t.Error("NewSturdycCache accepted invalid config")
			}
		})
	}
}

func TestRedisCache_UnreachableFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer func() { _ = client.Close() }()

	c := NewRedisCache(client, "")
	ctx := context.Background()

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("unreachable redis should miss")
	}
	if _, _, err := c.Fetch(ctx, "k"); err == nil {
		t.Error("Fetch against unreachable redis should report the error")
	}
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err == nil {
		t.Error("Set against unreachable redis should error")
	}
	if err := c.Ping(ctx); err == nil {
		t.Error("Ping against unreachable redis should error")
	}
	if c.prefix != DefaultRedisPrefix {
		t.Errorf("prefix = %q, want default", c.prefix)
	}
}
