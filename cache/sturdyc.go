package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/viccon/sturdyc"
)

// SturdycConfig configures the sharded in-process backend.
type SturdycConfig struct {
	// Capacity is the maximum number of entries. Must be greater than 0.
	Capacity int

	// NumShards spreads entries across independently locked shards.
	NumShards int

	// TTL applies to every entry; sturdyc has no per-entry TTL.
	TTL time.Duration

	// EvictionPercentage is evicted when a shard is full. 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often expired entries are swept.
	// Zero uses the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultSturdycConfig returns 10000 entries over 64 shards with a 5 minute TTL.
func DefaultSturdycConfig() SturdycConfig {
	return SturdycConfig{
		Capacity:           10000,
		NumShards:          64,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}
}

// Validate checks the configuration.
func (c SturdycConfig) Validate() error {
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("cache: sturdyc capacity must be greater than 0")
	case c.NumShards <= 0:
		return fmt.Errorf("cache: sturdyc shards must be greater than 0")
	case c.TTL <= 0:
		return fmt.Errorf("cache: sturdyc ttl must be greater than 0")
	case c.EvictionPercentage < 1 || c.EvictionPercentage > 100:
		return fmt.Errorf("cache: sturdyc eviction percentage must be between 1 and 100")
	}
	return nil
}

// SturdycCache adapts a sturdyc client to Cache.
//
// Entries live for the configured TTL. A Set with a positive ttl stores the
// value; the per-call ttl cannot shorten the client TTL, so startup rejects
// calls that ask for less.
type SturdycCache struct {
	client *sturdyc.Client[[]byte]
}

// NewSturdycCache validates cfg and creates the client.
func NewSturdycCache(cfg SturdycConfig) (*SturdycCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []sturdyc.Option
	if cfg.EvictionInterval > 0 {
		opts = append(opts, sturdyc.WithEvictionInterval(cfg.EvictionInterval))
	}

	client := sturdyc.New[[]byte](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		opts...,
	)
	return &SturdycCache{client: client}, nil
}

// Get retrieves a value. Returns (nil, false) on miss.
func (c *SturdycCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := c.client.Get(key)
	if !ok {
		return nil, false
	}
	return v, true
}

// Set stores value when ttl is positive.
func (c *SturdycCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	c.client.Set(key, stored)
	return nil
}

// Delete removes a value. Idempotent.
func (c *SturdycCache) Delete(_ context.Context, key string) error {
	c.client.Delete(key)
	return nil
}

// Len returns the number of stored entries.
func (c *SturdycCache) Len() int {
	return c.client.Size()
}

// Ping always succeeds.
func (c *SturdycCache) Ping(context.Context) error {
	return nil
}

var (
	_ Cache  = (*SturdycCache)(nil)
	_ Pinger = (*SturdycCache)(nil)
)
