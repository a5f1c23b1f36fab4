package cache

import "time"

// Policy bounds how long dispatch results live in the cache.
//
// Whether a given call is cacheable is decided by the call's own caching
// policy; Policy only supplies TTLs.
type Policy struct {
	// DefaultTTL applies when a call declares no TTL.
	// If zero, nothing is stored.
	DefaultTTL time.Duration

	// MaxTTL caps per-call TTLs. Zero means no cap.
	MaxTTL time.Duration
}

// DefaultPolicy returns a 5 minute default TTL capped at 1 hour.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: 5 * time.Minute,
		MaxTTL:     time.Hour,
	}
}

// NoCachePolicy returns a policy that stores nothing.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache returns true if this policy stores anything at all.
func (p Policy) ShouldCache() bool {
	return p.DefaultTTL > 0
}

// EffectiveTTL returns the TTL for a call declaring override.
// Non-positive overrides fall back to DefaultTTL; the result is clamped to MaxTTL.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}
