package resilience

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// KeyFunc extracts the key a request is rate limited under.
type KeyFunc func(r *http.Request) string

// ClientIP keys requests by the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// KeyedRateLimiter keeps one token bucket per key. Buckets unused for
// longer than the idle period are dropped on a later lookup.
type KeyedRateLimiter struct {
	config RateLimiterConfig
	idle   time.Duration
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*keyedBucket
	lastSweep time.Time
}

type keyedBucket struct {
	limiter *RateLimiter
	seen    time.Time
}

// NewKeyedRateLimiter creates a keyed limiter. idle <= 0 defaults to 10 minutes.
func NewKeyedRateLimiter(config RateLimiterConfig, idle time.Duration) *KeyedRateLimiter {
	return newKeyedRateLimiter(config, idle, time.Now)
}

func newKeyedRateLimiter(config RateLimiterConfig, idle time.Duration, now func() time.Time) *KeyedRateLimiter {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &KeyedRateLimiter{
		config:    config,
		idle:      idle,
		now:       now,
		buckets:   make(map[string]*keyedBucket),
		lastSweep: now(),
	}
}

// Limiter returns the bucket for key, creating it on first use.
func (k *KeyedRateLimiter) Limiter(key string) *RateLimiter {
	now := k.now()

	k.mu.Lock()
	defer k.mu.Unlock()

	if now.Sub(k.lastSweep) > k.idle {
		for key, b := range k.buckets {
			if now.Sub(b.seen) > k.idle {
				delete(k.buckets, key)
			}
		}
		k.lastSweep = now
	}

	b, ok := k.buckets[key]
	if !ok {
		b = &keyedBucket{limiter: newRateLimiter(k.config, k.now)}
		k.buckets[key] = b
	}
	b.seen = now
	return b.limiter
}

// Len returns the number of live buckets.
func (k *KeyedRateLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

// RejectFunc writes the response for a request refused admission.
// retryAfter is zero when unknown.
type RejectFunc func(w http.ResponseWriter, r *http.Request, err error, retryAfter time.Duration)

// AdmissionConfig configures Admission. Every guard is optional.
type AdmissionConfig struct {
	// Limiter is a server-wide rate limit.
	Limiter *RateLimiter

	// PerClient limits each key returned by Key (default ClientIP).
	PerClient *KeyedRateLimiter
	Key       KeyFunc

	// Bulkhead caps requests in flight.
	Bulkhead *Bulkhead

	// Reject defaults to a plain-text error with StatusFor's code.
	Reject RejectFunc
}

// StatusFor maps an admission error to an HTTP status.
func StatusFor(err error) int {
	if errors.Is(err, ErrRateLimitExceeded) {
		return http.StatusTooManyRequests
	}
	return http.StatusServiceUnavailable
}

// SetRetryAfter sets the Retry-After header in whole seconds, rounding up.
func SetRetryAfter(w http.ResponseWriter, d time.Duration) {
	if d <= 0 {
		return
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
}

func defaultReject(w http.ResponseWriter, _ *http.Request, err error, retryAfter time.Duration) {
	SetRetryAfter(w, retryAfter)
	http.Error(w, err.Error(), StatusFor(err))
}

// Admission returns middleware that applies the per-client limit, then the
// server-wide limit, then the bulkhead.
func Admission(cfg AdmissionConfig) func(http.Handler) http.Handler {
	if cfg.Key == nil {
		cfg.Key = ClientIP
	}
	if cfg.Reject == nil {
		cfg.Reject = defaultReject
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.PerClient != nil {
				if ok, wait := cfg.PerClient.Limiter(cfg.Key(r)).Reserve(); !ok {
					cfg.Reject(w, r, ErrRateLimitExceeded, wait)
					return
				}
			}
			if cfg.Limiter != nil {
				if ok, wait := cfg.Limiter.Reserve(); !ok {
					cfg.Reject(w, r, ErrRateLimitExceeded, wait)
					return
				}
			}
			if cfg.Bulkhead != nil {
				if err := cfg.Bulkhead.Acquire(r.Context()); err != nil {
					cfg.Reject(w, r, err, 0)
					return
				}
				defer cfg.Bulkhead.Release()
			}
			next.ServeHTTP(w, r)
		})
	}
}
