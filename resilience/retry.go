package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig configures Retry.
type RetryConfig struct {
	// MaxAttempts counts the first call. Default: 3.
	MaxAttempts int

	// InitialDelay is the wait after the first failure. Default: 100ms.
	InitialDelay time.Duration

	// MaxDelay caps any single wait. Default: 30s.
	MaxDelay time.Duration

	// Multiplier grows the delay after each failure. Default: 2.
	Multiplier float64

	// Jitter shortens each delay by a random amount of up to a quarter.
	Jitter bool

	// RetryIf reports whether err is worth another attempt. Default: any
	// error except context cancellation and expiry.
	RetryIf func(err error) bool

	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry re-runs a failing operation with exponential backoff.
type Retry struct {
	config RetryConfig
	wait   func(context.Context, time.Duration) error
}

// NewRetry applies defaults to config.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}
	}
	return &Retry{config: config, wait: sleep}
}

// Config returns the configuration with defaults applied.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// Execute calls op until it succeeds, RetryIf refuses the error, or the
// attempts run out. It returns the last error, or ctx's error when the
// context ends during a wait.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if attempt >= r.config.MaxAttempts || !r.config.RetryIf(err) {
			return err
		}

		delay := r.Backoff(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}
		if werr := r.wait(ctx, delay); werr != nil {
			return werr
		}
	}
}

// Backoff returns the wait after failed attempt n, counting from 1.
func (r *Retry) Backoff(n int) time.Duration {
	d := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(n-1))
	delay := time.Duration(min(d, float64(r.config.MaxDelay)))
	if r.config.Jitter && delay >= 4 {
		// #nosec G404 -- timing variance, not a secret.
		delay -= time.Duration(rand.Int64N(int64(delay / 4)))
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
