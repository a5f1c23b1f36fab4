package resilience

import (
	"context"
	"time"
)

// Executor runs operations through a fixed stack of guards: circuit
// breaker outermost, then retry, then a timeout on each attempt. One
// breaker verdict covers all attempts of an operation.
type Executor struct {
	breaker *CircuitBreaker
	guards  []guard
}

type guard interface {
	Execute(ctx context.Context, op func(context.Context) error) error
}

type executorConfig struct {
	breaker *CircuitBreaker
	retry   *Retry
	timeout *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*executorConfig)

// WithCircuitBreaker adds cb as the outermost guard.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(c *executorConfig) { c.breaker = cb }
}

// WithRetry retries failed attempts inside the breaker.
func WithRetry(r *Retry) ExecutorOption {
	return func(c *executorConfig) { c.retry = r }
}

// WithTimeout bounds each attempt. Non-positive d adds no timeout.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(c *executorConfig) {
		if d > 0 {
			c.timeout = NewTimeout(d)
		}
	}
}

// NewExecutor assembles the configured guards. With none it runs
// operations directly.
func NewExecutor(opts ...ExecutorOption) *Executor {
	var c executorConfig
	for _, opt := range opts {
		opt(&c)
	}

	e := &Executor{breaker: c.breaker}
	if c.breaker != nil {
		e.guards = append(e.guards, c.breaker)
	}
	if c.retry != nil {
		e.guards = append(e.guards, c.retry)
	}
	if c.timeout != nil {
		e.guards = append(e.guards, c.timeout)
	}
	return e
}

// CircuitBreaker returns the breaker, or nil.
func (e *Executor) CircuitBreaker() *CircuitBreaker {
	return e.breaker
}

// Execute runs op through every guard.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	return e.run(ctx, 0, op)
}

func (e *Executor) run(ctx context.Context, i int, op func(context.Context) error) error {
	if i == len(e.guards) {
		return op(ctx)
	}
	return e.guards[i].Execute(ctx, func(ctx context.Context) error {
		return e.run(ctx, i+1, op)
	})
}
