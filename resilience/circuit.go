package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is a circuit breaker state.
type State int

const (
	// StateClosed lets every operation through.
	StateClosed State = iota
	// StateOpen refuses operations until the reset timeout has passed.
	StateOpen
	// StateHalfOpen lets a limited number of probes through.
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	// Name identifies the guarded dependency, for example "cache:redis".
	Name string

	// MaxFailures consecutive failures open the circuit. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before probing.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMaxRequests bounds the probes let through while half-open.
	// Default: 1.
	HalfOpenMaxRequests int

	// IsFailure classifies operation errors. Default: any error except
	// context.Canceled, since a caller giving up says nothing about the
	// dependency.
	IsFailure func(err error) bool

	// OnStateChange is called after each transition, outside the
	// breaker's lock.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker stops calling a dependency after repeated failures and
// lets a probe through once ResetTimeout has passed.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probes   int
}

type transition struct{ from, to State }

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return newCircuitBreaker(config, time.Now)
}

func newCircuitBreaker(config CircuitBreakerConfig, now func() time.Time) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}
	return &CircuitBreaker{config: config, now: now}
}

// Name returns the configured name.
func (cb *CircuitBreaker) Name() string { return cb.config.Name }

// Execute runs op unless the circuit is open, and records its outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := op(ctx)
	cb.record(err)
	return err
}

// State returns the current state, moving an expired open circuit to
// half-open.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	t := cb.expireLocked()
	s := cb.state
	cb.mu.Unlock()
	cb.notify(t)
	return s
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	t := cb.moveLocked(StateClosed)
	cb.mu.Unlock()
	cb.notify(t)
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	t := cb.expireLocked()
	var err error
	switch cb.state {
	case StateOpen:
		err = cb.openError()
	case StateHalfOpen:
		if cb.probes >= cb.config.HalfOpenMaxRequests {
			err = cb.openError()
		} else {
			cb.probes++
		}
	}
	cb.mu.Unlock()
	cb.notify(t)
	return err
}

func (cb *CircuitBreaker) record(err error) {
	failed := cb.config.IsFailure(err)

	cb.mu.Lock()
	var t transition
	switch cb.state {
	case StateClosed:
		if !failed {
			cb.failures = 0
			break
		}
		cb.failures++
		if cb.failures >= cb.config.MaxFailures {
			t = cb.moveLocked(StateOpen)
		}
	case StateHalfOpen:
		if failed {
			t = cb.moveLocked(StateOpen)
		} else {
			t = cb.moveLocked(StateClosed)
		}
	}
	cb.mu.Unlock()
	cb.notify(t)
}

// expireLocked moves an open circuit whose timeout has passed to half-open.
func (cb *CircuitBreaker) expireLocked() transition {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.config.ResetTimeout {
		return cb.moveLocked(StateHalfOpen)
	}
	return transition{}
}

func (cb *CircuitBreaker) moveLocked(to State) transition {
	from := cb.state
	cb.state = to
	switch to {
	case StateOpen:
		cb.openedAt = cb.now()
	case StateHalfOpen:
		cb.probes = 0
	case StateClosed:
		cb.failures = 0
	}
	return transition{from: from, to: to}
}

func (cb *CircuitBreaker) notify(t transition) {
	if t.from != t.to && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, t.from, t.to)
	}
}

func (cb *CircuitBreaker) openError() error {
	if cb.config.Name == "" {
		return ErrCircuitOpen
	}
	return fmt.Errorf("%w: %s", ErrCircuitOpen, cb.config.Name)
}
