package resilience

import "errors"

var (
	// ErrCircuitOpen is returned without running the operation while a
	// breaker is open. Breakers with a name wrap it as "...: <name>".
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRateLimitExceeded is returned when no token is available.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull is returned when every slot is taken.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when an operation misses its deadline.
	ErrTimeout = errors.New("resilience: operation timed out")
)
