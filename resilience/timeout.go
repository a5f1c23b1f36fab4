package resilience

import (
	"context"
	"errors"
	"time"
)

// Timeout bounds an operation by a deadline. The caller is released at the
// deadline even if the operation ignores its context; such an operation
// finishes in the background.
type Timeout struct {
	d time.Duration
}

// NewTimeout returns a Timeout of d. Non-positive d defaults to 30s.
func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		d = 30 * time.Second
	}
	return &Timeout{d: d}
}

// Duration returns the deadline length.
func (t *Timeout) Duration() time.Duration { return t.d }

// Execute runs op under the deadline. A missed deadline is ErrTimeout; an
// ended parent context is returned as is.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(opCtx) }()

	select {
	case err := <-done:
		if err != nil && ctx.Err() == nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return err
	case <-opCtx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrTimeout
	}
}
