package resilience

import (
	"context"
	"sync/atomic"
	"time"
)

// BulkheadConfig configures a Bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent is the number of slots. Default: 10.
	MaxConcurrent int

	// MaxWait is how long Acquire waits for a free slot. Zero refuses at
	// once.
	MaxWait time.Duration
}

// Bulkhead caps the number of operations in flight.
type Bulkhead struct {
	slots    chan struct{}
	wait     time.Duration
	rejected atomic.Int64
}

// NewBulkhead returns an empty bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	return &Bulkhead{
		slots: make(chan struct{}, config.MaxConcurrent),
		wait:  config.MaxWait,
	}
}

// Acquire takes a slot. Every successful Acquire must be paired with a
// Release.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.slots <- struct{}{}:
		return nil
	default:
	}
	if b.wait <= 0 {
		b.rejected.Add(1)
		return ErrBulkheadFull
	}

	timer := time.NewTimer(b.wait)
	defer timer.Stop()
	select {
	case b.slots <- struct{}{}:
		return nil
	case <-timer.C:
		b.rejected.Add(1)
		return ErrBulkheadFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot. A Release without a matching Acquire is ignored.
func (b *Bulkhead) Release() {
	select {
	case <-b.slots:
	default:
	}
}

// Execute runs op inside a slot.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return op(ctx)
}

// InFlight returns the number of slots taken.
func (b *Bulkhead) InFlight() int { return len(b.slots) }

// Capacity returns the number of slots.
func (b *Bulkhead) Capacity() int { return cap(b.slots) }

// Rejected returns how many Acquire calls found the bulkhead full.
func (b *Bulkhead) Rejected() int64 { return b.rejected.Load() }
