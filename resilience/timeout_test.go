package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestTimeout_Completes(t *testing.T) {
	to := NewTimeout(time.Second)
	if err := to.Execute(context.Background(), healthy); err != nil {
		t.Errorf("Execute() = %v", err)
	}
	if err := to.Execute(context.Background(), failing); !errors.Is(err, errBackendDown) {
		t.Errorf("Execute() = %v, want the op's error", err)
	}
}

func TestTimeout_ReleasesCallerOfStuckOp(t *testing.T) {
	to := NewTimeout(10 * time.Millisecond)
	stuck := make(chan struct{})
	defer close(stuck)

	err := to.Execute(context.Background(), func(context.Context) error {
		<-stuck
		return nil
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Execute() = %v, want ErrTimeout", err)
	}
}

func TestTimeout_DeadlineErrorFromOp(t *testing.T) {
	to := NewTimeout(10 * time.Millisecond)
	err := to.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return fmt.Errorf("redis: %w", ctx.Err())
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Execute() = %v, want ErrTimeout", err)
	}
}

func TestTimeout_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewTimeout(time.Minute).Execute(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() = %v, want context.Canceled", err)
	}
}

func TestTimeout_Default(t *testing.T) {
	if d := NewTimeout(0).Duration(); d != 30*time.Second {
		t.Errorf("Duration() = %v", d)
	}
}
