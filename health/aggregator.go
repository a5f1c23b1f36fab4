package health

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds one Run when no WithTimeout option is given.
const DefaultTimeout = 10 * time.Second

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithTimeout bounds each Run and RunOne. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

type entry struct {
	name    string
	checker Checker
}

// Aggregator runs named checkers concurrently and folds their results into
// one Report whose status is the worst of its checks.
type Aggregator struct {
	timeout time.Duration

	mu      sync.RWMutex
	entries []entry
}

func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register adds checker under name. Registering a name again replaces the
// checker and keeps its position.
func (a *Aggregator) Register(name string, checker Checker) error {
	if name == "" || checker == nil {
		return ErrInvalidChecker
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	i := slices.IndexFunc(a.entries, func(e entry) bool { return e.name == name })
	if i >= 0 {
		a.entries[i].checker = checker
		return nil
	}
	a.entries = append(a.entries, entry{name: name, checker: checker})
	return nil
}

// Names lists registered checkers in registration order.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, len(a.entries))
	for i, e := range a.entries {
		names[i] = e.name
	}
	return names
}

// Report is the outcome of one Run.
type Report struct {
	Status  Status
	Checked time.Time
	Checks  map[string]Result
}

// Run executes every checker. An empty aggregator is healthy.
func (a *Aggregator) Run(ctx context.Context) Report {
	a.mu.RLock()
	entries := slices.Clone(a.entries)
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	report := Report{Checked: time.Now(), Checks: make(map[string]Result, len(entries))}
	results := make([]Result, len(entries))

	var g errgroup.Group
	for i, e := range entries {
		g.Go(func() error {
			results[i] = guard(ctx, e.checker)
			return nil
		})
	}
	_ = g.Wait()

	for i, e := range entries {
		report.Checks[e.name] = results[i]
		report.Status = max(report.Status, results[i].Status)
	}
	return report
}

// RunOne executes the named checker alone.
func (a *Aggregator) RunOne(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	i := slices.IndexFunc(a.entries, func(e entry) bool { return e.name == name })
	var checker Checker
	if i >= 0 {
		checker = a.entries[i].checker
	}
	a.mu.RUnlock()

	if checker == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrCheckerNotFound, name)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return guard(ctx, checker), nil
}

// guard runs checker on its own goroutine so one that ignores ctx cannot
// hold a probe past the deadline. A panic counts as unhealthy.
func guard(ctx context.Context, checker Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- Unhealthy("check panicked", fmt.Errorf("%w: %v", ErrCheckPanicked, p))
			}
		}()
		done <- checker.Check(ctx)
	}()

	var r Result
	select {
	case r = <-done:
	case <-ctx.Done():
		r = Unhealthy("check timed out", ErrCheckTimeout)
	}
	r.Duration = time.Since(start)
	return r
}
