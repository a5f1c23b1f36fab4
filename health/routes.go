package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/calldispatch/dispatch"
	"github.com/jonwraymond/calldispatch/route"
)

// RoutesChecker verifies that every handler the route table references,
// request or auth, is registered. An unresolved handler answers every call
// on its route with an error envelope, so any gap is Unhealthy.
type RoutesChecker struct {
	calls    []route.Call
	registry *dispatch.Registry
}

// NewRoutesChecker creates a checker over calls and registry.
func NewRoutesChecker(calls []route.Call, registry *dispatch.Registry) *RoutesChecker {
	return &RoutesChecker{calls: calls, registry: registry}
}

// Unresolved lists "method path -> library.callback" for every missing handler.
func (c *RoutesChecker) Unresolved() []string {
	var missing []string
	for i := range c.calls {
		call := &c.calls[i]
		if !c.registry.Has(call.Library, call.Callback) {
			missing = append(missing, fmt.Sprintf("%s %s -> %s", call.Method, call.Path, call.ID()))
		}
		if b := call.Auth; b != nil && !c.registry.Has(b.Library, b.Callback) {
			missing = append(missing, fmt.Sprintf("%s %s -> %s.%s (auth %s)", call.Method, call.Path, b.Library, b.Callback, b.Name))
		}
	}
	return missing
}

func (c *RoutesChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	if missing := c.Unresolved(); len(missing) > 0 {
		return Unhealthy(fmt.Sprintf("%d unresolved handlers", len(missing)), ErrCheckFailed).
			With("routes", len(c.calls)).
			With("unresolved", missing)
	}
	return Healthy(fmt.Sprintf("%d routes resolved", len(c.calls))).With("routes", len(c.calls))
}

var _ Checker = (*RoutesChecker)(nil)
