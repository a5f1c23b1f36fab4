package auth

import (
	"context"

	"github.com/jonwraymond/calldispatch/dispatch"
)

// IdentityKey is the RequestContext value key holding the *Identity set by
// the verify handlers.
const IdentityKey = "auth.identity"

type contextKey int

const identityKey contextKey = iota

// SetIdentity stores id on rc for the request stage.
func SetIdentity(rc *dispatch.RequestContext, id *Identity) {
	rc.Set(IdentityKey, id)
}

// IdentityFrom returns the identity stored on rc, or nil.
func IdentityFrom(rc *dispatch.RequestContext) *Identity {
	if rc == nil {
		return nil
	}
	v, _ := rc.Value(IdentityKey)
	id, _ := v.(*Identity)
	return id
}

// PrincipalFrom returns the principal stored on rc, or "".
func PrincipalFrom(rc *dispatch.RequestContext) string {
	if id := IdentityFrom(rc); id != nil {
		return id.Principal
	}
	return ""
}

// TenantIDFrom returns the tenant stored on rc, or "".
func TenantIDFrom(rc *dispatch.RequestContext) string {
	if id := IdentityFrom(rc); id != nil {
		return id.TenantID
	}
	return ""
}

// WithIdentity returns a new context with the given identity attached.
// Handlers that call further services use it to pass the identity along.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the identity from the context, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}
