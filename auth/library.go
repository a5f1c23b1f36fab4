package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jonwraymond/calldispatch/dispatch"
	"github.com/jonwraymond/calldispatch/route"
)

// Library references and the callback the built-in auth handlers answer to.
const (
	LibraryJWT     = "auth/jwt"
	LibraryAPIKey  = "auth/apikey"
	CallbackVerify = "verify"
)

// Error codes reported through the response envelope.
const (
	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "forbidden"
)

// Library exposes authenticators as dispatch auth handlers. One
// authenticator is built per binding name on first use and reused after.
type Library struct {
	factories *Registry

	mu        sync.Mutex
	instances map[string]Authenticator
}

// NewLibrary creates a Library over factories. A nil factories uses
// DefaultRegistry.
func NewLibrary(factories *Registry) *Library {
	if factories == nil {
		factories = DefaultRegistry
	}
	return &Library{
		factories: factories,
		instances: make(map[string]Authenticator),
	}
}

// Register adds the verify handlers for auth/jwt and auth/apikey to reg.
func (l *Library) Register(reg *dispatch.Registry) error {
	if err := reg.Register(LibraryJWT, CallbackVerify, l.Verify(string(AuthMethodJWT))); err != nil {
		return err
	}
	return reg.Register(LibraryAPIKey, CallbackVerify, l.Verify(string(AuthMethodAPIKey)))
}

// Verify returns an auth handler backed by the named authenticator factory.
// The handler reads its configuration from the call's binding options.
func (l *Library) Verify(factory string) dispatch.HandlerFunc {
	return func(ctx context.Context, rc *dispatch.RequestContext) (dispatch.Outcome, error) {
		if rc.Call == nil || rc.Call.Auth == nil {
			return dispatch.Outcome{}, ErrNoBinding
		}
		binding := rc.Call.Auth

		authn, err := l.authenticator(factory, binding)
		if err != nil {
			return dispatch.Outcome{}, err
		}

		res, err := authn.Authenticate(ctx, NewAuthRequest(rc.Request, rc.Params, rc.Call.ID()))
		if err != nil {
			return dispatch.Outcome{}, err
		}
		if !res.Authenticated {
			return dispatch.Outcome{}, rejection(CodeUnauthenticated, res.Error)
		}

		if roles := stringList(binding.Options["roles"]); !res.Identity.HasAnyRole(roles...) {
			return dispatch.Outcome{}, rejection(CodeForbidden, ErrForbidden)
		}

		SetIdentity(rc, res.Identity)
		return dispatch.Plain(res.Identity), nil
	}
}

func (l *Library) authenticator(factory string, binding *route.AuthBinding) (Authenticator, error) {
	key := factory + "/" + binding.Name

	l.mu.Lock()
	defer l.mu.Unlock()

	if a, ok := l.instances[key]; ok {
		return a, nil
	}
	a, err := l.factories.CreateAuthenticator(factory, binding.Options)
	if err != nil {
		return nil, fmt.Errorf("authentication %q: %w", binding.Name, err)
	}
	l.instances[key] = a
	return a, nil
}

func rejection(code string, err error) *dispatch.Error {
	if err == nil {
		err = ErrInvalidCredentials
	}
	return dispatch.NewError(code, strings.TrimPrefix(err.Error(), "auth: "))
}
