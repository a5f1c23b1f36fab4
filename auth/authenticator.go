package auth

import (
	"context"
	"net/http"
)

// Authenticator checks the credentials carried by one call.
//
// A rejected credential is a result, not an error: Authenticate returns
// (nil, err) only when it could not decide, such as a failed key fetch.
// Implementations are shared across calls and must be safe for concurrent use.
type Authenticator interface {
	Name() string

	// Supports reports whether req carries a credential this authenticator reads.
	Supports(ctx context.Context, req *AuthRequest) bool

	Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error)
}

// AuthRequest holds the places a call's credential can come from.
type AuthRequest struct {
	Headers map[string][]string
	Cookies map[string]string
	Params  map[string]any

	// Resource names the call, "library.callback".
	Resource string
}

// NewAuthRequest collects credential sources from r and the call's
// parameters. r may be nil; the first cookie of a repeated name wins.
func NewAuthRequest(r *http.Request, params map[string]any, resource string) *AuthRequest {
	req := &AuthRequest{Params: params, Resource: resource}
	if r == nil {
		return req
	}
	req.Headers = r.Header
	for _, c := range r.Cookies() {
		if req.Cookies == nil {
			req.Cookies = make(map[string]string)
		}
		if _, dup := req.Cookies[c.Name]; !dup {
			req.Cookies[c.Name] = c.Value
		}
	}
	return req
}

// GetHeader matches key case-insensitively.
func (r *AuthRequest) GetHeader(key string) string {
	return http.Header(r.Headers).Get(key)
}

func (r *AuthRequest) GetCookie(name string) string {
	return r.Cookies[name]
}

// GetParam returns a string parameter; other types read as empty.
func (r *AuthRequest) GetParam(name string) string {
	s, _ := r.Params[name].(string)
	return s
}

// AuthResult is the verdict of one Authenticate. Identity is set on success
// and Error on rejection.
type AuthResult struct {
	Authenticated bool
	Identity      *Identity
	Error         error
	Method        string
}

func AuthSuccess(identity *Identity) *AuthResult {
	return &AuthResult{Authenticated: true, Identity: identity, Method: string(identity.Method)}
}

func AuthFailure(err error, method string) *AuthResult {
	return &AuthResult{Error: err, Method: method}
}

type funcAuthenticator struct {
	name     string
	supports func(context.Context, *AuthRequest) bool
	auth     func(context.Context, *AuthRequest) (*AuthResult, error)
}

// NewAuthenticatorFunc wraps plain functions as an Authenticator. A nil
// supports accepts every request.
func NewAuthenticatorFunc(
	name string,
	supports func(ctx context.Context, req *AuthRequest) bool,
	auth func(ctx context.Context, req *AuthRequest) (*AuthResult, error),
) Authenticator {
	return funcAuthenticator{name: name, supports: supports, auth: auth}
}

func (f funcAuthenticator) Name() string { return f.name }

func (f funcAuthenticator) Supports(ctx context.Context, req *AuthRequest) bool {
	return f.supports == nil || f.supports(ctx, req)
}

func (f funcAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	return f.auth(ctx, req)
}
