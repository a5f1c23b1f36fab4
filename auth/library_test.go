package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/calldispatch/dispatch"
	"github.com/jonwraymond/calldispatch/route"
)

// newAuthPipeline registers the built-in auth handlers plus a request
// handler that echoes the principal it sees.
func newAuthPipeline(t *testing.T) *dispatch.Pipeline {
	t.Helper()
	reg := dispatch.NewRegistry()
	if err := NewLibrary(nil).Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	reg.MustRegister("users", "me", func(_ context.Context, rc *dispatch.RequestContext) (dispatch.Outcome, error) {
		return dispatch.Plain(map[string]any{"principal": PrincipalFrom(rc)}), nil
	})
	return dispatch.New(reg)
}

func boundCall(library string, options map[string]any) *route.Call {
	return &route.Call{
		Method:   http.MethodGet,
		Path:     "/me",
		Library:  "users",
		Callback: "me",
		Auth: &route.AuthBinding{
			Name:     "main",
			Library:  library,
			Callback: CallbackVerify,
			Options:  options,
		},
	}
}

func envelopeError(t *testing.T, res *dispatch.Result) *dispatch.Error {
	t.Helper()
	if res.Success {
		t.Fatal("expected a failed result")
	}
	var de *dispatch.Error
	if !errors.As(res.Err, &de) {
		t.Fatalf("Err = %T %v, want *dispatch.Error", res.Err, res.Err)
	}
	return de
}

func principalIn(t *testing.T, res *dispatch.Result) string {
	t.Helper()
	b, err := json.Marshal(res.Body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	var env struct {
		Data struct {
			Principal string `json:"principal"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatalf("unmarshal body %s: %v", b, err)
	}
	return env.Data.Principal
}

func TestLibrary_Register(t *testing.T) {
	reg := dispatch.NewRegistry()
	lib := NewLibrary(nil)
	if err := lib.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !reg.Has(LibraryJWT, CallbackVerify) || !reg.Has(LibraryAPIKey, CallbackVerify) {
		t.Errorf("libraries = %v", reg.Libraries())
	}
	if err := lib.Register(reg); !errors.Is(err, dispatch.ErrDuplicateHandler) {
		t.Errorf("second Register() error = %v, want ErrDuplicateHandler", err)
	}
}

func TestLibrary_JWTVerify(t *testing.T) {
	p := newAuthPipeline(t)
	call := boundCall(LibraryJWT, map[string]any{"secret": string(testSecret), "roles_claim": "roles"})

	tok := signHS256(t, jwt.MapClaims{
		"sub":   "alice",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"roles": []any{"admin"},
	})

	t.Run("valid token reaches the handler", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/me", nil)
		r.Header.Set("Authorization", "Bearer "+tok)

		res, err := p.Execute(context.Background(), call, dispatch.NewRequestContext(nil, r, nil))
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if !res.Success {
			t.Fatalf("Success = false: %v", res.Err)
		}
		if got := principalIn(t, res); got != "alice" {
			t.Errorf("principal = %q, want alice", got)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/me", nil)
		res, _ := p.Execute(context.Background(), call, dispatch.NewRequestContext(nil, r, nil))
		de := envelopeError(t, res)
		if de.Code != CodeUnauthenticated || de.Message != "missing credentials" {
			t.Errorf("error = %+v", de)
		}
	})
}

func TestLibrary_JWTFromCookie(t *testing.T) {
	p := newAuthPipeline(t)
	call := boundCall(LibraryJWT, map[string]any{"secret": string(testSecret), "cookie_name": "session"})

	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.AddCookie(&http.Cookie{Name: "session", Value: signHS256(t, jwt.MapClaims{
		"sub": "bob",
		"exp": time.Now().Add(time.Hour).Unix(),
	})})

	res, _ := p.Execute(context.Background(), call, dispatch.NewRequestContext(nil, r, nil))
	if !res.Success || principalIn(t, res) != "bob" {
		t.Errorf("res = %+v", res)
	}
}

func TestLibrary_APIKeyVerify(t *testing.T) {
	p := newAuthPipeline(t)
	call := boundCall(LibraryAPIKey, map[string]any{
		"param_name": "api_key",
		"roles":      []any{"writer"},
		"keys": []any{
			map[string]any{"id": "w", "hash": HashAPIKey("write-key"), "principal": "svc-w", "roles": []any{"writer"}},
			map[string]any{"id": "r", "hash": HashAPIKey("read-key"), "principal": "svc-r", "roles": []any{"reader"}},
		},
	})

	t.Run("header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/me", nil)
		r.Header.Set("X-API-Key", "write-key")
		res, _ := p.Execute(context.Background(), call, dispatch.NewRequestContext(nil, r, nil))
		if !res.Success || principalIn(t, res) != "svc-w" {
			t.Errorf("res = %+v", res)
		}
	})

	t.Run("param", func(t *testing.T) {
		rc := dispatch.NewRequestContext(map[string]any{"api_key": "write-key"}, nil, nil)
		res, _ := p.Execute(context.Background(), call, rc)
		if !res.Success {
			t.Errorf("Success = false: %v", res.Err)
		}
	})

	t.Run("role mismatch is forbidden", func(t *testing.T) {
		rc := dispatch.NewRequestContext(map[string]any{"api_key": "read-key"}, nil, nil)
		res, _ := p.Execute(context.Background(), call, rc)
		if de := envelopeError(t, res); de.Code != CodeForbidden {
			t.Errorf("Code = %q, want forbidden", de.Code)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		rc := dispatch.NewRequestContext(map[string]any{"api_key": "nope"}, nil, nil)
		res, _ := p.Execute(context.Background(), call, rc)
		if de := envelopeError(t, res); de.Code != CodeUnauthenticated || de.Message != "invalid credentials" {
			t.Errorf("error = %+v", de)
		}
	})
}

func TestLibrary_BadOptionsFailTheCall(t *testing.T) {
	p := newAuthPipeline(t)
	call := boundCall(LibraryJWT, map[string]any{"issuer": "no-key"})

	res, err := p.Execute(context.Background(), call, dispatch.NewRequestContext(nil, nil, nil))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Success || !errors.Is(res.Err, ErrInvalidOption) {
		t.Errorf("Err = %v, want ErrInvalidOption", res.Err)
	}
}

func TestLibrary_ReusesAuthenticatorPerBinding(t *testing.T) {
	builds := 0
	factories := NewRegistry()
	_ = factories.RegisterAuthenticator("stub", func(map[string]any) (Authenticator, error) {
		builds++
		return NewAuthenticatorFunc("stub", nil, func(context.Context, *AuthRequest) (*AuthResult, error) {
			return AuthSuccess(&Identity{Principal: "s"}), nil
		}), nil
	})

	lib := NewLibrary(factories)
	verify := lib.Verify("stub")
	call := boundCall("custom/auth", nil)

	for i := 0; i < 3; i++ {
		rc := dispatch.NewRequestContext(nil, nil, nil)
		rc.Call = call
		out, err := verify(context.Background(), rc)
		if err != nil {
			t.Fatalf("verify() error = %v", err)
		}
		if id, ok := out.Data().(*Identity); !ok || id.Principal != "s" {
			t.Errorf("Data() = %v", out.Data())
		}
		if IdentityFrom(rc) == nil {
			t.Error("identity not stored on the request context")
		}
	}
	if builds != 1 {
		t.Errorf("factory called %d times, want 1", builds)
	}
}

func TestLibrary_VerifyWithoutBinding(t *testing.T) {
	verify := NewLibrary(nil).Verify("jwt")
	rc := dispatch.NewRequestContext(nil, nil, nil)
	rc.Call = &route.Call{Library: "users", Callback: "me"}
	if _, err := verify(context.Background(), rc); !errors.Is(err, ErrNoBinding) {
		t.Errorf("error = %v, want ErrNoBinding", err)
	}
}
