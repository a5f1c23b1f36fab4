package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthRequest_GetHeader(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string][]string
		key     string
		want    string
	}{
		{"nil headers", nil, "Authorization", ""},
		{"existing header", map[string][]string{"Authorization": {"Bearer token123"}}, "Authorization", "Bearer token123"},
		{"case insensitive", map[string][]string{"X-Api-Key": {"k"}}, "x-api-key", "k"},
		{"missing header", map[string][]string{"Content-Type": {"application/json"}}, "Authorization", ""},
		{"multiple values returns first", map[string][]string{"Accept": {"text/html", "application/json"}}, "Accept", "text/html"},
		{"empty values slice", map[string][]string{"X-Empty": {}}, "X-Empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &AuthRequest{Headers: tt.headers}
			if got := req.GetHeader(tt.key); got != tt.want {
				t.Errorf("GetHeader() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewAuthRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/users/1", nil)
	r.Header.Set("Authorization", "Bearer abc")
	r.AddCookie(&http.Cookie{Name: "session", Value: "first"})
	r.AddCookie(&http.Cookie{Name: "session", Value: "second"})

	req := NewAuthRequest(r, map[string]any{"token": "p"}, "users.get")
	if req.GetHeader("Authorization") != "Bearer abc" {
		t.Errorf("header = %q", req.GetHeader("Authorization"))
	}
	if req.GetCookie("session") != "first" {
		t.Errorf("cookie = %q, want first occurrence", req.GetCookie("session"))
	}
	if req.GetParam("token") != "p" || req.Resource != "users.get" {
		t.Errorf("req = %+v", req)
	}

	bare := NewAuthRequest(nil, nil, "x.y")
	if bare.GetHeader("Authorization") != "" || bare.GetCookie("session") != "" || bare.GetParam("token") != "" {
		t.Error("request without http.Request should be empty")
	}
}

func TestAuthResults(t *testing.T) {
	ok := AuthSuccess(&Identity{Principal: "u", Method: AuthMethodJWT})
	if !ok.Authenticated || ok.Method != "jwt" {
		t.Errorf("AuthSuccess() = %+v", ok)
	}
	fail := AuthFailure(ErrInvalidCredentials, "api_key")
	if fail.Authenticated || fail.Error != ErrInvalidCredentials || fail.Method != "api_key" {
		t.Errorf("AuthFailure() = %+v", fail)
	}
}

func TestAuthenticatorFunc(t *testing.T) {
	called := false
	a := NewAuthenticatorFunc("custom",
		func(_ context.Context, req *AuthRequest) bool { return req.GetHeader("X-Custom") != "" },
		func(_ context.Context, _ *AuthRequest) (*AuthResult, error) {
			called = true
			return AuthSuccess(&Identity{Principal: "c"}), nil
		},
	)

	if a.Name() != "custom" {
		t.Errorf("Name() = %q", a.Name())
	}
	if a.Supports(context.Background(), &AuthRequest{}) {
		t.Error("Supports() = true without header")
	}
	if _, err := a.Authenticate(context.Background(), &AuthRequest{}); err != nil || !called {
		t.Errorf("Authenticate() err = %v, called = %v", err, called)
	}

	open := NewAuthenticatorFunc("open", nil, nil)
	if !open.Supports(context.Background(), &AuthRequest{}) {
		t.Error("nil supports func should accept every request")
	}
}
