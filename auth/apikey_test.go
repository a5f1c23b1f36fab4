package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestAPIKeyAuth(t *testing.T, config APIKeyConfig, infos ...*APIKeyInfo) *APIKeyAuthenticator {
	t.Helper()
	store := NewMemoryAPIKeyStore()
	for _, info := range infos {
		if err := store.Add(info); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	return NewAPIKeyAuthenticator(config, store)
}

func TestAPIKeyAuthenticator_Supports(t *testing.T) {
	auth := newTestAPIKeyAuth(t, APIKeyConfig{ParamName: "api_key"})

	tests := []struct {
		name string
		req  *AuthRequest
		want bool
	}{
		{"nothing", &AuthRequest{}, false},
		{"default header", &AuthRequest{Headers: map[string][]string{"X-Api-Key": {"key123"}}}, true},
		{"wrong header", &AuthRequest{Headers: map[string][]string{"Authorization": {"Bearer token"}}}, false},
		{"param", &AuthRequest{Params: map[string]any{"api_key": "key123"}}, true},
		{"blank param", &AuthRequest{Params: map[string]any{"api_key": "  "}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := auth.Supports(context.Background(), tt.req); got != tt.want {
				t.Errorf("Supports() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAPIKeyAuthenticator_Authenticate(t *testing.T) {
	auth := newTestAPIKeyAuth(t, APIKeyConfig{ParamName: "api_key"},
		&APIKeyInfo{
			ID:        "key1",
			KeyHash:   HashAPIKey("test-api-key"),
			Principal: "user123",
			TenantID:  "tenant1",
			Roles:     []string{"admin"},
			Metadata:  map[string]any{"team": "core"},
		},
		&APIKeyInfo{
			ID:        "old",
			KeyHash:   HashAPIKey("expired-key"),
			Principal: "ghost",
			ExpiresAt: time.Now().Add(-time.Minute),
		},
	)

	header := func(k string) *AuthRequest {
		return &AuthRequest{Headers: map[string][]string{"X-API-Key": {k}}}
	}

	t.Run("valid key", func(t *testing.T) {
		result, err := auth.Authenticate(context.Background(), header(" test-api-key "))
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if !result.Authenticated {
			t.Fatalf("Authenticated = false: %v", result.Error)
		}
		id := result.Identity
		if id.Principal != "user123" || id.TenantID != "tenant1" || !id.HasRole("admin") {
			t.Errorf("identity = %+v", id)
		}
		if id.Claims["key_id"] != "key1" || id.Claims["team"] != "core" {
			t.Errorf("Claims = %v", id.Claims)
		}
	})

	t.Run("valid key from param", func(t *testing.T) {
		result, _ := auth.Authenticate(context.Background(), &AuthRequest{Params: map[string]any{"api_key": "test-api-key"}})
		if !result.Authenticated {
			t.Errorf("Authenticated = false: %v", result.Error)
		}
	})

	cases := []struct {
		name    string
		req     *AuthRequest
		wantErr error
	}{
		{"invalid key", header("wrong-key"), ErrInvalidCredentials},
		{"missing key", &AuthRequest{}, ErrMissingCredentials},
		{"expired key", header("expired-key"), ErrTokenExpired},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			result, err := auth.Authenticate(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if result.Authenticated || !errors.Is(result.Error, tt.wantErr) {
				t.Errorf("result = %+v, want %v", result, tt.wantErr)
			}
		})
	}
}

func TestAPIKeyAuthenticator_RolesAreCopied(t *testing.T) {
	info := &APIKeyInfo{KeyHash: HashAPIKey("k"), Principal: "p", Roles: []string{"a"}}
	auth := newTestAPIKeyAuth(t, APIKeyConfig{}, info)

	result, _ := auth.Authenticate(context.Background(), &AuthRequest{Headers: map[string][]string{"X-API-Key": {"k"}}})
	result.Identity.Roles[0] = "mutated"
	if info.Roles[0] != "a" {
		t.Error("identity roles alias the stored key")
	}
}

func TestAPIKeyAuthenticator_PlainHash(t *testing.T) {
	auth := newTestAPIKeyAuth(t, APIKeyConfig{HashAlgorithm: HashPlain},
		&APIKeyInfo{KeyHash: "raw-key", Principal: "p"})

	result, _ := auth.Authenticate(context.Background(), &AuthRequest{Headers: map[string][]string{"X-API-Key": {"raw-key"}}})
	if !result.Authenticated {
		t.Errorf("Authenticated = false: %v", result.Error)
	}
}

func TestMemoryAPIKeyStore(t *testing.T) {
	store := NewMemoryAPIKeyStore()
	ctx := context.Background()

	if err := store.Add(&APIKeyInfo{}); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("Add(no hash) error = %v, want ErrInvalidOption", err)
	}

	info := &APIKeyInfo{ID: "key1", KeyHash: HashAPIKey("test"), Principal: "user1"}
	if err := store.Add(info); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}

	got, _ := store.Lookup(ctx, HashAPIKey("test"))
	if got == nil || got.ID != "key1" {
		t.Errorf("Lookup() = %v, want key1", got)
	}
	if got, _ := store.Lookup(ctx, HashAPIKey("other")); got != nil {
		t.Errorf("Lookup(other) = %v, want nil", got)
	}

	if err := store.Add(&APIKeyInfo{ID: "key2", KeyHash: HashAPIKey("test")}); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.Lookup(ctx, HashAPIKey("test")); got.ID != "key2" || store.Len() != 1 {
		t.Errorf("Add with an existing hash should replace, got %v (len %d)", got, store.Len())
	}
}

func TestHashAPIKey(t *testing.T) {
	h := HashAPIKey("test-key")
	if len(h) != 64 {
		t.Errorf("HashAPIKey() length = %d, want 64", len(h))
	}
	if h != HashAPIKey("test-key") {
		t.Error("HashAPIKey() not deterministic")
	}
	if h == HashAPIKey("other-key") {
		t.Error("different keys hash identically")
	}
}

func TestAPIKeyAuthenticator_ExpiryUsesClock(t *testing.T) {
	expiry := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	auth := newTestAPIKeyAuth(t, APIKeyConfig{},
		&APIKeyInfo{KeyHash: HashAPIKey("k"), Principal: "p", ExpiresAt: expiry})
	req := &AuthRequest{Headers: map[string][]string{"X-API-Key": {"k"}}}

	auth.now = func() time.Time { return expiry.Add(-time.Second) }
	if r, _ := auth.Authenticate(context.Background(), req); !r.Authenticated {
		t.Errorf("before expiry: %v", r.Error)
	}
	auth.now = func() time.Time { return expiry.Add(time.Second) }
	if r, _ := auth.Authenticate(context.Background(), req); !errors.Is(r.Error, ErrTokenExpired) {
		t.Errorf("after expiry: %+v", r)
	}
}

func TestNewAPIKeyAuthenticator_UnknownHashFallsBack(t *testing.T) {
	auth := NewAPIKeyAuthenticator(APIKeyConfig{HashAlgorithm: "md5"}, NewMemoryAPIKeyStore())
	if auth.config.HashAlgorithm != HashSHA256 {
		t.Errorf("HashAlgorithm = %q", auth.config.HashAlgorithm)
	}
}
