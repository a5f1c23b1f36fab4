package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

const defaultAPIKeyHeader = "X-API-Key"

// Key hashing schemes selectable through hash_algorithm. Stored hashes must
// use the same scheme as the authenticator.
const (
	HashSHA256 = "sha256"
	HashPlain  = "plain"
)

var keyHashers = map[string]func(string) string{
	HashSHA256: HashAPIKey,
	HashPlain:  func(k string) string { return k },
}

// APIKeyConfig configures an APIKeyAuthenticator.
type APIKeyConfig struct {
	// HeaderName carries the key. Default: X-API-Key
	HeaderName string

	// ParamName, when set, is checked when the header is absent.
	ParamName string

	// HashAlgorithm is HashSHA256 (default) or HashPlain.
	HashAlgorithm string
}

// APIKeyInfo is one issued key as the store holds it.
type APIKeyInfo struct {
	ID        string
	KeyHash   string
	Principal string
	TenantID  string
	Roles     []string
	ExpiresAt time.Time // zero never expires
	Metadata  map[string]any
}

func (k *APIKeyInfo) expired(now time.Time) bool {
	return !k.ExpiresAt.IsZero() && now.After(k.ExpiresAt)
}

// identity builds the caller identity for k. Claims carry the metadata plus
// key_id, and nothing aliases the stored key.
func (k *APIKeyInfo) identity() *Identity {
	claims := make(map[string]any, len(k.Metadata)+1)
	maps.Copy(claims, k.Metadata)
	claims["key_id"] = k.ID
	return &Identity{
		Principal: k.Principal,
		TenantID:  k.TenantID,
		Roles:     slices.Clone(k.Roles),
		Method:    AuthMethodAPIKey,
		ExpiresAt: k.ExpiresAt,
		Claims:    claims,
	}
}

// APIKeyStore finds keys by hash. A miss is (nil, nil).
type APIKeyStore interface {
	Lookup(ctx context.Context, keyHash string) (*APIKeyInfo, error)
}

// APIKeyAuthenticator checks a presented key against an APIKeyStore.
type APIKeyAuthenticator struct {
	config APIKeyConfig
	hash   func(string) string
	store  APIKeyStore
	now    func() time.Time
}

// NewAPIKeyAuthenticator builds the authenticator. An unknown hash algorithm
// falls back to sha256; NewAPIKeyFromOptions rejects it up front.
func NewAPIKeyAuthenticator(config APIKeyConfig, store APIKeyStore) *APIKeyAuthenticator {
	if config.HeaderName == "" {
		config.HeaderName = defaultAPIKeyHeader
	}
	hash, ok := keyHashers[config.HashAlgorithm]
	if !ok {
		config.HashAlgorithm = HashSHA256
		hash = HashAPIKey
	}
	return &APIKeyAuthenticator{config: config, hash: hash, store: store, now: time.Now}
}

func (a *APIKeyAuthenticator) Name() string {
	return "api_key"
}

func (a *APIKeyAuthenticator) Supports(_ context.Context, req *AuthRequest) bool {
	return a.presented(req) != ""
}

// presented returns the key from the header, or from the parameter when
// the header is absent.
func (a *APIKeyAuthenticator) presented(req *AuthRequest) string {
	key := strings.TrimSpace(req.GetHeader(a.config.HeaderName))
	if key == "" && a.config.ParamName != "" {
		key = strings.TrimSpace(req.GetParam(a.config.ParamName))
	}
	return key
}

func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	key := a.presented(req)
	if key == "" {
		return AuthFailure(ErrMissingCredentials, "api_key"), nil
	}

	info, err := a.store.Lookup(ctx, a.hash(key))
	switch {
	case err != nil:
		return nil, fmt.Errorf("auth: api key lookup: %w", err)
	case info == nil:
		return AuthFailure(ErrInvalidCredentials, "api_key"), nil
	case info.expired(a.now()):
		return AuthFailure(ErrTokenExpired, "api_key"), nil
	}
	return AuthSuccess(info.identity()), nil
}

// HashAPIKey is the hex SHA-256 digest stored for a key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// MemoryAPIKeyStore holds keys in a map indexed by hash. The lookup index is
// a digest of the secret, so map timing reveals nothing about the key.
type MemoryAPIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*APIKeyInfo
}

func NewMemoryAPIKeyStore() *MemoryAPIKeyStore {
	return &MemoryAPIKeyStore{keys: make(map[string]*APIKeyInfo)}
}

func (s *MemoryAPIKeyStore) Lookup(_ context.Context, keyHash string) (*APIKeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[keyHash], nil
}

// Add stores info, replacing any key with the same hash.
func (s *MemoryAPIKeyStore) Add(info *APIKeyInfo) error {
	if info == nil || info.KeyHash == "" {
		return fmt.Errorf("%w: api key needs a hash", ErrInvalidOption)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[info.KeyHash] = info
	return nil
}

func (s *MemoryAPIKeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

var (
	_ Authenticator = (*APIKeyAuthenticator)(nil)
	_ APIKeyStore   = (*MemoryAPIKeyStore)(nil)
)
