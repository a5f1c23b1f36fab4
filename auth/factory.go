package auth

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonwraymond/calldispatch/resilience"
)

// AuthenticatorFactory creates an authenticator from binding options.
type AuthenticatorFactory func(cfg map[string]any) (Authenticator, error)

// Registry manages authenticator factories.
type Registry struct {
	mu             sync.RWMutex
	authenticators map[string]AuthenticatorFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		authenticators: make(map[string]AuthenticatorFactory),
	}
}

// RegisterAuthenticator adds an authenticator factory.
func (r *Registry) RegisterAuthenticator(name string, factory AuthenticatorFactory) error {
	if name == "" || factory == nil {
		return errors.New("auth: invalid authenticator registration")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.authenticators[name]; exists {
		return fmt.Errorf("auth: authenticator %q already registered", name)
	}

	r.authenticators[name] = factory
	return nil
}

// CreateAuthenticator instantiates an authenticator by name.
func (r *Registry) CreateAuthenticator(name string, cfg map[string]any) (Authenticator, error) {
	r.mu.RLock()
	factory, ok := r.authenticators[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAuthenticator, name)
	}

	return factory(cfg)
}

// ListAuthenticators returns registered authenticator names.
func (r *Registry) ListAuthenticators() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.authenticators))
	for name := range r.authenticators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in jwt and api_key factories.
var DefaultRegistry = newBuiltinRegistry()

func newBuiltinRegistry() *Registry {
	r := NewRegistry()
	_ = r.RegisterAuthenticator(string(AuthMethodJWT), NewJWTFromOptions)
	_ = r.RegisterAuthenticator(string(AuthMethodAPIKey), NewAPIKeyFromOptions)
	return r
}

// NewJWTFromOptions builds a JWT authenticator from binding options.
// Either secret or jwks_url is required.
func NewJWTFromOptions(cfg map[string]any) (Authenticator, error) {
	var config JWTConfig
	var err error

	config.Issuer = optString(cfg, "issuer")
	config.Audience = optString(cfg, "audience")
	config.HeaderName = optString(cfg, "header_name")
	config.TokenPrefix = optString(cfg, "token_prefix")
	config.CookieName = optString(cfg, "cookie_name")
	config.TokenParam = optString(cfg, "token_param")
	config.PrincipalClaim = optString(cfg, "principal_claim")
	config.TenantClaim = optString(cfg, "tenant_claim")
	config.RolesClaim = optString(cfg, "roles_claim")
	if config.Leeway, err = optDuration(cfg, "leeway"); err != nil {
		return nil, err
	}

	var keyProvider KeyProvider
	switch {
	case optString(cfg, "jwks_url") != "":
		jwksConfig := JWKSConfig{URL: optString(cfg, "jwks_url")}
		if jwksConfig.CacheTTL, err = optDuration(cfg, "cache_ttl"); err != nil {
			return nil, err
		}
		attempts, err := optInt(cfg, "fetch_attempts", 3)
		if err != nil {
			return nil, err
		}
		if attempts > 1 {
			jwksConfig.Retry = resilience.NewRetry(resilience.RetryConfig{
				MaxAttempts:  attempts,
				InitialDelay: 200 * time.Millisecond,
				MaxDelay:     5 * time.Second,
				Jitter:       true,
			})
		}
		keyProvider = NewJWKSKeyProvider(jwksConfig)
	case optString(cfg, "secret") != "":
		keyProvider = NewStaticKeyProvider([]byte(optString(cfg, "secret")))
	default:
		return nil, fmt.Errorf("%w: jwt needs secret or jwks_url", ErrInvalidOption)
	}

	return NewJWTAuthenticator(config, keyProvider), nil
}

// NewAPIKeyFromOptions builds an API key authenticator backed by a memory
// store filled from the keys option.
func NewAPIKeyFromOptions(cfg map[string]any) (Authenticator, error) {
	config := APIKeyConfig{
		HeaderName:    optString(cfg, "header_name"),
		ParamName:     optString(cfg, "param_name"),
		HashAlgorithm: optString(cfg, "hash_algorithm"),
	}

	if _, ok := keyHashers[config.HashAlgorithm]; config.HashAlgorithm != "" && !ok {
		return nil, fmt.Errorf("%w: hash_algorithm %q", ErrInvalidOption, config.HashAlgorithm)
	}

	store := NewMemoryAPIKeyStore()

	raw, ok := cfg["keys"]
	if ok {
		keys, isList := raw.([]any)
		if !isList {
			return nil, fmt.Errorf("%w: keys must be a list", ErrInvalidOption)
		}
		for i, k := range keys {
			keyMap, ok := k.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: keys[%d] must be an object", ErrInvalidOption, i)
			}
			info := &APIKeyInfo{
				ID:        optString(keyMap, "id"),
				KeyHash:   optString(keyMap, "hash"),
				Principal: optString(keyMap, "principal"),
				TenantID:  optString(keyMap, "tenant_id"),
				Roles:     stringList(keyMap["roles"]),
			}
			if exp := optString(keyMap, "expires_at"); exp != "" {
				t, err := time.Parse(time.RFC3339, exp)
				if err != nil {
					return nil, fmt.Errorf("%w: keys[%d].expires_at: %v", ErrInvalidOption, i, err)
				}
				info.ExpiresAt = t
			}
			if meta, ok := keyMap["metadata"].(map[string]any); ok {
				info.Metadata = meta
			}
			if err := store.Add(info); err != nil {
				return nil, fmt.Errorf("keys[%d]: %w", i, err)
			}
		}
	}

	return NewAPIKeyAuthenticator(config, store), nil
}

func optString(cfg map[string]any, key string) string {
	s, _ := cfg[key].(string)
	return s
}

func optInt(cfg map[string]any, key string, def int) (int, error) {
	switch v := cfg[key].(type) {
	case nil:
		return def, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer", ErrInvalidOption, key)
	}
}

// optDuration accepts a Go duration string or a number of seconds.
func optDuration(cfg map[string]any, key string) (time.Duration, error) {
	switch v := cfg[key].(type) {
	case nil:
		return 0, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidOption, key, err)
		}
		return d, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("%w: %s must be a duration", ErrInvalidOption, key)
	}
}
