package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/calldispatch/resilience"
)

const (
	defaultJWKSTTL     = time.Hour
	defaultJWKSTimeout = 10 * time.Second

	// maxJWKSBytes bounds a key set document.
	maxJWKSBytes = 1 << 20
)

// JWKSConfig configures a JWKSKeyProvider.
type JWKSConfig struct {
	URL string

	// CacheTTL is how long a fetched key set is trusted before an unknown or
	// expired lookup triggers a refetch. Default: 1 hour
	CacheTTL time.Duration

	// HTTPClient defaults to a client with a 10 second timeout.
	HTTPClient *http.Client

	// Retry, when set, retries failed fetches.
	Retry *resilience.Retry
}

// keySet is one fetched snapshot of the endpoint's signing keys.
type keySet struct {
	keys    map[string]*rsa.PublicKey
	fetched time.Time
}

// find resolves kid. An empty kid matches only a set holding one key.
func (s *keySet) find(kid string) *rsa.PublicKey {
	if s == nil {
		return nil
	}
	if kid != "" {
		return s.keys[kid]
	}
	if len(s.keys) != 1 {
		return nil
	}
	for _, key := range s.keys {
		return key
	}
	return nil
}

// JWKSKeyProvider serves RSA verification keys from a JWKS endpoint.
//
// Lookups read an immutable snapshot. A missing kid or an expired snapshot
// triggers a refetch, and concurrent refetches collapse into one request.
// When a refetch fails the last good snapshot keeps serving, expired or not.
type JWKSKeyProvider struct {
	config  JWKSConfig
	now     func() time.Time
	current atomic.Pointer[keySet]
	fetches singleflight.Group
}

func NewJWKSKeyProvider(config JWKSConfig) *JWKSKeyProvider {
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaultJWKSTTL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: defaultJWKSTimeout}
	}
	return &JWKSKeyProvider{config: config, now: time.Now}
}

func (p *JWKSKeyProvider) GetKey(ctx context.Context, keyID string) (any, error) {
	cur := p.current.Load()
	if cur != nil && p.now().Sub(cur.fetched) < p.config.CacheTTL {
		if key := cur.find(keyID); key != nil {
			return key, nil
		}
	}

	fresh, err := p.refresh(ctx)
	if err != nil {
		if key := cur.find(keyID); key != nil {
			return key, nil
		}
		return nil, err
	}
	if key := fresh.find(keyID); key != nil {
		return key, nil
	}
	return nil, ErrKeyNotFound
}

// refresh fetches a new snapshot and installs it. The fetch is detached from
// ctx since other callers may be waiting on it.
func (p *JWKSKeyProvider) refresh(ctx context.Context) (*keySet, error) {
	ctx = context.WithoutCancel(ctx)
	v, err, _ := p.fetches.Do(p.config.URL, func() (any, error) {
		var set *keySet
		fetch := func(ctx context.Context) error {
			var err error
			set, err = p.fetch(ctx)
			return err
		}

		var err error
		if p.config.Retry != nil {
			err = p.config.Retry.Execute(ctx, fetch)
		} else {
			err = fetch(ctx)
		}
		if err != nil {
			return nil, err
		}
		p.current.Store(set)
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*keySet), nil
}

func (p *JWKSKeyProvider) fetch(ctx context.Context) (*keySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: fetch jwks: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: fetch jwks: %s", resp.Status)
	}

	var doc struct {
		Keys []jwkKey `json:"keys"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBytes)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("auth: decode jwks: %w", err)
	}

	set := &keySet{keys: make(map[string]*rsa.PublicKey, len(doc.Keys)), fetched: p.now()}
	for _, k := range doc.Keys {
		if !k.signing() {
			continue
		}
		// A malformed entry does not poison the rest of the set.
		if pub, err := k.rsaPublicKey(); err == nil {
			set.keys[k.Kid] = pub
		}
	}
	return set, nil
}

type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// signing reports whether k is an RSA key usable for signature checks.
func (k jwkKey) signing() bool {
	return k.Kty == "RSA" && (k.Use == "" || k.Use == "sig")
}

func (k jwkKey) rsaPublicKey() (*rsa.PublicKey, error) {
	n, err := decodeJWKInt("n", k.N)
	if err != nil {
		return nil, err
	}
	e, err := decodeJWKInt("e", k.E)
	if err != nil {
		return nil, err
	}
	if e.Sign() <= 0 || !e.IsInt64() || e.Int64() > math.MaxInt32 {
		return nil, fmt.Errorf("jwk %q: exponent out of range", k.Kid)
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

func decodeJWKInt(param, s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("jwk: missing %s", param)
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("jwk: decode %s: %w", param, err)
	}
	return new(big.Int).SetBytes(b), nil
}

var _ KeyProvider = (*JWKSKeyProvider)(nil)
