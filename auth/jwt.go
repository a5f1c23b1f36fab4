package auth

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// jwtMethods are the signing algorithms a token may use. "none" is never
// accepted.
var jwtMethods = []string{"HS256", "HS384", "HS512", "RS256", "RS384", "RS512"}

// JWTConfig configures a JWTAuthenticator. Empty fields take the defaults
// noted on them.
type JWTConfig struct {
	Issuer   string // checked against iss when set
	Audience string // checked against aud when set

	HeaderName  string // default Authorization
	TokenPrefix string // default "Bearer "
	CookieName  string // read when the header has no token
	TokenParam  string // request parameter, read last

	PrincipalClaim string // default sub
	TenantClaim    string
	RolesClaim     string

	// Leeway is the clock skew tolerated on exp, nbf and iat.
	Leeway time.Duration
}

// KeyProvider resolves the verification key for a token's kid.
type KeyProvider interface {
	GetKey(ctx context.Context, keyID string) (any, error)
}

// StaticKeyProvider serves one HMAC secret for every kid.
type StaticKeyProvider struct {
	key []byte
}

func NewStaticKeyProvider(key []byte) *StaticKeyProvider {
	return &StaticKeyProvider{key: key}
}

func (p *StaticKeyProvider) GetKey(context.Context, string) (any, error) {
	if len(p.key) == 0 {
		return nil, ErrKeyNotFound
	}
	return p.key, nil
}

// JWTAuthenticator verifies bearer tokens and maps their claims onto an
// Identity.
type JWTAuthenticator struct {
	config      JWTConfig
	keyProvider KeyProvider
	parser      *jwt.Parser
}

func NewJWTAuthenticator(config JWTConfig, keyProvider KeyProvider) *JWTAuthenticator {
	config.HeaderName = cmp.Or(config.HeaderName, "Authorization")
	config.TokenPrefix = cmp.Or(config.TokenPrefix, "Bearer ")
	config.PrincipalClaim = cmp.Or(config.PrincipalClaim, "sub")

	opts := []jwt.ParserOption{jwt.WithValidMethods(jwtMethods), jwt.WithIssuedAt()}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}
	if config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(config.Leeway))
	}
	return &JWTAuthenticator{config: config, keyProvider: keyProvider, parser: jwt.NewParser(opts...)}
}

func (a *JWTAuthenticator) Name() string {
	return "jwt"
}

func (a *JWTAuthenticator) Supports(_ context.Context, req *AuthRequest) bool {
	return a.extract(req) != ""
}

// extract looks for a token in the header, then the cookie, then the
// parameter. A header without the expected prefix is ignored.
func (a *JWTAuthenticator) extract(req *AuthRequest) string {
	tok, found := strings.CutPrefix(req.GetHeader(a.config.HeaderName), a.config.TokenPrefix)
	if tok = strings.TrimSpace(tok); found && tok != "" {
		return tok
	}
	if a.config.CookieName != "" {
		if tok := req.GetCookie(a.config.CookieName); tok != "" {
			return tok
		}
	}
	if a.config.TokenParam == "" {
		return ""
	}
	return strings.TrimSpace(req.GetParam(a.config.TokenParam))
}

// tokenFailures maps parser errors onto the rejection reported to callers,
// first match wins. Anything else is ErrInvalidCredentials.
var tokenFailures = []struct{ cause, reported error }{
	{jwt.ErrTokenExpired, ErrTokenExpired},
	{jwt.ErrTokenMalformed, ErrTokenMalformed},
	{jwt.ErrTokenUnverifiable, ErrTokenMalformed},
}

func (a *JWTAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	raw := a.extract(req)
	if raw == "" {
		return AuthFailure(ErrMissingCredentials, "jwt"), nil
	}

	claims := jwt.MapClaims{}
	token, err := a.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return a.keyProvider.GetKey(ctx, kid)
	})
	if err == nil && !token.Valid {
		err = jwt.ErrTokenSignatureInvalid
	}
	if err != nil {
		for _, f := range tokenFailures {
			if errors.Is(err, f.cause) {
				return AuthFailure(f.reported, "jwt"), nil
			}
		}
		return AuthFailure(ErrInvalidCredentials, "jwt"), nil
	}
	return AuthSuccess(a.identity(claims)), nil
}

func (a *JWTAuthenticator) identity(claims jwt.MapClaims) *Identity {
	id := &Identity{
		Method: AuthMethodJWT,
		Claims: maps.Clone(map[string]any(claims)),
	}
	id.Principal, _ = claims[a.config.PrincipalClaim].(string)
	if a.config.TenantClaim != "" {
		id.TenantID, _ = claims[a.config.TenantClaim].(string)
	}
	if a.config.RolesClaim != "" {
		id.Roles = stringList(claims[a.config.RolesClaim])
	}
	if exp, _ := claims.GetExpirationTime(); exp != nil {
		id.ExpiresAt = exp.Time
	}
	if iat, _ := claims.GetIssuedAt(); iat != nil {
		id.IssuedAt = iat.Time
	}
	return id
}

// stringList reads a list option or claim: a JSON array of strings, a
// []string, or one space-separated string as OAuth scopes are written.
// Non-string array entries are dropped.
func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return slices.Clone(t)
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Fields(t)
	}
	return nil
}

var (
	_ Authenticator = (*JWTAuthenticator)(nil)
	_ KeyProvider   = (*StaticKeyProvider)(nil)
)
