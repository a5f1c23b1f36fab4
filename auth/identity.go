package auth

import (
	"slices"
	"time"
)

// AuthMethod names the authenticator that produced an Identity.
type AuthMethod string

const (
	AuthMethodJWT    AuthMethod = "jwt"
	AuthMethodAPIKey AuthMethod = "api_key"
)

// Identity is the data of a successful auth stage and marshals to JSON as
// such. Claims stay server-side.
type Identity struct {
	Principal string         `json:"principal"`
	TenantID  string         `json:"tenantId,omitempty"`
	Roles     []string       `json:"roles,omitempty"`
	Method    AuthMethod     `json:"method"`
	Claims    map[string]any `json:"-"`
	ExpiresAt time.Time      `json:"expiresAt,omitzero"`
	IssuedAt  time.Time      `json:"issuedAt,omitzero"`
}

// HasRole matches role exactly. A nil identity has no roles.
func (id *Identity) HasRole(role string) bool {
	return id != nil && slices.Contains(id.Roles, role)
}

// HasAnyRole reports whether id holds at least one of roles. An empty list
// is always satisfied.
func (id *Identity) HasAnyRole(roles ...string) bool {
	return len(roles) == 0 || slices.ContainsFunc(roles, id.HasRole)
}
