package auth

import (
	"encoding/json"
	"testing"
)

func TestIdentity_HasRole(t *testing.T) {
	tests := []struct {
		name     string
		identity *Identity
		role     string
		want     bool
	}{
		{"nil identity", nil, "admin", false},
		{"empty roles", &Identity{}, "admin", false},
		{"has role", &Identity{Roles: []string{"user", "admin"}}, "admin", true},
		{"case sensitive", &Identity{Roles: []string{"Admin"}}, "admin", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.identity.HasRole(tt.role); got != tt.want {
				t.Errorf("HasRole() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIdentity_HasAnyRole(t *testing.T) {
	id := &Identity{Roles: []string{"reader"}}
	if !id.HasAnyRole() {
		t.Error("empty requirement should pass")
	}
	if !id.HasAnyRole("writer", "reader") {
		t.Error("HasAnyRole(writer, reader) = false")
	}
	if id.HasAnyRole("writer") {
		t.Error("HasAnyRole(writer) = true")
	}
	var none *Identity
	if none.HasAnyRole("reader") {
		t.Error("nil identity satisfied a role requirement")
	}
}

func TestIdentity_JSONHidesClaims(t *testing.T) {
	id := &Identity{
		Principal: "u1",
		Method:    AuthMethodAPIKey,
		Claims:    map[string]any{"secret": "x"},
	}
	b, err := json.Marshal(id)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	_ = json.Unmarshal(b, &got)
	if _, ok := got["Claims"]; ok {
		t.Errorf("claims leaked: %s", b)
	}
	if got["principal"] != "u1" || got["method"] != "api_key" {
		t.Errorf("json = %s", b)
	}
	if _, ok := got["expiresAt"]; ok {
		t.Errorf("zero expiresAt should be omitted: %s", b)
	}
}
