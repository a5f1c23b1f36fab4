package route

import "testing"

func TestCombineWithAuthentication_NoBinding(t *testing.T) {
	call := Call{
		Library:    "lib/users",
		Callback:   "get",
		Parameters: map[string]ParamSpec{"id": {Required: true}},
	}

	got := CombineWithAuthentication(call)
	if len(got.Parameters) != 1 || !got.Parameters["id"].Required {
		t.Fatalf("expected parameters unchanged, got %+v", got.Parameters)
	}
}

func TestCombineWithAuthentication_MergesBindingParameters(t *testing.T) {
	call := Call{
		Library:  "lib/users",
		Callback: "get",
		Parameters: map[string]ParamSpec{
			"id":    {Required: true},
			"token": {Type: "number"},
		},
		Auth: &AuthBinding{
			Library:  "auth/jwt",
			Callback: "verify",
			Parameters: map[string]ParamSpec{
				"token": {Required: true, Type: "string"},
			},
		},
	}

	got := CombineWithAuthentication(call)
	if len(got.Parameters) != 2 {
		t.Fatalf("expected 2 parameters, got %d", len(got.Parameters))
	}
	if got.Parameters["token"].Type != "string" || !got.Parameters["token"].Required {
		t.Errorf("expected binding spec to win, got %+v", got.Parameters["token"])
	}
	if call.Parameters["token"].Type != "number" {
		t.Errorf("original call was mutated")
	}
}

func TestCall_Helpers(t *testing.T) {
	off := false
	on := true

	tests := []struct {
		name  string
		call  Call
		short string
		store bool
		bad   bool
	}{
		{name: "nested library", call: Call{Library: "lib/users", Callback: "get"}, short: "users", store: true},
		{name: "flat library", call: Call{Library: "users", Callback: "get", Cache: &on}, short: "users", store: true},
		{name: "cache disabled", call: Call{Library: "a/b/c", Callback: "get", Cache: &off}, short: "c", store: false},
		{name: "no callback", call: Call{Library: "a"}, short: "a", store: true, bad: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.call.ShortLibrary(); got != tt.short {
				t.Errorf("ShortLibrary() = %q, want %q", got, tt.short)
			}
			if got := tt.call.StoresResults(); got != tt.store {
				t.Errorf("StoresResults() = %v, want %v", got, tt.store)
			}
			if got := tt.call.Malformed(); got != tt.bad {
				t.Errorf("Malformed() = %v, want %v", got, tt.bad)
			}
		})
	}
}
