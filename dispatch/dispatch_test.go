package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRegistry_RegisterAndResolve(t *testing.T) {
	reg := NewRegistry()
	fn := func(context.Context, *RequestContext) (Outcome, error) { return Plain("ok"), nil }

	if err := reg.Register("lib/users", "get", fn); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register("lib/users", "get", fn); !errors.Is(err, ErrDuplicateHandler) {
		t.Errorf("duplicate Register error = %v", err)
	}
	for _, bad := range [][2]string{{"", "get"}, {"lib", ""}, {"  ", "x"}} {
		if err := reg.Register(bad[0], bad[1], fn); !errors.Is(err, ErrInvalidRegistration) {
			t.Errorf("Register(%q, %q) error = %v", bad[0], bad[1], err)
		}
	}
	if err := reg.Register("lib", "nil", nil); !errors.Is(err, ErrInvalidRegistration) {
		t.Errorf("nil handler error = %v", err)
	}

	got, err := reg.Handler("lib/users", "get")
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	out, _ := got(context.Background(), nil)
	if out.Data() != "ok" {
		t.Errorf("resolved handler returned %v", out.Data())
	}
	if _, err := reg.Handler("lib/users", "delete"); !errors.Is(err, ErrUnresolved) {
		t.Errorf("missing handler error = %v", err)
	}
	if !reg.Has("lib/users", "get") || reg.Has("nope", "get") {
		t.Error("Has() mismatch")
	}
}

func TestRegistry_RegisterLibraryAtomic(t *testing.T) {
	reg := NewRegistry()
	fn := func(context.Context, *RequestContext) (Outcome, error) { return Plain(nil), nil }
	reg.MustRegister("lib", "b", fn)

	err := reg.RegisterLibrary("lib", Library{"a": fn, "b": fn})
	if !errors.Is(err, ErrDuplicateHandler) {
		t.Fatalf("RegisterLibrary error = %v", err)
	}
	if reg.Has("lib", "a") {
		t.Error("partial registration after failure")
	}

	if err := reg.RegisterLibrary("other", Library{"x": fn, "y": fn}); err != nil {
		t.Fatalf("RegisterLibrary: %v", err)
	}
	if fmt.Sprint(reg.Libraries()) != "[lib other]" {
		t.Errorf("Libraries() = %v", reg.Libraries())
	}
	if fmt.Sprint(reg.Callbacks("other")) != "[x y]" {
		t.Errorf("Callbacks() = %v", reg.Callbacks("other"))
	}
}

func TestRegistry_MustRegisterPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewRegistry().MustRegister("", "", nil)
}

func TestRequestContext_UseCache(t *testing.T) {
	tests := []struct {
		name string
		v    any
		set  bool
		want bool
	}{
		{"absent", nil, false, false},
		{"nil", nil, true, false},
		{"true", true, true, true},
		{"false", false, true, false},
		{"one", 1, true, true},
		{"zero", 0, true, false},
		{"string true", "true", true, true},
		{"string false", "false", true, false},
		{"string 0", "0", true, false},
		{"string empty", "", true, false},
		{"string yes", "yes", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := map[string]any{}
			if tt.set {
				params["_use_cache"] = tt.v
			}
			if got := NewRequestContext(params, nil, nil).UseCache(); got != tt.want {
				t.Errorf("UseCache() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequestContext_Values(t *testing.T) {
	rc := NewRequestContext(nil, nil, nil)
	if rc.Params == nil {
		t.Fatal("nil params not replaced")
	}
	if _, ok := rc.Value("user"); ok {
		t.Error("unexpected value")
	}
	rc.Set("user", "alice")
	if v, ok := rc.Value("user"); !ok || v != "alice" {
		t.Errorf("Value() = %v, %v", v, ok)
	}
	rc.Params["name"] = "bob"
	if rc.String("name") != "bob" || rc.String("missing") != "" {
		t.Error("String() mismatch")
	}
}

func TestErrorValue(t *testing.T) {
	derr := NewError("E_AUTH", "denied").WithDetails(map[string]any{"reason": "expired"})

	if got := mustJSON(t, ErrorValue(derr)); got != `{"code":"E_AUTH","message":"denied","details":{"reason":"expired"}}` {
		t.Errorf("dispatch error = %s", got)
	}
	if got := mustJSON(t, ErrorValue(fmt.Errorf("wrapped: %w", derr))); got != `{"code":"E_AUTH","message":"denied","details":{"reason":"expired"}}` {
		t.Errorf("wrapped dispatch error = %s", got)
	}
	if got := mustJSON(t, ErrorValue(errors.New("plain"))); got != `"plain"` {
		t.Errorf("plain error = %s", got)
	}
	if ErrorValue(nil) != nil {
		t.Error("nil error should have nil value")
	}
	if derr.Error() != "E_AUTH: denied" || NewError("", "m").Error() != "m" {
		t.Error("Error() text mismatch")
	}
}

func TestEnvelopes(t *testing.T) {
	if got := mustJSON(t, SuccessBody(nil)); got != `{"success":true,"data":null}` {
		t.Errorf("success with nil data = %s", got)
	}
	if got := mustJSON(t, FailureBody("e", nil)); got != `{"success":false,"error":"e"}` {
		t.Errorf("failure without data = %s", got)
	}
	if got := mustJSON(t, FailureBody("e", 3)); got != `{"success":false,"error":"e","data":3}` {
		t.Errorf("failure with data = %s", got)
	}
}

func TestCodec_SideChannelSurvives(t *testing.T) {
	type user struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	in := WithSideChannel(user{Name: "Ann", Age: 30}, SideChannel{
		SetCookies:   []Cookie{{Name: "s", Value: "1", Options: CookieOptions{MaxAge: time.Hour, Secure: true, SameSite: "lax"}}},
		ResponseType: ResponseDownload,
		Filename:     "a.txt",
	})

	b, err := EncodeOutcome(in)
	if err != nil {
		t.Fatalf("EncodeOutcome: %v", err)
	}
	out, err := DecodeOutcome(b)
	if err != nil {
		t.Fatalf("DecodeOutcome: %v", err)
	}

	if mustJSON(t, out.Data()) != `{"age":30,"name":"Ann"}` {
		t.Errorf("data = %s", mustJSON(t, out.Data()))
	}
	side, ok := out.Side()
	if !ok {
		t.Fatal("side channel lost")
	}
	if side.ResponseType != ResponseDownload || side.Filename != "a.txt" {
		t.Errorf("side = %+v", side)
	}
	c := side.SetCookies[0]
	if c.Options.MaxAge != time.Hour || !c.Options.Secure || c.Options.SameSite != "lax" {
		t.Errorf("cookie options = %+v", c.Options)
	}
}

func TestCodec_PlainStaysPlain(t *testing.T) {
	b, err := EncodeOutcome(Plain(nil))
	if err != nil {
		t.Fatal(err)
	}
	out, err := DecodeOutcome(b)
	if err != nil {
		t.Fatal(err)
	}
	if out.Exposed() || out.Data() != nil {
		t.Errorf("decoded = %+v", out)
	}
	if _, err := DecodeOutcome([]byte{0xc1}); !errors.Is(err, ErrCodec) {
		t.Errorf("garbage decode error = %v", err)
	}
}
