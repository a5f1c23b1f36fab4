package route

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// Parameter types understood by ParamSpec.Type.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
	TypeFile    = "file"
)

var paramTypes = map[string]bool{
	"":          true,
	TypeString:  true,
	TypeNumber:  true,
	TypeInteger: true,
	TypeBoolean: true,
	TypeObject:  true,
	TypeArray:   true,
	TypeFile:    true,
}

// ParamSpec is the validation schema of a single request parameter.
type ParamSpec struct {
	// Required rejects requests that omit the parameter.
	Required bool `koanf:"required"`

	// Type is one of string, number, integer, boolean, object, array, file.
	// Empty accepts any value.
	Type string `koanf:"type"`

	// Pattern is a regular expression string values must match.
	Pattern string `koanf:"pattern"`

	// Min and Max bound string length or numeric value.
	Min *float64 `koanf:"min"`
	Max *float64 `koanf:"max"`

	// Enum restricts the value to one of the listed strings.
	Enum []string `koanf:"enum"`

	Description string `koanf:"description"`
}

// Check reports a schema that can never validate: an unknown type, a
// pattern that does not compile, or min above max.
func (s ParamSpec) Check() error {
	if !paramTypes[s.Type] {
		return fmt.Errorf("unknown type %q", s.Type)
	}
	if s.Pattern != "" {
		if _, err := regexp.Compile(s.Pattern); err != nil {
			return fmt.Errorf("pattern: %w", err)
		}
	}
	if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
		return fmt.Errorf("min %v exceeds max %v", *s.Min, *s.Max)
	}
	if lengthTypes[s.Type] {
		for _, b := range []*float64{s.Min, s.Max} {
			if b != nil && (*b < 0 || *b != math.Trunc(*b)) {
				return fmt.Errorf("length bound %v is not a whole number", *b)
			}
		}
	}
	return nil
}

// lengthTypes bound their length rather than their value.
var lengthTypes = map[string]bool{TypeString: true, TypeArray: true, TypeObject: true}

// AuthBinding is a named authentication step shared by calls.
type AuthBinding struct {
	// Name is the key of the binding in the document's authentication section.
	Name string `koanf:"-"`

	Library  string `koanf:"library"`
	Callback string `koanf:"callback"`

	// Parameters are merged into the schema of every call using the binding.
	Parameters map[string]ParamSpec `koanf:"parameters"`

	// Options configure the authentication library (secrets, key lists).
	// String values have been expanded against the environment.
	Options map[string]any `koanf:"options"`
}

// CachingPolicy controls whether results of a call may be served from cache.
type CachingPolicy struct {
	Enabled bool `koanf:"enabled"`

	// TTL overrides the cache default TTL for this call. Zero uses the default.
	TTL time.Duration `koanf:"ttl"`

	// Options are passed through to the cache backend.
	Options map[string]any `koanf:"options"`
}

// Call binds an HTTP route to a handler callback.
//
// Calls are immutable once loaded and shared read-only across requests.
type Call struct {
	Method   string `koanf:"method"`
	Path     string `koanf:"path"`
	Library  string `koanf:"library"`
	Callback string `koanf:"callback"`

	Parameters map[string]ParamSpec `koanf:"parameters"`

	// Authentication names a binding in the document; Auth is the resolved binding.
	Authentication string       `koanf:"authentication"`
	Auth           *AuthBinding `koanf:"-"`

	Caching CachingPolicy `koanf:"caching"`

	// Cache disables storing results when explicitly false.
	Cache *bool `koanf:"cache"`

	// RawResponse returns handler data without the success envelope.
	RawResponse bool `koanf:"rawResponse"`
}

// StoresResults reports whether successful results may be written to cache.
func (c *Call) StoresResults() bool {
	return c.Cache == nil || *c.Cache
}

// ShortLibrary returns the last path segment of the library reference.
func (c *Call) ShortLibrary() string {
	return ShortName(c.Library)
}

// ID returns a stable identifier of the bound callback, "<library>.<callback>".
func (c *Call) ID() string {
	return c.Library + "." + c.Callback
}

// Malformed reports whether the call lacks a library or callback.
func (c *Call) Malformed() bool {
	return strings.TrimSpace(c.Library) == "" || strings.TrimSpace(c.Callback) == ""
}

// ShortName returns the last "/"-separated segment of a library reference.
func ShortName(library string) string {
	if i := strings.LastIndex(library, "/"); i >= 0 {
		return library[i+1:]
	}
	return library
}

// CombineWithAuthentication returns a copy of call whose parameter schema
// also covers the parameters declared by its authentication binding.
// Binding entries replace call entries of the same name. Calls without a
// binding are returned unchanged.
func CombineWithAuthentication(call Call) Call {
	if call.Auth == nil {
		return call
	}

	params := make(map[string]ParamSpec, len(call.Parameters)+len(call.Auth.Parameters))
	for name, spec := range call.Parameters {
		params[name] = spec
	}
	for name, spec := range call.Auth.Parameters {
		params[name] = spec
	}
	call.Parameters = params
	return call
}
