package cache

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/jonwraymond/calldispatch/route"
)

// UseCacheParam is the reserved request parameter that toggles cache lookups.
// It never contributes to a cache key.
const UseCacheParam = "_use_cache"

// Target identifies the handler a key is derived for.
type Target struct {
	Library  string
	Callback string
}

// Keyer derives cache keys. Keys must not depend on map iteration order,
// and Key must not mutate params.
type Keyer interface {
	Key(target Target, params map[string]any) string
}

// DefaultKeyer builds keys by plain concatenation:
//
//	<short library><callback>(<name><value>)*
//
// with parameter names sorted bytewise and UseCacheParam skipped. Falsy
// values stringify to "". Parts are not delimited, so parameter sets that
// stringify identically (for example {a: 0} and {a: ""}) share a key.
type DefaultKeyer struct{}

func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

func (*DefaultKeyer) Key(target Target, params map[string]any) string {
	var b strings.Builder
	b.WriteString(route.ShortName(target.Library))
	b.WriteString(target.Callback)
	for _, name := range slices.Sorted(maps.Keys(params)) {
		if name == UseCacheParam {
			continue
		}
		b.WriteString(name)
		b.WriteString(Stringify(params[name]))
	}
	return b.String()
}

// IsFalsy reports whether v counts as an absent value: nil, false, zero,
// NaN, the empty string or a nil pointer.
func IsFalsy(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case float64:
		return val == 0 || math.IsNaN(val)
	case float32:
		return val == 0 || math.IsNaN(float64(val))
	case json.Number:
		f, err := val.Float64()
		return err == nil && f == 0
	}

	rv := reflect.ValueOf(v)
	if rv.CanInt() || rv.CanUint() {
		return rv.IsZero()
	}
	switch rv.Kind() {
	case reflect.Bool, reflect.String, reflect.Pointer:
		return rv.IsZero()
	}
	return false
}

// Stringify returns the key form of a parameter value. Numbers use their
// shortest decimal form, so 1.0 and 1 agree. Composite values render as
// JSON, whose encoder sorts map keys.
func Stringify(v any) string {
	if IsFalsy(v) {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return val.String()
	case fmt.Stringer:
		return val.String()
	}

	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return strconv.FormatInt(rv.Int(), 10)
	case rv.CanUint():
		return strconv.FormatUint(rv.Uint(), 10)
	case rv.Kind() == reflect.Bool:
		return "true"
	case rv.Kind() == reflect.String:
		return rv.String()
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}

var _ Keyer = (*DefaultKeyer)(nil)
