package dispatch

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/jonwraymond/calldispatch/cache"
	"github.com/jonwraymond/calldispatch/route"
)

// RequestContext is the per-request state handed to both pipeline stages.
//
// Params holds the merged request parameters and is the only input to the
// cache key. Values set by the authentication stage (for example the
// authenticated identity) are visible to the request handler through Value
// but never affect the key.
type RequestContext struct {
	Params  map[string]any
	Request *http.Request
	Writer  http.ResponseWriter

	// Call is the call being dispatched. Set by the pipeline.
	Call *route.Call

	mu     sync.RWMutex
	values map[string]any
}

// NewRequestContext creates a RequestContext. A nil params map is replaced
// by an empty one.
func NewRequestContext(params map[string]any, r *http.Request, w http.ResponseWriter) *RequestContext {
	if params == nil {
		params = make(map[string]any)
	}
	return &RequestContext{Params: params, Request: r, Writer: w}
}

// Param returns a request parameter.
func (rc *RequestContext) Param(name string) (any, bool) {
	v, ok := rc.Params[name]
	return v, ok
}

// String returns a parameter as a string, or "" when absent or not a string.
func (rc *RequestContext) String(name string) string {
	s, _ := rc.Params[name].(string)
	return s
}

// Set stores a value for later stages.
func (rc *RequestContext) Set(key string, v any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.values == nil {
		rc.values = make(map[string]any)
	}
	rc.values[key] = v
}

// Value returns a value stored with Set.
func (rc *RequestContext) Value(key string) (any, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	v, ok := rc.values[key]
	return v, ok
}

// UseCache reports whether the request asks for a cache lookup through the
// reserved cache.UseCacheParam parameter. Absent or falsy means no lookup.
// Strings are parsed as booleans first, so "false" and "0" are falsy.
func (rc *RequestContext) UseCache() bool {
	v, ok := rc.Params[cache.UseCacheParam]
	if !ok {
		return false
	}
	if s, ok := v.(string); ok {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return !cache.IsFalsy(v)
}
