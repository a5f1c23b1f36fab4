package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// HandlerFunc handles one stage of a call. Authentication handlers and
// request handlers share this shape.
type HandlerFunc func(ctx context.Context, rc *RequestContext) (Outcome, error)

// Library is a set of callbacks registered under one library reference.
type Library map[string]HandlerFunc

// Registry maps library references and callback names to handlers.
// It replaces loading handler modules by name at dispatch time: everything
// a route document may reference is registered at startup.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Library
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Library)}
}

// Register adds a handler for library/callback.
func (r *Registry) Register(library, callback string, fn HandlerFunc) error {
	library = strings.TrimSpace(library)
	callback = strings.TrimSpace(callback)
	if library == "" || callback == "" || fn == nil {
		return ErrInvalidRegistration
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	lib, ok := r.handlers[library]
	if !ok {
		lib = make(Library)
		r.handlers[library] = lib
	}
	if _, exists := lib[callback]; exists {
		return fmt.Errorf("%w: %s.%s", ErrDuplicateHandler, library, callback)
	}
	lib[callback] = fn
	return nil
}

// RegisterLibrary adds every callback of lib under library.
// Nothing is registered if any callback fails.
func (r *Registry) RegisterLibrary(library string, lib Library) error {
	if strings.TrimSpace(library) == "" || len(lib) == 0 {
		return ErrInvalidRegistration
	}

	r.mu.RLock()
	existing := r.handlers[library]
	for callback, fn := range lib {
		if strings.TrimSpace(callback) == "" || fn == nil {
			r.mu.RUnlock()
			return ErrInvalidRegistration
		}
		if _, dup := existing[callback]; dup {
			r.mu.RUnlock()
			return fmt.Errorf("%w: %s.%s", ErrDuplicateHandler, library, callback)
		}
	}
	r.mu.RUnlock()

	for callback, fn := range lib {
		if err := r.Register(library, callback, fn); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister is like Register but panics on error. Intended for init-time wiring.
func (r *Registry) MustRegister(library, callback string, fn HandlerFunc) {
	if err := r.Register(library, callback, fn); err != nil {
		panic(err)
	}
}

// Handler returns the handler for library/callback.
func (r *Registry) Handler(library, callback string) (HandlerFunc, error) {
	r.mu.RLock()
	fn, ok := r.handlers[library][callback]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnresolved, library, callback)
	}
	return fn, nil
}

// Has reports whether library/callback is registered.
func (r *Registry) Has(library, callback string) bool {
	_, err := r.Handler(library, callback)
	return err == nil
}

// Libraries returns registered library references, sorted.
func (r *Registry) Libraries() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Callbacks returns the callbacks registered under library, sorted.
func (r *Registry) Callbacks(library string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lib := r.handlers[library]
	names := make([]string, 0, len(lib))
	for name := range lib {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
