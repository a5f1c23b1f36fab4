package route

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jonwraymond/calldispatch/secret"
)

// Document is a parsed and validated route document.
type Document struct {
	Calls    []Call                  `koanf:"routes"`
	Bindings map[string]*AuthBinding `koanf:"authentication"`
}

var validMethods = map[string]bool{
	"GET":     true,
	"POST":    true,
	"PUT":     true,
	"DELETE":  true,
	"PATCH":   true,
	"HEAD":    true,
	"OPTIONS": true,
}

// Load reads the route document at path.
//
// The document must exist and parse. Every call must name a library and
// callback, use a known HTTP method, and reference only bindings defined in
// the authentication section. Binding options are expanded against the
// environment. Any failure is returned; callers treat it as fatal.
func Load(path string) (*Document, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrNoSource
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoSource, path)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if !k.Exists("routes") {
		return nil, fmt.Errorf("%w: missing routes section", ErrParse)
	}

	var doc Document
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	if err := doc.resolve(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Routes loads the document at path and returns its calls.
func Routes(path string) ([]Call, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}
	return doc.Routes(), nil
}

// Authentication loads the document at path and returns the named binding.
// The boolean is false when the document has no such binding.
func Authentication(path, name string) (*AuthBinding, bool, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, false, err
	}
	b, ok := doc.Authentication(name)
	return b, ok, nil
}

// Routes returns the document's calls in declaration order.
func (d *Document) Routes() []Call {
	out := make([]Call, len(d.Calls))
	copy(out, d.Calls)
	return out
}

// Authentication returns the named binding.
func (d *Document) Authentication(name string) (*AuthBinding, bool) {
	b, ok := d.Bindings[name]
	return b, ok
}

func (d *Document) resolve() error {
	for name, b := range d.Bindings {
		if b == nil {
			return fmt.Errorf("%w: authentication %q is empty", ErrMalformedCall, name)
		}
		b.Name = name
		if strings.TrimSpace(b.Library) == "" || strings.TrimSpace(b.Callback) == "" {
			return fmt.Errorf("%w: authentication %q", ErrMalformedCall, name)
		}
		if err := checkParams(b.Parameters); err != nil {
			return fmt.Errorf("%w: authentication %q %v", ErrInvalidParameter, name, err)
		}
		opts, err := secret.ExpandOptions(b.Options)
		if err != nil {
			return fmt.Errorf("route: authentication %q: %w", name, err)
		}
		b.Options = opts
	}

	seen := make(map[string]int, len(d.Calls))
	for i := range d.Calls {
		c := &d.Calls[i]

		c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
		if c.Method == "" {
			c.Method = "GET"
		}
		if !validMethods[c.Method] {
			return fmt.Errorf("%w: routes[%d]: method %q", ErrInvalidRoute, i, c.Method)
		}
		if !strings.HasPrefix(c.Path, "/") {
			return fmt.Errorf("%w: routes[%d]: path %q must start with /", ErrInvalidRoute, i, c.Path)
		}
		if c.Malformed() {
			return fmt.Errorf("%w: routes[%d] %s %s", ErrMalformedCall, i, c.Method, c.Path)
		}

		if err := checkParams(c.Parameters); err != nil {
			return fmt.Errorf("%w: routes[%d] %s %s: %v", ErrInvalidParameter, i, c.Method, c.Path, err)
		}

		sig := c.Method + " " + c.Path
		if j, dup := seen[sig]; dup {
			return fmt.Errorf("%w: routes[%d] duplicates routes[%d] (%s)", ErrInvalidRoute, i, j, sig)
		}
		seen[sig] = i

		if c.Authentication != "" {
			b, ok := d.Bindings[c.Authentication]
			if !ok {
				return fmt.Errorf("%w: routes[%d] references %q", ErrUnknownAuthentication, i, c.Authentication)
			}
			c.Auth = b
		}
	}
	return nil
}

func checkParams(params map[string]ParamSpec) error {
	for name, spec := range params {
		if err := spec.Check(); err != nil {
			return fmt.Errorf("parameter %q: %w", name, err)
		}
	}
	return nil
}
