package route

import "errors"

// Sentinel errors for route document loading.
var (
	// ErrNoSource indicates the route document path is empty or missing.
	ErrNoSource = errors.New("route: routes file not supplied or not present")

	// ErrParse indicates the route document could not be parsed.
	ErrParse = errors.New("route: cannot parse routes file")

	// ErrMalformedCall indicates a call without a library or callback.
	ErrMalformedCall = errors.New("route: call requires library and callback")

	// ErrUnknownAuthentication indicates a call references an undefined binding.
	ErrUnknownAuthentication = errors.New("route: unknown authentication binding")

	// ErrInvalidRoute indicates a call with an unusable method or path.
	ErrInvalidRoute = errors.New("route: invalid route")

	// ErrInvalidParameter indicates a parameter schema that cannot be applied.
	ErrInvalidParameter = errors.New("route: invalid parameter schema")
)
