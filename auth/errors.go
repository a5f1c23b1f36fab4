package auth

import "errors"

// Sentinel errors for authentication.
var (
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")
	ErrKeyNotFound        = errors.New("auth: signing key not found")

	// ErrForbidden indicates an authenticated identity lacks a required role.
	ErrForbidden = errors.New("auth: access denied")

	// ErrUnknownAuthenticator indicates no factory is registered under a name.
	ErrUnknownAuthenticator = errors.New("auth: unknown authenticator")

	// ErrInvalidOption indicates a binding option has the wrong shape.
	ErrInvalidOption = errors.New("auth: invalid option")

	// ErrNoBinding indicates an auth handler ran for a call without a binding.
	ErrNoBinding = errors.New("auth: call has no authentication binding")
)
