package dispatch

import (
	"errors"

	"github.com/jonwraymond/calldispatch/route"
)

var (
	// ErrMalformedCall indicates a call without library or callback.
	// It is the same value as route.ErrMalformedCall.
	ErrMalformedCall = route.ErrMalformedCall

	// ErrUnresolved indicates no handler is registered for a library/callback pair.
	ErrUnresolved = errors.New("dispatch: handler not registered")

	// ErrInvalidRegistration indicates an empty name or nil handler.
	ErrInvalidRegistration = errors.New("dispatch: invalid handler registration")

	// ErrDuplicateHandler indicates a library/callback pair registered twice.
	ErrDuplicateHandler = errors.New("dispatch: handler already registered")

	// ErrCodec indicates a cached outcome could not be encoded or decoded.
	ErrCodec = errors.New("dispatch: outcome codec")
)

// Error is a handler error reported to clients as a JSON object.
// Errors of other types are reported by their message.
type Error struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewError creates an Error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details any) *Error {
	c := *e
	c.Details = details
	return &c
}
