package health

import "errors"

var (
	ErrCheckFailed     = errors.New("health: check failed")
	ErrCheckTimeout    = errors.New("health: check timed out")
	ErrCheckPanicked   = errors.New("health: check panicked")
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrInvalidChecker rejects an empty name or nil checker.
	ErrInvalidChecker = errors.New("health: invalid checker registration")
)
