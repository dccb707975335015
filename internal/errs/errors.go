// Package errs defines the transport-neutral error kinds shared across the
// service layer. Handlers map these to HTTP status codes; nothing below this
// package should know about HTTP.
package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound     = errors.New("not_found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrInvalid      = errors.New("invalid")
	// ErrAlreadyExists indicates a uniqueness constraint was violated (account name collision).
	ErrAlreadyExists = errors.New("already_exists")
	// ErrStorage wraps a persistence failure; Commit retries it once with a fresh transaction before returning it.
	ErrStorage = errors.New("storage")
	// ErrCanceled is returned when a caller-supplied context is canceled before
	// an operation reaches its atomic commit point.
	ErrCanceled = errors.New("canceled")
)
