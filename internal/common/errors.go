// Package common defines shared constants and sentinel errors used across
// the store, service, and api layers. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Store-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")
	ErrorCorrupt       = errors.New("corrupt record")
	ErrorStorage       = errors.New("storage failure")

	// Validation errors.
	ErrorInvalidInput = errors.New("invalid input")

	// A related record required as a precondition is missing.
	ErrorMissingDependency = errors.New("missing dependency")

	// Auth errors.
	ErrorForbidden    = errors.New("forbidden")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrTokenExpired   = errors.New("token expired")

	// Check lifecycle errors.
	ErrorLimitExceeded = errors.New("limit exceeded")
	ErrorInconsistent  = errors.New("inconsistent data")
	ErrorOrphanedCheck = errors.New("orphaned check")
)

// Error attaches a caller-facing message, and optionally the underlying
// cause, to one of the sentinel errors above. errors.Is matches both the
// sentinel and the cause.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

// NewError returns an *Error of the given kind.
func NewError(kind error, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// WrapError returns an *Error of the given kind that also wraps cause.
func WrapError(kind error, msg string, cause error) error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// Message returns the caller-facing message of err. For an *Error anywhere
// in the chain this is its Message without the cause; otherwise err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
