// Package apperr defines the error kinds surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a stable, caller-visible error category.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindForbidden   Kind = "forbidden"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindUnavailable Kind = "unavailable"
	KindInternal    Kind = "internal"
)

// Error carries a Kind, a human-readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Validation reports missing or malformed input.
func Validation(message string) *Error { return newError(KindValidation, message, nil) }

// Forbidden reports an actor acting on a resource it has no access to.
func Forbidden(message string) *Error { return newError(KindForbidden, message, nil) }

// NotFound reports a referenced entity that does not exist.
func NotFound(message string) *Error { return newError(KindNotFound, message, nil) }

// Conflict reports a write that would break an invariant.
func Conflict(message string, cause error) *Error { return newError(KindConflict, message, cause) }

// Unavailable reports a store that cannot be reached or a transaction that could not commit.
func Unavailable(message string, cause error) *Error {
	return newError(KindUnavailable, message, cause)
}

// Internal reports a bug or an unexpected state.
func Internal(message string, cause error) *Error { return newError(KindInternal, message, cause) }

// KindOf returns the kind of err, or KindInternal for errors that carry none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the caller-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
