// ABOUTME: Error taxonomy shared by all services and both front-ends
// ABOUTME: Maps internal failures onto the stable error kinds of the tool-call protocol
package narraerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the tool-call protocol and CLI exit codes.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindReferential  Kind = "referential_integrity"
	KindConsistency  Kind = "consistency_violation"
	KindModel        Kind = "model_unavailable"
	KindDatabase     Kind = "database"
	KindCancelled    Kind = "cancelled"
	KindTimedOut     Kind = "timed_out"
	KindBusy         Kind = "busy"
	KindInsufficient Kind = "insufficient_data"
)

// Error carries a kind, a single-sentence message, and an optional entity hint.
type Error struct {
	Kind       Kind
	Message    string
	EntityHint string
	wrapped    error
}

func (e *Error) Error() string {
	if e.EntityHint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.EntityHint)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), wrapped: err}
}

// NotFound builds the canonical not-found error for an entity.
func NotFound(entityType, id string) *Error {
	return &Error{
		Kind:       KindNotFound,
		Message:    fmt.Sprintf("%s not found", entityType),
		EntityHint: id,
	}
}

// Validation builds a user-input error. Never retried, surfaced verbatim.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// Database wraps a storage failure with context.
func Database(err error, format string, args ...any) *Error {
	return Wrap(KindDatabase, err, format, args...)
}

// KindOf extracts the kind from any error chain, defaulting to Database.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindDatabase
}

// HintOf extracts the entity hint from an error chain, if present.
func HintOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.EntityHint
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
