// Package errors defines the domain error taxonomy and the mapping from
// infrastructure errors onto it. Keeps service and handler layers clean by
// centralizing classification in one place.
package errors

import (
	"context"
	stderrors "errors"
	"net/http"

	"gorm.io/gorm"
)

// Kind classifies an error for transport mapping and for tests.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindValidation
	KindConflict
	KindNotFound
)

// Error is a classified domain error with a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
	// Field is set on validation errors that concern one input field.
	Field string
}

func (e *Error) Error() string { return e.Message }

// Unauthorized reports a role or scope failure. No state change happened.
func Unauthorized(msg string) error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// Validation reports a missing or malformed input field.
func Validation(field, msg string) error {
	return &Error{Kind: KindValidation, Message: msg, Field: field}
}

// Conflict reports a state conflict: duplicate pending request, an already
// answered or expired proposition, identical reference/compatible ids.
func Conflict(msg string) error {
	return &Error{Kind: KindConflict, Message: msg}
}

// NotFound reports a missing referenced record.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Map converts repo/infra errors into classified domain errors.
// Already-classified errors pass through untouched.
func Map(err error) error {
	if err == nil {
		return nil
	}

	var de *Error
	if stderrors.As(err, &de) {
		return err
	}

	switch {
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return NotFound("record not found")

	case stderrors.Is(err, context.DeadlineExceeded),
		stderrors.Is(err, context.Canceled):
		return &Error{Kind: KindInternal, Message: "request aborted"}

	default:
		return &Error{Kind: KindInternal, Message: err.Error()}
	}
}

// KindOf extracts the Kind of a classified error; unclassified errors are
// internal.
func KindOf(err error) Kind {
	var de *Error
	if stderrors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// Status maps a classified error onto an HTTP status code for the transport
// layer.
func Status(err error) int {
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// IsKind reports whether err carries the given kind. Convenience for tests.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
