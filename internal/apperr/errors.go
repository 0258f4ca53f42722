// Package apperr holds the error taxonomy shared by services and handlers.
package apperr

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
)

// FieldError reports a problem with a single request field. It unwraps to
// ErrValidation or ErrConflict so callers can pick the status code.
type FieldError struct {
	Field   string
	Message string
	kind    error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *FieldError) Unwrap() error {
	return e.kind
}

func Invalid(field, message string) error {
	return &FieldError{Field: field, Message: message, kind: ErrValidation}
}

func Duplicate(field, message string) error {
	return &FieldError{Field: field, Message: message, kind: ErrConflict}
}
