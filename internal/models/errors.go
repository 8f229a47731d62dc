package models

import "errors"

var (
	// ErrValidation marks bad input that the caller can correct.
	ErrValidation = errors.New("validation failed")
	// ErrTransient marks I/O failures that may succeed on retry.
	ErrTransient = errors.New("temporarily unavailable")
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("already exists")
	// ErrInvalidState marks an operation issued in the wrong lifecycle state.
	ErrInvalidState = errors.New("invalid state")
)

// ValidationError carries a message safe to show to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
