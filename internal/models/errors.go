package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an operation targets a missing id.
var ErrNotFound = errors.New("not found")

// ValidationError reports input rejected before any mutation took place.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// DownstreamError wraps a failure of an external collaborator (AI chat,
// notifier) during check-in delivery. It is reported, never retried.
type DownstreamError struct {
	Op  string
	Err error
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DownstreamError) Unwrap() error {
	return e.Err
}
