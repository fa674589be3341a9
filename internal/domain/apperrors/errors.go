// Package apperrors defines the error categories surfaced by domain services.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
)

// NotFound returns an error wrapping ErrNotFound with a specific reason.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// Validation returns an error wrapping ErrValidation with a specific reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

// Conflict returns an error wrapping ErrConflict with a specific reason.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}

// IsRejection reports whether err is a caller-facing rejection rather than
// an unexpected failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict)
}
