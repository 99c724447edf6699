package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the application. Services wrap them with detail,
// handlers map them to HTTP status codes with errors.Is.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("resource already exists")
	ErrInvalidInput = errors.New("invalid input")
)

// ErrMessageDeleted is returned when mutating a redacted message.
var ErrMessageDeleted = fmt.Errorf("%w: message is deleted", ErrInvalidInput)

// Invalid wraps ErrInvalidInput with a human readable reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
