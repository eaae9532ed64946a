package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsCategory checks if error belongs to a specific category.
func IsCategory(err error, category error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, category)
}

// MissingCredential wraps a message as a missing-credential error.
func MissingCredential(message string) error {
	return fmt.Errorf("%s: %w", message, ErrMissingCredential)
}

// NotConnected wraps a message as a not-connected error.
func NotConnected(message string) error {
	return fmt.Errorf("%s: %w", message, ErrNotConnected)
}

// UnsupportedType wraps a message as an unsupported-type error.
func UnsupportedType(message string) error {
	return fmt.Errorf("%s: %w", message, ErrUnsupportedType)
}

// SchemaViolation wraps a message as a schema violation.
func SchemaViolation(message string) error {
	return fmt.Errorf("%s: %w", message, ErrSchemaViolation)
}

// NotFound wraps a message as not found.
func NotFound(message string) error {
	return fmt.Errorf("%s: %w", message, ErrNotFound)
}

// Transient wraps a message as transient.
func Transient(message string) error {
	return fmt.Errorf("%s: %w", message, ErrTransient)
}

// Internal wraps a message as internal.
func Internal(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInternal)
}
