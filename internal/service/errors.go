package service

import (
	"errors"
	"fmt"
)

// ValidationError marks a request the caller must fix.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// ErrUploadDisabled is returned when neither Drive nor the archive is
// configured for certificate files.
var ErrUploadDisabled = errors.New("no file backend configured")

func outcome(success bool) string {
	if success {
		return "ok"
	}
	return "insufficient_data"
}
