package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrPending is returned while a request is in flight
	ErrPending = errors.New("a request is already pending")
	// ErrNoDocument is returned when no document is active
	ErrNoDocument = errors.New("no active document")
)

// ValidationError rejects a request before anything is sent to the backend
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
