package service

import "fmt"

// ValidationError reports a rejected request field. The API layer maps it
// to a 400 response.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
