package provider

import "fmt"

// ProviderError wraps an embedding API failure with enough context to
// decide whether the owning job should retry.
type ProviderError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

// NewProviderError creates a ProviderError.
func NewProviderError(op string, statusCode int, message string, err error) *ProviderError {
	return &ProviderError{Op: op, StatusCode: statusCode, Message: message, Err: err}
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
