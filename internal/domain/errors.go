package domain

import (
	"fmt"
	"time"
)

// ValidationError reports structurally invalid input to a public operation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// RateLimitExceededError is returned when a source's token bucket is empty.
// Callers may retry after WaitTime.
type RateLimitExceededError struct {
	Source   string
	WaitTime time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry in %dms", e.Source, e.WaitTime.Milliseconds())
}

// WaitTimeMs returns the wait time in whole milliseconds.
func (e *RateLimitExceededError) WaitTimeMs() int64 {
	return e.WaitTime.Milliseconds()
}

// SourceUnavailableError is returned when an external call failed after all retries.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// PartialDataWarning accompanies a successful aggregate when one or more
// contributing sources failed. It is not an error.
type PartialDataWarning struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}
