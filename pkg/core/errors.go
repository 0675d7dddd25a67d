package core

import (
	"errors"
	"fmt"
	"time"
)

// Error is the typed error carried across package boundaries. Provider
// adapters classify upstream failures into one of the ErrorType kinds at
// the adapter boundary; everything above switches on Type only.
type Error struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Param      string    `json:"param,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	RetryAfter time.Duration
	Cause      error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the upstream cause to errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrAuthentication ErrorType = "authentication_error"
	ErrValidation     ErrorType = "validation_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrEmptyInput     ErrorType = "provider_empty_input_error"
	ErrRateLimit      ErrorType = "provider_rate_limit_error"
	ErrProvider       ErrorType = "provider_internal_error"
	ErrPersistence    ErrorType = "persistence_error"
)

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{Type: ErrAuthentication, Message: message}
}

// NewValidationError creates a validation error for a named field.
func NewValidationError(message, param string) *Error {
	return &Error{Type: ErrValidation, Message: message, Param: param}
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(message string) *Error {
	return &Error{Type: ErrNotFound, Message: message}
}

// NewEmptyInputError reports that a provider received input it considers
// empty, for example audio with no detectable speech.
func NewEmptyInputError(provider string, cause error) *Error {
	return &Error{
		Type:     ErrEmptyInput,
		Message:  "no usable input",
		Provider: provider,
		Cause:    cause,
	}
}

// NewRateLimitError reports an upstream 429.
func NewRateLimitError(provider string, retryAfter time.Duration, cause error) *Error {
	return &Error{
		Type:       ErrRateLimit,
		Message:    "rate limited by provider",
		Provider:   provider,
		StatusCode: 429,
		RetryAfter: retryAfter,
		Cause:      cause,
	}
}

// NewProviderError wraps any other upstream failure.
func NewProviderError(provider string, statusCode int, cause error) *Error {
	msg := "provider request failed"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Type:       ErrProvider,
		Message:    msg,
		Provider:   provider,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// NewPersistenceError wraps a storage failure.
func NewPersistenceError(op string, cause error) *Error {
	return &Error{
		Type:    ErrPersistence,
		Message: fmt.Sprintf("%s failed", op),
		Param:   op,
		Cause:   cause,
	}
}

// TypeOf extracts the ErrorType from an error chain. Unclassified errors
// report ErrProvider so callers fail toward the generic message.
func TypeOf(err error) ErrorType {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ErrProvider
}

// IsRetryable reports whether retrying the same call may succeed.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrRateLimit, ErrPersistence:
		return true
	default:
		return false
	}
}
