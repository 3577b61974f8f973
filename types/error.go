package types

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unified error code across the swarm.
type ErrorCode string

// Request error codes
const (
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotReady     ErrorCode = "NOT_READY"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
)

// Upstream error codes
const (
	ErrProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"
	ErrRateLimited         ErrorCode = "RATE_LIMITED"
	ErrAuthentication      ErrorCode = "AUTHENTICATION"
)

// Routing and persistence error codes
const (
	ErrRoutingExhausted       ErrorCode = "ROUTING_EXHAUSTED"
	ErrResponderFailure       ErrorCode = "RESPONDER_FAILURE"
	ErrConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"
	ErrCollectionNotReady     ErrorCode = "COLLECTION_NOT_READY"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps cause into an Error with the given code.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// AsError returns the outermost *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// NewInvalidInputError builds an INVALID_INPUT error.
func NewInvalidInputError(message string) *Error {
	return NewError(ErrInvalidInput, message).WithHTTPStatus(http.StatusBadRequest)
}

// NewNotReadyError builds a NOT_READY error that callers may retry later.
func NewNotReadyError(message string, cause error) *Error {
	return WrapError(ErrNotReady, message, cause).
		WithHTTPStatus(http.StatusServiceUnavailable).
		WithRetryable(true)
}

// NewTimeoutError builds an UPSTREAM_TIMEOUT error.
func NewTimeoutError(message string, cause error) *Error {
	return WrapError(ErrUpstreamTimeout, message, cause).
		WithHTTPStatus(http.StatusGatewayTimeout)
}

// FromContext converts a context error into an Error. Other errors pass through.
func FromContext(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError("deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewTimeoutError("request cancelled", err)
	default:
		return err
	}
}
