// Package errors defines the unified error taxonomy for gateway operations.
// Every provider or transport failure is mapped to one of these types before
// it crosses an adapter boundary; raw upstream errors are never surfaced.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types carried on the wire.
const (
	TypeAuth           = "auth_error"
	TypeValidation     = "validation_error"
	TypeProvider       = "provider_error"
	TypeInternal       = "internal_error"
	TypeNotImplemented = "not_implemented"
	TypeHTTP           = "http_error"
)

// Error is a standardized application error with a stable wire status code.
type Error struct {
	Status  int            `json:"-"`
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`

	// Timeout marks an explicit upstream read timeout. Callers may retry
	// timeouts differently than hard provider failures.
	Timeout bool `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s (code=%d)", e.Type, e.Message, e.Status)
}

// HTTPStatusCode returns the wire status code for the error.
func (e *Error) HTTPStatusCode() int {
	if e.Status > 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// WithDetails attaches structured, non-sensitive context to the error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Payload returns the standardized error body:
// {"error": {"type": ..., "message": ..., "details": ...}}.
func (e *Error) Payload() map[string]any {
	inner := map[string]any{
		"type":    e.Type,
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		inner["details"] = e.Details
	}
	return map[string]any{"error": inner}
}

// NewAuthError creates an authentication error (401).
func NewAuthError(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Type: TypeAuth, Message: message}
}

// NewValidationError creates a canonical-schema validation error (422).
func NewValidationError(message string) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Type: TypeValidation, Message: message}
}

// NewProviderError creates an upstream provider failure (502).
// The message must be human-readable and non-sensitive.
func NewProviderError(message string) *Error {
	return &Error{Status: http.StatusBadGateway, Type: TypeProvider, Message: message}
}

// NewProviderTimeout creates a provider error marking an explicit upstream
// read timeout (502). Distinguishable from generic unreachability via IsTimeout.
func NewProviderTimeout(message string) *Error {
	return &Error{Status: http.StatusBadGateway, Type: TypeProvider, Message: message, Timeout: true}
}

// NewInternalError creates an internal error (500) with a generic message.
// The cause is intentionally discarded from the wire representation.
func NewInternalError() *Error {
	return &Error{Status: http.StatusInternalServerError, Type: TypeInternal, Message: "An internal error occurred."}
}

// NewNotImplementedError creates a not-implemented error (501), used when
// streaming is requested against a provider without streaming support.
func NewNotImplementedError(message string) *Error {
	return &Error{Status: http.StatusNotImplemented, Type: TypeNotImplemented, Message: message}
}

// NewHTTPError normalizes a generic HTTP failure into the standard shape,
// preserving the original client-error status code.
func NewHTTPError(status int, message string) *Error {
	return &Error{
		Status:  status,
		Type:    TypeHTTP,
		Message: message,
		Details: map[string]any{"status_code": status},
	}
}

// AsError extracts an *Error from err, or nil if err is not one.
func AsError(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsTimeout reports whether err is an explicit upstream read timeout.
func IsTimeout(err error) bool {
	if appErr := AsError(err); appErr != nil {
		return appErr.Timeout
	}
	return false
}
