package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique, machine-readable error code
type ErrorCode string

const (
	// Generic errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeRateLimited  ErrorCode = "RATE_LIMITED"

	// Authentication errors
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeAccessDisabled     ErrorCode = "ACCESS_DISABLED"
	ErrCodeTokenInvalid       ErrorCode = "TOKEN_INVALID"

	// Device errors
	ErrCodeInvalidTransition        ErrorCode = "INVALID_TRANSITION"
	ErrCodeDeviceOperationForbidden ErrorCode = "DEVICE_OPERATION_FORBIDDEN"

	// Audit errors
	ErrCodeAuditWriteFailure ErrorCode = "AUDIT_WRITE_FAILURE"
)

// Error represents a structured error with code, message, and optional details
type Error struct {
	Code    ErrorCode              // Unique error code
	Message string                 // Human-readable error message
	Details map[string]interface{} // Optional additional details
	Err     error                  // Wrapped underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	return MapErrorCodeToHTTPStatus(e.Code)
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrapf wraps an existing error with code and formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
// Returns ErrCodeInternal if the error is not a structured Error.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidInput:
		return http.StatusBadRequest

	case ErrCodeUnauthorized, ErrCodeInvalidCredentials, ErrCodeTokenInvalid:
		return http.StatusUnauthorized

	case ErrCodeForbidden, ErrCodeAccessDisabled, ErrCodeDeviceOperationForbidden:
		return http.StatusForbidden

	case ErrCodeNotFound:
		return http.StatusNotFound

	case ErrCodeConflict, ErrCodeInvalidTransition:
		return http.StatusConflict

	case ErrCodeRateLimited:
		return http.StatusTooManyRequests

	case ErrCodeAuditWriteFailure, ErrCodeInternal:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// NotFound creates a "not found" error
func NotFound(resourceType, identifier string) *Error {
	return Newf(ErrCodeNotFound, "%s not found: %s", resourceType, identifier)
}

// InvalidInput creates an "invalid input" error
func InvalidInput(field, reason string) *Error {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason))
}

// Forbidden creates a "forbidden" error
func Forbidden(message string) *Error {
	return New(ErrCodeForbidden, message)
}

// InternalWrap wraps an internal error
func InternalWrap(err error, message string) *Error {
	return Wrap(err, ErrCodeInternal, message)
}

// InvalidCredentials is returned when the credential verifier rejects a login
func InvalidCredentials() *Error {
	return New(ErrCodeInvalidCredentials, "invalid credentials")
}

// AccessDisabled is returned when the account is administratively disabled
func AccessDisabled() *Error {
	return New(ErrCodeAccessDisabled, "account access is disabled")
}

// TokenInvalid is returned for stale, forged or revoked session tokens
func TokenInvalid(reason string) *Error {
	return New(ErrCodeTokenInvalid, reason)
}

// InvalidTransition creates a status transition error
func InvalidTransition(from, to string) *Error {
	return Newf(ErrCodeInvalidTransition, "cannot change status from %s to %s", from, to).
		WithDetail("from", from).
		WithDetail("to", to)
}

// DeviceOperationForbidden creates an error for device operations the caller may not perform
func DeviceOperationForbidden(message string) *Error {
	return New(ErrCodeDeviceOperationForbidden, message)
}

// RateLimited is returned when a caller exceeds its request budget
func RateLimited() *Error {
	return New(ErrCodeRateLimited, "too many requests, try again later")
}
