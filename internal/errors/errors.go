// Package errors defines structured error types for the command API.
//
// Internally every failure carries a kind and an HTTP status; at the command
// boundary it collapses to a flat human-readable message, which is the only
// part of the contract the front end relies on.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode defines specific error kinds for the command API.
type ErrorCode string

const (
	// ErrValidationFailed is returned when input data fails validation,
	// e.g. an empty or invalid workspace filename.
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrNotFound is returned when a referenced data file does not exist.
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrConflict is returned when creating a workspace whose files already exist.
	ErrConflict ErrorCode = "CONFLICT"
	// ErrNoWorkspace is returned when a command requires an active workspace
	// and none is loaded.
	ErrNoWorkspace ErrorCode = "NO_WORKSPACE"
	// ErrFormat is returned when a data or schema file on disk cannot be
	// parsed into the expected shape.
	ErrFormat ErrorCode = "FORMAT_ERROR"
	// ErrStorage is returned when a filesystem operation fails.
	ErrStorage ErrorCode = "STORAGE_ERROR"
	// ErrRateLimited is returned when a client exceeds the command rate limit.
	ErrRateLimited ErrorCode = "RATE_LIMITED"
	// ErrInternal is returned when an unexpected server error occurs.
	ErrInternal ErrorCode = "INTERNAL_ERROR"
)

// ErrorWithStatus is an error that includes an HTTP status code and error code.
type ErrorWithStatus interface {
	Error() string
	StatusCode() int
	Code() ErrorCode
}

// APIError is a concrete error type with status code, code and message.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	wrappedErr error
}

// NewAPIError creates a new APIError with the given status code and message.
func NewAPIError(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{
		statusCode: statusCode,
		code:       code,
		message:    message,
	}
}

// Wrap wraps an underlying error.
func (e *APIError) Wrap(err error) *APIError {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// StatusCode returns the HTTP status code.
func (e *APIError) StatusCode() int {
	return e.statusCode
}

// Code returns the error code.
func (e *APIError) Code() ErrorCode {
	return e.code
}

// Unwrap returns the wrapped error if any.
func (e *APIError) Unwrap() error {
	return e.wrappedErr
}

// Predefined error constructors for common cases

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrValidationFailed, message)
}

// NotFound creates a 404 Not Found error.
func NotFound(message string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrNotFound, message)
}

// Conflict creates a 409 Conflict error.
func Conflict(message string) *APIError {
	return NewAPIError(http.StatusConflict, ErrConflict, message)
}

// NoWorkspace creates a 409 error for commands issued with no open workspace.
func NoWorkspace() *APIError {
	return NewAPIError(http.StatusConflict, ErrNoWorkspace, "Workspace not loaded")
}

// Format creates a 422 error for an on-disk file that is not parseable.
func Format(message string, err error) *APIError {
	return NewAPIError(http.StatusUnprocessableEntity, ErrFormat, message).Wrap(err)
}

// Storage creates a 500 error wrapping a filesystem failure.
func Storage(message string, err error) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrStorage, message).Wrap(err)
}

// Internal returns a 500 Internal Server Error.
func Internal(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrInternal, message)
}
