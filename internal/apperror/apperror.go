// Package apperror defines the error taxonomy shared by every layer.
//
// Repositories and services return these typed errors; only the HTTP layer
// (handler.writeError) knows which status code each one becomes.
//
//	ErrNotFound     → lookup miss (404)
//	ErrValidation   → malformed input, rejected before persistence (400)
//	ErrConflict     → duplicate username at registration (409)
//	ErrUnauthorized → no session, or the session is in the wrong state (401)
//	ErrIO           → avatar cache or other file-system failure (500)
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrIO           = errors.New("i/o error")
)

type AppError struct {
	Err     error  // sentinel, matched with errors.Is
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying fault, never shown to clients
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the cause, so errors.Is matches
// either one.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports that a unique key is already taken.
func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s already taken: %s", resource, key),
		Field:   resource,
	}
}

// Unauthorized is returned when an operation needs an authenticated session.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// IO wraps a file-system failure. The cause is kept for logs; clients only
// see the operation name.
func IO(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrIO,
		Message: op + " failed",
		Cause:   cause,
	}
}
