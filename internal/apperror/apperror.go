// Package apperror defines the error taxonomy shared by every layer.
//
// Services return these errors; handlers map them to HTTP status codes.
// Each constructor wraps one of the sentinel errors below, so callers test
// the category with errors.Is and read the human-readable text with
// errors.As(&*AppError).
//
//	ErrValidation  → caller input violates a documented constraint (nothing was written)
//	ErrNotFound    → the referenced entity does not exist
//	ErrConflict    → uniqueness or in-flight conflict
//	ErrForbidden   → caller lacks permission
//	ErrPersistence → the storage collaborator could not complete the operation
//	ErrInvariant   → internal bug (e.g. a negative total); abort and log
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("Validation Error")
	ErrConflict    = errors.New("conflict")
	ErrForbidden   = errors.New("forbidden")
	ErrPersistence = errors.New("persistence failure")
	ErrInvariant   = errors.New("invariant violation")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying collaborator error (never shown to clients)
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the category sentinel and the cause, so
// errors.Is(err, ErrPersistence) and errors.Is(err, context.Canceled) both work.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// PersistenceFailure reports that the storage collaborator failed during op.
// The caller may retry; nothing here retries automatically.
func PersistenceFailure(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrPersistence,
		Message: fmt.Sprintf("could not %s", op),
		Cause:   cause,
	}
}

// InvariantViolation marks a state that should be unreachable.
func InvariantViolation(message string) *AppError {
	return &AppError{
		Err:     ErrInvariant,
		Message: message,
	}
}
