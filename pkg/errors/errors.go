package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the domain and the transport layer
const (
	CodeValidation       = "VALIDATION"
	CodeIncompatible     = "INCOMPATIBLE"
	CodeCapacityExceeded = "CAPACITY_EXCEEDED"
	CodeConflict         = "CONFLICT"
	CodeConstraint       = "CONSTRAINT"
	CodeNotFound         = "NOT_FOUND"
	CodeForbidden        = "FORBIDDEN"
	CodeInvalidState     = "INVALID_STATE"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeInternal         = "INTERNAL_ERROR"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Status  int               `json:"-"`
	Err     error             `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError carrying the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetail returns a copy of the error with an extra detail entry
func (e *AppError) WithDetail(key, value string) *AppError {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Status:  e.Status,
		Err:     e.Err,
	}
}

// NewAppError creates a new AppError
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Common error constructors

// Validation creates a 400 error for malformed or self-inconsistent input
func Validation(message string, err error) *AppError {
	return NewAppError(CodeValidation, message, http.StatusBadRequest, err)
}

// Unauthorized creates a 401 error
func Unauthorized(message string, err error) *AppError {
	return NewAppError(CodeUnauthorized, message, http.StatusUnauthorized, err)
}

// Forbidden creates a 403 error
func Forbidden(message string, err error) *AppError {
	return NewAppError(CodeForbidden, message, http.StatusForbidden, err)
}

// NotFound creates a 404 error
func NotFound(message string, err error) *AppError {
	return NewAppError(CodeNotFound, message, http.StatusNotFound, err)
}

// Conflict creates a 409 error
func Conflict(message string, err error) *AppError {
	return NewAppError(CodeConflict, message, http.StatusConflict, err)
}

// Constraint creates a 409 error for storage uniqueness violations
func Constraint(message string, err error) *AppError {
	return NewAppError(CodeConstraint, message, http.StatusConflict, err)
}

// Incompatible creates a 422 error for business-rule mismatches
func Incompatible(message string, err error) *AppError {
	return NewAppError(CodeIncompatible, message, http.StatusUnprocessableEntity, err)
}

// CapacityExceeded creates a 409 error for exhausted ride resources
func CapacityExceeded(message string, err error) *AppError {
	return NewAppError(CodeCapacityExceeded, message, http.StatusConflict, err)
}

// InvalidState creates a 409 error for operations on a membership in the wrong status
func InvalidState(message string, err error) *AppError {
	return NewAppError(CodeInvalidState, message, http.StatusConflict, err)
}

// Internal creates a 500 error
func Internal(message string, err error) *AppError {
	return NewAppError(CodeInternal, message, http.StatusInternalServerError, err)
}

// ServiceUnavailable creates a 503 error
func ServiceUnavailable(message string, err error) *AppError {
	return NewAppError(CodeUnavailable, message, http.StatusServiceUnavailable, err)
}

// Domain-specific errors

var (
	ErrValidation       = Validation("Invalid change request", nil)
	ErrIncompatible     = Incompatible("Rider is not compatible with ride", nil)
	ErrCapacityExceeded = CapacityExceeded("Ride capacity exceeded", nil)
	ErrConflict         = Conflict("Negotiation state changed, re-fetch and retry", nil)
	ErrConstraint       = Constraint("Storage constraint violated", nil)
	ErrNotFound         = NotFound("Resource not found", nil)
	ErrForbidden        = Forbidden("Actor may not act on this membership", nil)
	ErrInvalidState     = InvalidState("Invalid membership status for this operation", nil)

	ErrRideNotFound       = NotFound("Ride not found", nil)
	ErrRiderNotFound      = NotFound("Rider not found", nil)
	ErrMembershipNotFound = NotFound("Membership not found", nil)
	ErrRequestNotFound    = NotFound("Change request not found", nil)

	ErrDuplicateRequest = Conflict("Duplicate request detected", nil)
)

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError attempts to convert an error to AppError
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	// Return generic internal error if not an AppError
	return Internal("An unexpected error occurred", err)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapAppError wraps an AppError with additional context
func WrapAppError(appErr *AppError, message string) *AppError {
	if appErr == nil {
		return nil
	}
	return &AppError{
		Code:    appErr.Code,
		Message: fmt.Sprintf("%s: %s", message, appErr.Message),
		Details: appErr.Details,
		Status:  appErr.Status,
		Err:     appErr.Err,
	}
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
