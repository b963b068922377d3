// Package apperror provides structured error handling for the fulfillment core.
// Every error that crosses a service boundary should be an AppError so the HTTP
// layer can render a consistent envelope.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal     = "INTERNAL_ERROR"
	CodeStoreFailure = "STORE_FAILURE"

	// Validation errors (400)
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidAssignment = "INVALID_ASSIGNMENT"
	CodeInvalidStatus     = "INVALID_STATUS"

	// Business rule violations (422)
	CodeInvalidTransition = "INVALID_TRANSITION"

	// Never surfaced to callers; used to tag swallowed secondary-write failures in logs.
	CodePartialSideEffect = "PARTIAL_SIDE_EFFECT"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict    = "CONFLICT"
	CodeIdempotency = "IDEMPOTENCY_CONFLICT"
)

// AppError is the standard error type of the service.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (ids, statuses, field names)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInvalidAssignment is returned when an assignee list is empty or malformed.
func NewInvalidAssignment(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidAssignment,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidStatus is returned for a status value outside the fixed enumeration.
func NewInvalidStatus(status string) *AppError {
	return &AppError{
		Code:       CodeInvalidStatus,
		Message:    fmt.Sprintf("invalid status %q", status),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"status": status},
	}
}

// NewInvalidTransition is returned when a transition would move backwards
// or leave an absorbing status.
func NewInvalidTransition(entity, from, to string) *AppError {
	return &AppError{
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("%s cannot move from %s to %s", entity, from, to),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"entity": entity, "from": from, "to": to},
	}
}

// NewStoreFailure wraps a failed primary persistence call (hides details from client).
func NewStoreFailure(op string, err error) *AppError {
	return &AppError{
		Code:       CodeStoreFailure,
		Message:    "Storage operation failed",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"operation": op},
		Err:        err,
	}
}

// NewSideEffectFailure tags a failed secondary write. It is logged, never returned to callers.
func NewSideEffectFailure(effect string, err error) *AppError {
	return &AppError{
		Code:       CodePartialSideEffect,
		Message:    fmt.Sprintf("%s failed", effect),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"effect": effect},
		Err:        err,
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewConflict is returned when a guarded write lost against a concurrent change.
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewIdempotencyConflict creates error when operation is already in progress
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Operation already in progress or completed",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewIdempotencyMismatch is returned when the same idempotency key is reused for
// a different request (different user/operation/body hash).
func NewIdempotencyMismatch(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Idempotency key mismatch",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsCode reports whether err carries the given AppError code.
func IsCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// StoreFailure keeps AppErrors intact and wraps anything else as a StoreFailure.
func StoreFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsAppError(err) {
		return err
	}
	return NewStoreFailure(op, err)
}
