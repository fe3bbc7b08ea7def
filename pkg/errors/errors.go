package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeConflict indicates a conflict with existing data
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeInsufficientFunds indicates a wallet debit exceeding the balance
	ErrorTypeInsufficientFunds ErrorType = "INSUFFICIENT_FUNDS"

	// ErrorTypeNotAvailable indicates the doctor has no bookable window
	ErrorTypeNotAvailable ErrorType = "NOT_AVAILABLE"

	// ErrorTypeScheduleFull indicates the doctor's day has no room left
	ErrorTypeScheduleFull ErrorType = "SCHEDULE_FULL"

	// ErrorTypeAlreadyResolved indicates a cancellation resolution attempted twice
	ErrorTypeAlreadyResolved ErrorType = "ALREADY_RESOLVED"

	// ErrorTypeUnauthorized indicates unauthorized access
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from external service
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error

	// Details carries structured context for the caller, e.g. the colliding
	// appointment on a booking conflict so the client can offer an override.
	Details map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails attaches structured detail to the error and returns it
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
	}
}

// NewInsufficientFundsError creates a new insufficient funds error
func NewInsufficientFundsError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeInsufficientFunds,
		Message: message,
	}
}

// NewNotAvailableError creates a new not available error
func NewNotAvailableError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotAvailable,
		Message: message,
	}
}

// NewScheduleFullError creates a new schedule full error
func NewScheduleFullError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeScheduleFull,
		Message: message,
	}
}

// NewAlreadyResolvedError creates a new already resolved error
func NewAlreadyResolvedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeAlreadyResolved,
		Message: message,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}
