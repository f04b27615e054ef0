package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an error for logging and HTTP status mapping
type ErrorType string

const (
	// ErrorTypeNotFound indicates an unknown entity or route resource
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeValidation indicates invalid client input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConflict indicates a request that clashes with session state
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeUnauthorized indicates a missing or invalid token
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeInternal     ErrorType = "internal"
	// ErrorTypeMethodNotAllowed indicates an unsupported HTTP method
	ErrorTypeMethodNotAllowed ErrorType = "method_not_allowed"
	// ErrorTypeExternal indicates the map backend failed or returned garbage
	ErrorTypeExternal ErrorType = "external"
	// ErrorTypeUnavailable indicates a local dependency that is closed,
	// throttled or not configured
	ErrorTypeUnavailable ErrorType = "unavailable"
	// ErrorTypeRateLimited indicates a client over its request budget
	ErrorTypeRateLimited ErrorType = "rate_limited"
)

// AppError is the base error type for application errors
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(t ErrorType, message string, err error) error {
	return &AppError{Type: t, Message: message, Err: err}
}

func NotFoundf(format string, args ...any) error {
	return newError(ErrorTypeNotFound, fmt.Sprintf(format, args...), nil)
}

func Validation(message string) error {
	return newError(ErrorTypeValidation, message, nil)
}

func Validationf(format string, args ...any) error {
	return newError(ErrorTypeValidation, fmt.Sprintf(format, args...), nil)
}

// WrapValidation wraps a decoding or parsing error as a validation error
func WrapValidation(message string, err error) error {
	return newError(ErrorTypeValidation, message, err)
}

func Conflictf(format string, args ...any) error {
	return newError(ErrorTypeConflict, fmt.Sprintf(format, args...), nil)
}

func WrapInternal(message string, err error) error {
	return newError(ErrorTypeInternal, message, err)
}

func Unauthorized(message string) error {
	return newError(ErrorTypeUnauthorized, message, nil)
}

func MethodNotAllowed(method string) error {
	return newError(ErrorTypeMethodNotAllowed, fmt.Sprintf("method %s not allowed", method), nil)
}

func External(message string) error {
	return newError(ErrorTypeExternal, message, nil)
}

// WrapExternal wraps a transport or decoding failure of the map backend
func WrapExternal(message string, err error) error {
	return newError(ErrorTypeExternal, message, err)
}

func RateLimited(message string) error {
	return newError(ErrorTypeRateLimited, message, nil)
}

func Unavailable(message string) error {
	return newError(ErrorTypeUnavailable, message, nil)
}

func WrapUnavailable(message string, err error) error {
	return newError(ErrorTypeUnavailable, message, err)
}

// GetType returns the error type of an error, defaulting to internal
func GetType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// Is reports whether err is an AppError of type t
func Is(err error, t ErrorType) bool {
	return err != nil && GetType(err) == t
}
