// Package errors defines the portal's categorized application error. Handlers
// switch on the Code; Message is safe to show to a visitor.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes an AppError.
type ErrorCode string

const (
	ErrCodeNotFound   ErrorCode = "not_found"
	ErrCodeConflict   ErrorCode = "conflict"
	ErrCodeValidation ErrorCode = "validation"
	ErrCodeInternal   ErrorCode = "internal"
	ErrCodeTimeout    ErrorCode = "timeout"
	ErrCodeCanceled   ErrorCode = "canceled"
	// ErrCodeInvalidCredentials is a login the church API rejected.
	ErrCodeInvalidCredentials ErrorCode = "invalid_credentials"
	// ErrCodeUnauthorized covers both a missing and an expired session.
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	// ErrCodeUnavailable means the church API or a store could not be reached. Retrying may help.
	ErrCodeUnavailable ErrorCode = "unavailable"
	ErrCodeRateLimited ErrorCode = "rate_limited"
)

// AppError carries a code, a user-facing message and, optionally, the field
// at fault and the underlying cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Field   string
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *AppError) Unwrap() error { return e.Cause }

// New returns an AppError without a cause.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func NotFound(message string) *AppError { return New(ErrCodeNotFound, message) }

func NotFoundf(format string, args ...any) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf(format, args...))
}

func Conflict(message string) *AppError   { return New(ErrCodeConflict, message) }
func Validation(message string) *AppError { return New(ErrCodeValidation, message) }
func Internal(message string) *AppError   { return New(ErrCodeInternal, message) }

// ValidationField attributes a validation failure to one form field.
func ValidationField(field, message string) *AppError {
	e := New(ErrCodeValidation, message)
	e.Field = field
	return e
}

// InvalidCredentials carries the rejection text the backend returned.
func InvalidCredentials(message string) *AppError {
	return New(ErrCodeInvalidCredentials, message)
}

func Unauthorized(message string) *AppError { return New(ErrCodeUnauthorized, message) }
func Unavailable(message string) *AppError  { return New(ErrCodeUnavailable, message) }
func RateLimited(message string) *AppError  { return New(ErrCodeRateLimited, message) }

// Wrap attaches a code and message to err. A nil err stays nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

func as(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// Is reports whether any AppError in err's chain has the given code.
func Is(err error, code ErrorCode) bool {
	appErr, ok := as(err)
	return ok && appErr.Code == code
}

func IsNotFound(err error) bool     { return Is(err, ErrCodeNotFound) }
func IsConflict(err error) bool     { return Is(err, ErrCodeConflict) }
func IsValidation(err error) bool   { return Is(err, ErrCodeValidation) }
func IsTimeout(err error) bool      { return Is(err, ErrCodeTimeout) }
func IsCanceled(err error) bool     { return Is(err, ErrCodeCanceled) }
func IsUnauthorized(err error) bool { return Is(err, ErrCodeUnauthorized) }
func IsUnavailable(err error) bool  { return Is(err, ErrCodeUnavailable) }

// GetCode returns the outermost AppError code, or "" for foreign errors.
func GetCode(err error) ErrorCode {
	if appErr, ok := as(err); ok {
		return appErr.Code
	}
	return ""
}

// GetField returns the field an AppError blames, if any.
func GetField(err error) string {
	if appErr, ok := as(err); ok {
		return appErr.Field
	}
	return ""
}

// Message returns the AppError's message, or fallback when err carries none.
func Message(err error, fallback string) string {
	if appErr, ok := as(err); ok && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
