package apperrors

import (
	"errors"
	"fmt"
)

// Stable error codes returned to API clients
const (
	CodeDuplicateEmail        = "DUPLICATE_EMAIL"
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_TOKEN"
	CodeInvalidToken          = "INVALID_TOKEN"
	CodeTokenExpired          = "TOKEN_EXPIRED"
	CodeUnauthenticated       = "UNAUTHENTICATED"
	CodeUserNotFound          = "USER_NOT_FOUND"
	CodeUserDeactivated       = "USER_DEACTIVATED"
	CodeNotFound              = "NOT_FOUND"
	CodeValidation            = "VALIDATION_ERROR"
	CodeDecoding              = "DECODING_ERROR"

	// Database error sub-reasons
	CodeDuplicateField   = "DUPLICATE_FIELD"
	CodeRecordNotFound   = "RECORD_NOT_FOUND"
	CodeInvalidReference = "INVALID_REFERENCE"
	CodeDatabase         = "DATABASE_REQUEST_ERROR"

	// Cache error sub-reasons
	CodeCacheConnectionRefused = "CACHE_CONNECTION_REFUSED"
	CodeCacheConnectionClosed  = "CACHE_CONNECTION_CLOSED"
	CodeCache                  = "CACHE_ERROR"

	CodeInternal = "INTERNAL_SERVER_ERROR"
)

// Error is an operational error: expected, safe to show to the caller.
// Constructed once where the failure happens and rendered by the http boundary.
type Error struct {
	Code    string
	Message string
	Err     error // optional cause, never shown to the caller
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports errors with the same code as equal,
// so errors.Is(err, ErrNotFound) works whatever the message or cause is
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New creates operational error with code and message
func New(code string, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates operational error with cause
func Wrap(code string, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// As returns the operational error from the chain if any
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

var (
	ErrDuplicateEmail        = New(CodeDuplicateEmail, "User with this email already exists")
	ErrInvalidCredentials    = New(CodeInvalidCredentials, "Invalid email or password")
	ErrInvalidOrExpiredToken = New(CodeInvalidOrExpiredToken, "Invalid or expired refresh token")
	ErrInvalidToken          = New(CodeInvalidToken, "Invalid token. Please log in again!")
	ErrTokenExpired          = New(CodeTokenExpired, "Your token has expired! Please log in again.")
	ErrUnauthenticated       = New(CodeUnauthenticated, "You are not logged in! Please log in to get access.")
	ErrUserNotFound          = New(CodeUserNotFound, "The user belonging to this token no longer exists.")
	ErrUserDeactivated       = New(CodeUserDeactivated, "This user account is deactivated.")
	ErrNotFound              = New(CodeNotFound, "No task found with that ID")

	ErrDuplicateField   = New(CodeDuplicateField, "Duplicate field value. Please use another value.")
	ErrRecordNotFound   = New(CodeRecordNotFound, "No record found with that ID")
	ErrInvalidReference = New(CodeInvalidReference, "Invalid reference data")
	ErrDatabase         = New(CodeDatabase, "Database request failed")

	ErrCacheConnectionRefused = New(CodeCacheConnectionRefused, "Could not connect to cache service")
	ErrCacheConnectionClosed  = New(CodeCacheConnectionClosed, "Cache service connection closed")
	ErrCache                  = New(CodeCache, "Cache service error")
)
