// Package errors provides the coded error taxonomy shared by all layers.
// Repositories and services attach a code; handlers map codes to HTTP status.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies the class of failure.
type ErrorCode string

const (
	ErrCodeValidation ErrorCode = "VALIDATION"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeConflict   ErrorCode = "CONFLICT"
	ErrCodeSignature  ErrorCode = "SIGNATURE"
	ErrCodeTemplate   ErrorCode = "TEMPLATE"
	ErrCodeInternal   ErrorCode = "INTERNAL"
)

// Error is a coded error. The code is the contract with callers; the message
// must name the rule that was violated so clients can explain the refusal.
type Error struct {
	Code    ErrorCode
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error.
func New(code ErrorCode, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Newf creates a coded error with a formatted message.
func Newf(code ErrorCode, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, cause: err}
}

// InvalidInput reports a validation failure on a named field.
func InvalidInput(field, msg string) error {
	return &Error{Code: ErrCodeValidation, Message: fmt.Sprintf("%s: %s", field, msg)}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %q not found", resource, id)}
}

// Conflict reports a state or version conflict. Version conflicts are
// retryable after a fresh load.
func Conflict(msg string) error {
	return &Error{Code: ErrCodeConflict, Message: msg}
}

// Code returns the ErrorCode carried by err, or ErrCodeInternal for
// uncoded errors.
func Code(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && Code(err) == code
}

// HTTPStatus maps an error to the HTTP status the handler layer should return.
func HTTPStatus(err error) int {
	switch Code(err) {
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeSignature, ErrCodeTemplate:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
