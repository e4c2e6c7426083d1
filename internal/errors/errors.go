// Package errors defines the coded errors the Rewire API returns to the app.
//
// Services return these when a caller has to react, which in practice means
// a user edit that could not be saved:
//
//	if err := s.remote.UpsertSession(ctx, session); err != nil {
//	    return errors.Unavailable("could not save streak start").WithCause(err)
//	}
//
// Handlers match on the code:
//
//	if errors.Is(err, errors.ErrUnavailable) {
//	    // show a retry prompt
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Is and As are re-exported so callers need only one errors import.
var (
	Is = errors.Is
	As = errors.As
)

// Code is the machine-readable error code sent in API envelopes.
type Code string

// Error codes.
const (
	CodeNotFound    Code = "NOT_FOUND"
	CodeValidation  Code = "VALIDATION"
	CodeConflict    Code = "CONFLICT"
	CodeForbidden   Code = "FORBIDDEN"
	CodeUnavailable Code = "UNAVAILABLE"
	CodeRateLimited Code = "RATE_LIMITED"
	CodeInternal    Code = "INTERNAL"
)

var codeStatus = map[Code]int{
	CodeNotFound:    http.StatusNotFound,
	CodeValidation:  http.StatusBadRequest,
	CodeConflict:    http.StatusConflict,
	CodeForbidden:   http.StatusForbidden,
	CodeUnavailable: http.StatusServiceUnavailable,
	CodeRateLimited: http.StatusTooManyRequests,
}

// HTTPStatus maps the code to a response status. Unknown codes are 500.
func (c Code) HTTPStatus() int {
	if status, ok := codeStatus[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error carries a code, a user-facing message and optional field details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.cause)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error with the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	return errors.As(target, &t) && t.Code == e.Code
}

// HTTPStatus returns the response status for the error's code.
func (e *Error) HTTPStatus() int { return e.Code.HTTPStatus() }

// WithCause returns a copy of e wrapping err. The receiver is not modified.
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.cause = err
	return &c
}

// Sentinels for errors.Is.
var (
	ErrNotFound    = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation  = &Error{Code: CodeValidation, Message: "validation error"}
	ErrUnavailable = &Error{Code: CodeUnavailable, Message: "remote store unavailable"}
)

// NotFound creates a not-found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not-found error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return NotFound(fmt.Sprintf(format, args...))
}

// ValidationWithDetails creates a validation error with per-field details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Unavailable creates an error for a remote store that could not be reached.
func Unavailable(msg string) *Error {
	return &Error{Code: CodeUnavailable, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Wrap wraps err with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}
