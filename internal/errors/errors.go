// Package errors provides coded domain errors shared by the workflow, the upstream client and the API.
//
// The codes follow the error taxonomy of the contribution flow:
//
//	VALIDATION      locally computed field errors, never sent upstream
//	UPSTREAM_FIELD  per-field errors returned by the backend, rendered inline
//	UPSTREAM        non-field backend errors, rendered in the dismissible summary panel
//	UNAVAILABLE     network failures and 5xx responses, rendered as a toast
//
// Usage:
//
//	if errors.Is(err, errors.ErrUnavailable) {
//	    // keep the form state, show the toast
//	}
//
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    fields := domainErr.FieldErrors()
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound      Code = "NOT_FOUND"
	CodeValidation    Code = "VALIDATION"
	CodeConflict      Code = "CONFLICT"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeUpstreamField Code = "UPSTREAM_FIELD"
	CodeUpstream      Code = "UPSTREAM"
	CodeUnavailable   Code = "UNAVAILABLE"
	CodeMaintenance   Code = "MAINTENANCE"
	CodeRateLimited   Code = "RATE_LIMITED"
	CodeInternal      Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidation, CodeUpstreamField:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUpstream:
		return http.StatusBadGateway
	case CodeUnavailable, CodeMaintenance:
		return http.StatusServiceUnavailable
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Transient reports whether errors with this code are worth re-triggering by the user.
func (c Code) Transient() bool {
	return c == CodeUnavailable || c == CodeRateLimited
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// GetStatus lets HTTP frameworks read the status without a mapping step.
func (e *Error) GetStatus() int {
	return e.HTTPStatus()
}

// FieldErrors returns the per-field messages carried in Details, or nil.
func (e *Error) FieldErrors() map[string]string {
	switch d := e.Details.(type) {
	case map[string]string:
		return d
	case *Rejection:
		return d.Fields
	}
	return nil
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound      = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation    = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict      = &Error{Code: CodeConflict, Message: "conflict"}
	ErrUnauthorized  = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrForbidden     = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrUpstreamField = &Error{Code: CodeUpstreamField, Message: "the submission was rejected"}
	ErrUpstream      = &Error{Code: CodeUpstream, Message: "upstream error"}
	ErrUnavailable   = &Error{Code: CodeUnavailable, Message: "service unavailable"}
	ErrMaintenance   = &Error{Code: CodeMaintenance, Message: "maintenance mode"}
	ErrRateLimited   = &Error{Code: CodeRateLimited, Message: "too many requests"}
	ErrInternal      = &Error{Code: CodeInternal, Message: "internal error"}
)

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// ValidationWithDetails creates a validation error with per-field details.
func ValidationWithDetails(msg string, fields map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: fields}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// Forbidden creates a forbidden error.
func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg}
}

// UpstreamField creates an error for backend-reported field errors.
func UpstreamField(msg string, fields map[string]string) *Error {
	return UpstreamRejected(msg, Rejection{Fields: fields})
}

// Rejection is the detail of an UPSTREAM_FIELD error.
type Rejection struct {
	Fields   map[string]string `json:"fields"`
	NonField []string          `json:"non_field_errors,omitempty"`
	Raw      []string          `json:"raw,omitempty"`
}

// UpstreamRejected creates an UPSTREAM_FIELD error that may also carry messages
// belonging to no field and the raw backend body.
func UpstreamRejected(msg string, r Rejection) *Error {
	return &Error{Code: CodeUpstreamField, Message: msg, Details: &r}
}

// Upstream creates an error for a non-field backend failure. detail is the raw backend text.
func Upstream(msg string, detail []string) *Error {
	e := &Error{Code: CodeUpstream, Message: msg}
	if len(detail) > 0 {
		e.Details = detail
	}
	return e
}

// Unavailable creates a transient failure error.
func Unavailable(msg string) *Error {
	return &Error{Code: CodeUnavailable, Message: msg}
}

// Maintenance creates a maintenance-mode error.
func Maintenance(msg string) *Error {
	return &Error{Code: CodeMaintenance, Message: msg}
}

// RateLimited creates a throttling error.
func RateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimited, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// CodeOf returns the code of err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}
