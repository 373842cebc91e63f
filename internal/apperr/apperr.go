// Package apperr defines the error taxonomy surfaced by the tenant service.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable error category exposed to clients
type Code string

const (
	CodeInvalidInput       Code = "invalid_input"
	CodeDuplicateTenant    Code = "duplicate_tenant"
	CodeNotFound           Code = "not_found"
	CodeProvisioningFailed Code = "provisioning_failed"
	CodeSeedFailed         Code = "seed_failed"
	CodeAuditWriteFailed   Code = "audit_write_failed"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeInternal           Code = "internal"
)

// Common errors. Comparison with errors.Is matches on Code only.
var (
	ErrInvalidInput       = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	ErrDuplicateTenant    = &Error{Code: CodeDuplicateTenant, Message: "tenant with this subdomain already exists"}
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "tenant not found"}
	ErrProvisioningFailed = &Error{Code: CodeProvisioningFailed, Message: "schema provisioning failed"}
	ErrSeedFailed         = &Error{Code: CodeSeedFailed, Message: "failed to initialize tenant data"}
	ErrAuditWriteFailed   = &Error{Code: CodeAuditWriteFailed, Message: "audit log write failed"}
	ErrUnauthorized       = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrForbidden          = &Error{Code: CodeForbidden, Message: "forbidden"}
)

// Error is an application error with a category, a client-safe message
// and an optional underlying cause that is only meant for server logs.
type Error struct {
	Code    Code
	Message string
	Detail  string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new application error
func New(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithDetail creates an application error carrying a human-readable detail string
func WithDetail(code Code, message, detail string, err error) *Error {
	return &Error{Code: code, Message: message, Detail: detail, Err: err}
}

// Invalid is a shorthand for an invalid input error
func Invalid(message string) *Error {
	return &Error{Code: CodeInvalidInput, Message: message}
}

// NotFound is a shorthand for a not found error with a custom message
func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// As returns the first *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// HTTPStatus maps a code to an HTTP status
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeDuplicateTenant:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
