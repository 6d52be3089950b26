// Package errors provides the client-side error taxonomy shared by the API
// client, the resource hooks and the editor.
//
// Callers match on sentinels with errors.Is, or pull the code and HTTP status
// out with errors.As:
//
//	var clientErr *errors.Error
//	if errors.As(err, &clientErr) && clientErr.Code == errors.CodeHTTP {
//	    log.Printf("server said %d: %s", clientErr.Status, clientErr.Message)
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
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

const (
	CodeNetwork            Code = "NETWORK"
	CodeHTTP               Code = "HTTP"
	CodeAuth               Code = "AUTH"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeValidation         Code = "VALIDATION"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
)

// Error is a client error with a code, a message and optional details.
// Status is only set for CodeHTTP and CodeAuth errors that came from a response.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same Code. An HTTP sentinel carrying a
// non-zero Status only matches errors with that status.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if e.Code != t.Code {
		return false
	}
	return t.Status == 0 || t.Status == e.Status
}

// WithCause returns a copy of e wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Status:  e.Status,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNetwork            = &Error{Code: CodeNetwork, Message: "network error"}
	ErrHTTP               = &Error{Code: CodeHTTP, Message: "http error"}
	ErrAuth               = &Error{Code: CodeAuth, Message: "authentication required"}
	ErrInvalidArgument    = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
	ErrValidation         = &Error{Code: CodeValidation, Message: "validation error"}
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials, Message: "invalid credentials"}

	ErrNotFound = &Error{Code: CodeHTTP, Status: http.StatusNotFound, Message: "not found"}
)

// Network wraps a transport failure: the request never completed.
func Network(err error) *Error {
	return &Error{Code: CodeNetwork, Message: "request failed", cause: err}
}

// HTTP creates an error for a failed response. An empty msg falls back to the
// status text.
func HTTP(status int, msg string) *Error {
	if msg == "" {
		msg = fmt.Sprintf("HTTP error! status: %d", status)
	}
	return &Error{Code: CodeHTTP, Status: status, Message: msg}
}

// Auth creates an authentication error.
func Auth(msg string) *Error {
	return &Error{Code: CodeAuth, Status: http.StatusUnauthorized, Message: msg}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *Error {
	return &Error{Code: CodeInvalidArgument, Message: msg}
}

// InvalidArgumentf creates an invalid argument error with a formatted message.
func InvalidArgumentf(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// ValidationWithDetails creates a validation error with per-field details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// InvalidCredentials creates an invalid credentials error.
func InvalidCredentials(msg string) *Error {
	return &Error{Code: CodeInvalidCredentials, Status: http.StatusUnauthorized, Message: msg}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// CodeOf returns the code carried by err, or "" for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
