// Package domainerrors defines the error taxonomy shared by all gateway
// services. Handlers translate these codes to HTTP statuses at the transport
// boundary; nothing below the boundary writes status codes itself.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure. The string value is what callers see
// in the JSON error envelope.
type Code string

const (
	// CodeInvalidInput covers malformed or out-of-range request data.
	CodeInvalidInput Code = "invalid_input"
	// CodeUnauthorized covers credential rejections. Messages stay generic
	// so callers cannot enumerate accounts or enrollment.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden covers requests from disallowed origins.
	CodeForbidden Code = "forbidden"
	// CodeNotFound covers unparseable or unknown resource identifiers.
	CodeNotFound Code = "not_found"
	// CodeRateLimited signals the caller exceeded a fixed-window limit.
	CodeRateLimited Code = "rate_limited"
	// CodeUpstreamUnavailable covers network errors, timeouts, and
	// non-success responses from the remote authority.
	CodeUpstreamUnavailable Code = "upstream_unavailable"
	// CodeInternal is the fallback for unexpected failures. Details are
	// logged server-side only.
	CodeInternal Code = "internal_error"
)

// Error carries a code plus a caller-safe message. The wrapped cause, if
// any, is for logs and errors.Is/As chains, never for responses.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a domain error with a caller-safe message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and caller-safe message to an underlying cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the domain code from an error chain, defaulting to
// CodeInternal for unclassified failures.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the caller-safe message from an error chain. Internal
// errors deliberately yield an empty message.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Code != CodeInternal {
		return de.Message
	}
	return ""
}

// ToHTTPStatus maps a domain code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
