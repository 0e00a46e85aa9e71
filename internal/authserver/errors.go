package authserver

import (
	"fmt"
	"net/http"
)

// OAuth 2.0 error codes from RFC 6749.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrorCodeInvalidToken         = "invalid_token"
)

// Error is an OAuth protocol error. It carries the RFC 6749 error code, a
// human-readable description, and the HTTP status it maps to at the wire.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
	Status      int    `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// newError creates an OAuth error with the given code and HTTP status.
func newError(code string, status int, format string, args ...interface{}) *Error {
	return &Error{
		Code:        code,
		Description: fmt.Sprintf(format, args...),
		Status:      status,
	}
}

// invalidRequest creates a 400 invalid_request error.
func invalidRequest(format string, args ...interface{}) *Error {
	return newError(ErrorCodeInvalidRequest, http.StatusBadRequest, format, args...)
}

// invalidGrant creates a 400 invalid_grant error.
func invalidGrant(format string, args ...interface{}) *Error {
	return newError(ErrorCodeInvalidGrant, http.StatusBadRequest, format, args...)
}

// invalidClient creates a 401 invalid_client error.
func invalidClient(format string, args ...interface{}) *Error {
	return newError(ErrorCodeInvalidClient, http.StatusUnauthorized, format, args...)
}
