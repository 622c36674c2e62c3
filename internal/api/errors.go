package api

import (
	"fmt"
	"net/http"
)

// Machine-readable codes for auth failures.
const (
	CodeAuthNoHeader     = "AUTH_NO_HEADER"
	CodeAuthInvalidToken = "AUTH_INVALID_TOKEN"
)

// StatusError is an error with an HTTP status code and an optional
// machine-readable code.
type StatusError struct {
	StatusCode   int    `json:"-"`
	ErrorMessage string `json:"error"`
	Code         string `json:"code,omitempty"`
}

func (e *StatusError) Error() string { return e.ErrorMessage }

// ErrBadRequest creates a 400 Bad Request error
func ErrBadRequest(msg string) *StatusError {
	return &StatusError{
		StatusCode:   http.StatusBadRequest,
		ErrorMessage: msg,
	}
}

// ErrUnauthorized creates a 401 Unauthorized error carrying a machine code
func ErrUnauthorized(code string) *StatusError {
	return &StatusError{
		StatusCode:   http.StatusUnauthorized,
		ErrorMessage: "Unauthorized",
		Code:         code,
	}
}

// ErrForbidden creates a 403 Forbidden error carrying a machine code
func ErrForbidden(code string) *StatusError {
	return &StatusError{
		StatusCode:   http.StatusForbidden,
		ErrorMessage: "Forbidden",
		Code:         code,
	}
}

// ErrNotFound creates a 404 Not Found error
func ErrNotFound(msg string) *StatusError {
	return &StatusError{
		StatusCode:   http.StatusNotFound,
		ErrorMessage: msg,
	}
}

// ErrInternalServer creates a 500 Internal Server Error
func ErrInternalServer(msg string) *StatusError {
	return &StatusError{
		StatusCode:   http.StatusInternalServerError,
		ErrorMessage: msg,
	}
}

// ErrBadGateway creates a 502 Bad Gateway error
func ErrBadGateway(msg string) *StatusError {
	return &StatusError{
		StatusCode:   http.StatusBadGateway,
		ErrorMessage: msg,
	}
}

// WrapError wraps an existing error into a StatusError
func WrapError(err error, code int, msg string) *StatusError {
	fullMsg := msg
	if err != nil {
		fullMsg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &StatusError{
		StatusCode:   code,
		ErrorMessage: fullMsg,
	}
}
