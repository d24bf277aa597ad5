package theme

import "net/http"

// ErrorCode enumerates the theme package's domain error kinds.
type ErrorCode string

const (
	CodeNotFound ErrorCode = "theme_not_found"
	CodeForbidden ErrorCode = "theme_forbidden"
)

// Error carries enough detail to translate directly into an HTTP response.
type Error struct {
	Code    ErrorCode
	Message string
	Status  int
}

func (e *Error) Error() string { return e.Message }

func errNotFound() *Error {
	return &Error{Code: CodeNotFound, Message: "theme not found", Status: http.StatusNotFound}
}

func errForbidden() *Error {
	return &Error{Code: CodeForbidden, Message: "theme belongs to a different service integrator", Status: http.StatusForbidden}
}
