package sso

import "net/http"

// ErrorCode enumerates the sso package's domain error kinds.
type ErrorCode string

const (
	CodeConfigNotFound   ErrorCode = "sso_config_not_found"
	CodeConfigDisabled   ErrorCode = "sso_disabled"
	CodeAssertionInvalid ErrorCode = "assertion_invalid"
	CodeSessionRequired  ErrorCode = "sso_required"
)

// Error carries enough detail to translate directly into an HTTP response.
type Error struct {
	Code    ErrorCode
	Message string
	Status  int
}

func (e *Error) Error() string { return e.Message }

func errConfigNotFound() *Error {
	return &Error{Code: CodeConfigNotFound, Message: "no SSO configuration for this customer", Status: http.StatusNotFound}
}

func errConfigDisabled() *Error {
	return &Error{Code: CodeConfigDisabled, Message: "SSO is not enabled for this customer", Status: http.StatusForbidden}
}

func errAssertionInvalid(reason string) *Error {
	return &Error{Code: CodeAssertionInvalid, Message: "SAML assertion rejected: " + reason, Status: http.StatusUnauthorized}
}

func errSessionRequired() *Error {
	return &Error{Code: CodeSessionRequired, Message: "a valid SSO session is required", Status: http.StatusUnauthorized}
}
