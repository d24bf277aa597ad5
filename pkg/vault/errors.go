package vault

import "net/http"

// ErrorCode enumerates the vault's domain error kinds.
type ErrorCode string

const (
	CodeCredentialNotFound ErrorCode = "credential_not_found"
	CodeInvalidCredential  ErrorCode = "invalid_credential"
)

// Error carries enough detail to translate directly into an HTTP response.
type Error struct {
	Code    ErrorCode
	Message string
	Status  int
}

func (e *Error) Error() string { return e.Message }

func errCredentialNotFound() *Error {
	return &Error{Code: CodeCredentialNotFound, Message: "credential not found", Status: http.StatusNotFound}
}

func errInvalidCredential(message string) *Error {
	return &Error{Code: CodeInvalidCredential, Message: message, Status: http.StatusBadRequest}
}
