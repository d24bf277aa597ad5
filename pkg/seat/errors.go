package seat

import "net/http"

// ErrorCode enumerates the admission-control domain error kinds.
type ErrorCode string

const (
	CodeCustomerInactive  ErrorCode = "customer_inactive"
	CodeSeatLimitExceeded ErrorCode = "seat_limit_exceeded"
)

// Error is a domain error carrying enough detail to translate directly into
// the documented HTTP error envelope, including the extra fields a 429
// response reports (limit, active count, role).
type Error struct {
	Code    ErrorCode
	Message string
	Status  int
	Limit   int
	Active  int
	Role    string
}

func (e *Error) Error() string { return e.Message }

func errCustomerInactive() *Error {
	return &Error{
		Code:    CodeCustomerInactive,
		Message: "customer account is not active",
		Status:  http.StatusForbidden,
	}
}

func errSeatLimitExceeded(limit, active int, role string) *Error {
	return &Error{
		Code:    CodeSeatLimitExceeded,
		Message: "seat limit exceeded for this role",
		Status:  http.StatusTooManyRequests,
		Limit:   limit,
		Active:  active,
		Role:    role,
	}
}
