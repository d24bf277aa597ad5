package sso

import (
	"net/http"
	"testing"
)

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *Error
		code   ErrorCode
		status int
	}{
		{"config not found", errConfigNotFound(), CodeConfigNotFound, http.StatusNotFound},
		{"config disabled", errConfigDisabled(), CodeConfigDisabled, http.StatusForbidden},
		{"assertion invalid", errAssertionInvalid("bad signature"), CodeAssertionInvalid, http.StatusUnauthorized},
		{"session required", errSessionRequired(), CodeSessionRequired, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.code)
			}
			if tt.err.Status != tt.status {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.status)
			}
			if tt.err.Error() == "" {
				t.Error("Error() should not be empty")
			}
		})
	}
}

func TestErrAssertionInvalid_IncludesReason(t *testing.T) {
	err := errAssertionInvalid("expired condition")
	if err.Message != "SAML assertion rejected: expired condition" {
		t.Errorf("Message = %q", err.Message)
	}
}
