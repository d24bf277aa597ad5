package theme

import (
	"net/http"
	"testing"
)

func TestErrNotFound(t *testing.T) {
	err := errNotFound()
	if err.Code != CodeNotFound {
		t.Errorf("Code = %v, want %v", err.Code, CodeNotFound)
	}
	if err.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", err.Status, http.StatusNotFound)
	}
	if err.Error() != "theme not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestErrForbidden(t *testing.T) {
	err := errForbidden()
	if err.Code != CodeForbidden {
		t.Errorf("Code = %v, want %v", err.Code, CodeForbidden)
	}
	if err.Status != http.StatusForbidden {
		t.Errorf("Status = %d, want %d", err.Status, http.StatusForbidden)
	}
}
