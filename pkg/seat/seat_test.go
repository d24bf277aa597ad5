package seat

import (
	"testing"
	"time"

	"github.com/snowflow/licensed/internal/store"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.GracePeriod != 5*time.Minute {
		t.Errorf("GracePeriod = %v, want 5m", cfg.GracePeriod)
	}
	if cfg.StaleTimeout != 2*time.Minute {
		t.Errorf("StaleTimeout = %v, want 2m", cfg.StaleTimeout)
	}
	if cfg.ReapInterval != 60*time.Second {
		t.Errorf("ReapInterval = %v, want 60s", cfg.ReapInterval)
	}
}

func TestSeatLimitForRole(t *testing.T) {
	cust := store.CustomerRow{DeveloperSeats: 5, StakeholderSeats: -1}

	dev := seatLimitForRole(cust, store.RoleDeveloper)
	if dev.IsUnlimited() || dev.Count() != 5 {
		t.Errorf("developer seat limit = %+v, want Limited(5)", dev)
	}

	stake := seatLimitForRole(cust, store.RoleStakeholder)
	if !stake.IsUnlimited() {
		t.Errorf("stakeholder seat limit = %+v, want unlimited", stake)
	}
}

func TestStrPtr(t *testing.T) {
	if strPtr("") != nil {
		t.Error("strPtr(\"\") should be nil")
	}
	got := strPtr("abc")
	if got == nil || *got != "abc" {
		t.Errorf("strPtr(\"abc\") = %v, want pointer to \"abc\"", got)
	}
}

func TestErrSeatLimitExceeded(t *testing.T) {
	err := errSeatLimitExceeded(5, 5, "developer")
	if err.Code != CodeSeatLimitExceeded {
		t.Errorf("Code = %v, want %v", err.Code, CodeSeatLimitExceeded)
	}
	if err.Limit != 5 || err.Active != 5 || err.Role != "developer" {
		t.Errorf("unexpected error fields: %+v", err)
	}
	if err.Error() != "seat limit exceeded for this role" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestErrCustomerInactive(t *testing.T) {
	err := errCustomerInactive()
	if err.Code != CodeCustomerInactive {
		t.Errorf("Code = %v, want %v", err.Code, CodeCustomerInactive)
	}
}
