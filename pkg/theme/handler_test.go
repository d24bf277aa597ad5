package theme

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/snowflow/licensed/internal/auth"
	"github.com/snowflow/licensed/internal/store"
)

func TestServiceIntegratorID_MissingIdentity(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/themes", nil)
	if _, ok := serviceIntegratorID(r); ok {
		t.Error("expected no service integrator id without an identity in context")
	}
}

func TestServiceIntegratorID_CustomerIdentity(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/themes", nil)
	custID := uuid.New()
	id := &auth.Identity{CustomerID: &custID, Role: auth.RoleAdmin}
	r = r.WithContext(auth.NewContext(r.Context(), id))

	if _, ok := serviceIntegratorID(r); ok {
		t.Error("expected no service integrator id for a customer-scoped identity")
	}
}

func TestServiceIntegratorID_Present(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/themes", nil)
	siID := uuid.New()
	id := &auth.Identity{ServiceIntegratorID: &siID, Role: auth.RoleAdmin}
	r = r.WithContext(auth.NewContext(r.Context(), id))

	got, ok := serviceIntegratorID(r)
	if !ok {
		t.Fatal("expected a service integrator id")
	}
	if got != siID {
		t.Errorf("got %v, want %v", got, siID)
	}
}

func TestToThemeDTO(t *testing.T) {
	logo := "https://example.com/logo.png"
	color := "#112233"
	row := store.ThemeRow{
		ID:             uuid.New(),
		Name:           "Acme Dark",
		LogoURL:        &logo,
		PrimaryColor:   &color,
		SecondaryColor: nil,
		SupportEmail:   nil,
	}

	dto := toThemeDTO(row)
	if dto.ID != row.ID.String() {
		t.Errorf("ID = %q, want %q", dto.ID, row.ID.String())
	}
	if dto.Name != row.Name {
		t.Errorf("Name = %q, want %q", dto.Name, row.Name)
	}
	if dto.LogoURL == nil || *dto.LogoURL != logo {
		t.Errorf("LogoURL = %v, want %q", dto.LogoURL, logo)
	}
	if dto.SecondaryColor != nil {
		t.Errorf("SecondaryColor = %v, want nil", dto.SecondaryColor)
	}
}
