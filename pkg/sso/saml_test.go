package sso

import (
	"testing"

	"github.com/crewjam/saml"
	"github.com/google/uuid"

	"github.com/snowflow/licensed/internal/store"
)

func TestProviderCache_InvalidateRemovesEntry(t *testing.T) {
	c := newProviderCache("https://licensed.example.com")
	id := uuid.New()

	c.mu.Lock()
	c.byID[id] = &saml.ServiceProvider{EntityID: "test-sp"}
	c.mu.Unlock()

	c.mu.RLock()
	_, ok := c.byID[id]
	c.mu.RUnlock()
	if !ok {
		t.Fatal("expected entry to be present before invalidate")
	}

	c.invalidate(id)

	c.mu.RLock()
	_, ok = c.byID[id]
	c.mu.RUnlock()
	if ok {
		t.Error("expected entry to be removed after invalidate")
	}
}

func TestBuildServiceProvider_InvalidCertificate(t *testing.T) {
	cfg := store.SsoConfigRow{
		CustomerID:     uuid.New(),
		IdpEntityID:    "https://idp.example.com/metadata",
		IdpSSOURL:      "https://idp.example.com/sso",
		IdpCertificate: "not a pem certificate",
		SPEntityID:     "https://licensed.example.com/sso/metadata",
	}

	if _, err := buildServiceProvider(cfg, "https://licensed.example.com"); err == nil {
		t.Fatal("expected an error for a non-PEM certificate")
	}
}
