package sso

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crewjam/saml"
	"github.com/google/uuid"

	"github.com/snowflow/licensed/internal/store"
)

func TestClaimsFromAssertion(t *testing.T) {
	customerID := uuid.New()
	assertion := &saml.Assertion{
		Subject: &saml.Subject{
			NameID: &saml.NameID{Value: "ada@idp.example.com"},
		},
		AttributeStatements: []saml.AttributeStatement{
			{
				Attributes: []saml.Attribute{
					{Name: "email", Values: []saml.AttributeValue{{Value: "ada@example.com"}}},
					{Name: "displayName", Values: []saml.AttributeValue{{Value: "Ada Lovelace"}}},
				},
			},
		},
		AuthnStatements: []saml.AuthnStatement{
			{SessionIndex: "sess-1"},
		},
	}

	claims, err := claimsFromAssertion(assertion, customerID, store.SsoConfigRow{})
	if err != nil {
		t.Fatalf("claimsFromAssertion: %v", err)
	}
	if claims.CustomerID != customerID {
		t.Errorf("CustomerID = %v, want %v", claims.CustomerID, customerID)
	}
	if claims.Email != "ada@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
	if claims.DisplayName != "Ada Lovelace" {
		t.Errorf("DisplayName = %q", claims.DisplayName)
	}
	if claims.NameID != "ada@idp.example.com" {
		t.Errorf("NameID = %q", claims.NameID)
	}
	if claims.SessionIndex != "sess-1" {
		t.Errorf("SessionIndex = %q", claims.SessionIndex)
	}
}

func TestClaimsFromAssertion_CustomMapping(t *testing.T) {
	customerID := uuid.New()
	assertion := &saml.Assertion{
		Subject: &saml.Subject{NameID: &saml.NameID{Value: "u1"}},
		AttributeStatements: []saml.AttributeStatement{
			{
				Attributes: []saml.Attribute{
					{Name: "mail", Values: []saml.AttributeValue{{Value: "custom@example.com"}}},
				},
			},
		},
	}
	cfg := store.SsoConfigRow{AttributeMapping: []byte(`{"email":"mail"}`)}

	claims, err := claimsFromAssertion(assertion, customerID, cfg)
	if err != nil {
		t.Fatalf("claimsFromAssertion: %v", err)
	}
	if claims.Email != "custom@example.com" {
		t.Errorf("Email = %q, want custom@example.com", claims.Email)
	}
}

func TestClaimsFromAssertion_MissingNameID(t *testing.T) {
	_, err := claimsFromAssertion(&saml.Assertion{}, uuid.New(), store.SsoConfigRow{})
	if err == nil {
		t.Fatal("expected error for missing subject NameID")
	}
}

func TestHashNameIDAndHashToken_Deterministic(t *testing.T) {
	a := hashNameID("ada@idp.example.com")
	b := hashNameID("ada@idp.example.com")
	if a != b {
		t.Error("hashNameID should be deterministic")
	}
	if hashNameID("ada@idp.example.com") == hashNameID("bob@idp.example.com") {
		t.Error("different NameIDs should hash differently")
	}

	tokA := hashToken("raw-token")
	tokB := hashToken("raw-token")
	if tokA != tokB {
		t.Error("hashToken should be deterministic")
	}
}

func TestSessionTokenFromRequest_BearerHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc.def.ghi")

	if got := sessionTokenFromRequest(r); got != "abc.def.ghi" {
		t.Errorf("sessionTokenFromRequest = %q, want %q", got, "abc.def.ghi")
	}
}

func TestSessionTokenFromRequest_Cookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "cookie-token"})

	if got := sessionTokenFromRequest(r); got != "cookie-token" {
		t.Errorf("sessionTokenFromRequest = %q, want %q", got, "cookie-token")
	}
}

func TestSessionTokenFromRequest_None(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := sessionTokenFromRequest(r); got != "" {
		t.Errorf("sessionTokenFromRequest = %q, want empty", got)
	}
}

func TestStrPtr(t *testing.T) {
	if strPtr("") != nil {
		t.Error("strPtr(\"\") should be nil")
	}
	got := strPtr("x")
	if got == nil || *got != "x" {
		t.Errorf("strPtr(\"x\") = %v", got)
	}
}
