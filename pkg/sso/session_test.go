package sso

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func testClaims() Claims {
	return Claims{
		CustomerID:   uuid.New(),
		UserID:       uuid.New(),
		Email:        "dev@example.com",
		DisplayName:  "Ada Lovelace",
		NameID:       "ada@idp.example.com",
		SessionIndex: "session-123",
		Role:         "developer",
		Attributes:   map[string]string{"department": "engineering"},
	}
}

func TestSessionSigner_MintAndVerify(t *testing.T) {
	signer, err := newSessionSigner("a-secret-long-enough-for-hs256!!")
	if err != nil {
		t.Fatalf("newSessionSigner: %v", err)
	}

	claims := testClaims()
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	tok, err := signer.mint(claims, now)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if tok.Raw == "" {
		t.Fatal("expected non-empty raw token")
	}
	if !tok.ExpiresAt.Equal(now.Add(SessionMaxAge)) {
		t.Errorf("ExpiresAt = %v, want %v", tok.ExpiresAt, now.Add(SessionMaxAge))
	}

	got, err := signer.verify(tok.Raw, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.CustomerID != claims.CustomerID {
		t.Errorf("CustomerID = %v, want %v", got.CustomerID, claims.CustomerID)
	}
	if got.UserID != claims.UserID {
		t.Errorf("UserID = %v, want %v", got.UserID, claims.UserID)
	}
	if got.Email != claims.Email {
		t.Errorf("Email = %q, want %q", got.Email, claims.Email)
	}
	if got.Attributes["department"] != "engineering" {
		t.Errorf("Attributes[department] = %q", got.Attributes["department"])
	}
}

func TestSessionSigner_RejectsExpired(t *testing.T) {
	signer, err := newSessionSigner("a-secret-long-enough-for-hs256!!")
	if err != nil {
		t.Fatalf("newSessionSigner: %v", err)
	}

	claims := testClaims()
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	tok, err := signer.mint(claims, now)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	past := tok.ExpiresAt.Add(time.Hour)
	if _, err := signer.verify(tok.Raw, past); err == nil {
		t.Fatal("expected verify to reject an expired token")
	}
}

func TestSessionSigner_RejectsWrongKey(t *testing.T) {
	signerA, err := newSessionSigner("secret-a-long-enough-for-hs256!!")
	if err != nil {
		t.Fatalf("newSessionSigner: %v", err)
	}
	signerB, err := newSessionSigner("secret-b-long-enough-for-hs256!!")
	if err != nil {
		t.Fatalf("newSessionSigner: %v", err)
	}

	now := time.Now()
	tok, err := signerA.mint(testClaims(), now)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := signerB.verify(tok.Raw, now); err == nil {
		t.Fatal("expected verify to reject a token signed with a different key")
	}
}

func TestNewSessionSigner_RejectsShortSecret(t *testing.T) {
	if _, err := newSessionSigner("too-short"); err == nil {
		t.Fatal("expected an error for a secret under 32 bytes")
	}
}

func TestRoleFromStore(t *testing.T) {
	if got := roleFromStore("developer"); got != "developer" {
		t.Errorf("roleFromStore = %q, want %q", got, "developer")
	}
}
