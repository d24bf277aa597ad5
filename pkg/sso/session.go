package sso

import (
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/snowflow/licensed/internal/store"
)

// sessionClaims are the custom claims embedded in the session JWT: customerId,
// userId, email, displayName, nameId, sessionIndex, attributes.
type sessionClaims struct {
	CustomerID   string            `json:"customerId"`
	UserID       string            `json:"userId"`
	Email        string            `json:"email"`
	DisplayName  string            `json:"displayName"`
	NameID       string            `json:"nameId"`
	SessionIndex string            `json:"sessionIndex"`
	Role         string            `json:"role"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// sessionSigner mints and verifies HS256 session JWTs with go-jose
// (jose.NewSigner/jwt.Signed/jwt.ParseSigned), using the admin session's own
// issuer, audience and payload.
type sessionSigner struct {
	key []byte
}

func newSessionSigner(secret string) (*sessionSigner, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(secret))
	}
	return &sessionSigner{key: []byte(secret)}, nil
}

func (s *sessionSigner) mint(claims Claims, now time.Time) (SessionToken, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: s.key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return SessionToken{}, fmt.Errorf("creating signer: %w", err)
	}

	expiresAt := now.Add(SessionMaxAge)
	registered := jwt.Claims{
		Issuer:    Issuer,
		Audience:  jwt.Audience{Audience},
		Subject:   claims.UserID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(expiresAt),
		NotBefore: jwt.NewNumericDate(now),
	}
	custom := sessionClaims{
		CustomerID:   claims.CustomerID.String(),
		UserID:       claims.UserID.String(),
		Email:        claims.Email,
		DisplayName:  claims.DisplayName,
		NameID:       claims.NameID,
		SessionIndex: claims.SessionIndex,
		Role:         claims.Role,
		Attributes:   claims.Attributes,
	}

	raw, err := jwt.Signed(signer).Claims(registered).Claims(custom).Serialize()
	if err != nil {
		return SessionToken{}, fmt.Errorf("signing session token: %w", err)
	}
	return SessionToken{Raw: raw, IssuedAt: now, ExpiresAt: expiresAt}, nil
}

// verify checks signature, issuer, audience and expiry, returning the
// embedded claims.
func (s *sessionSigner) verify(raw string, now time.Time) (Claims, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return Claims{}, fmt.Errorf("parsing session token: %w", err)
	}

	var registered jwt.Claims
	var custom sessionClaims
	if err := tok.Claims(s.key, &registered, &custom); err != nil {
		return Claims{}, fmt.Errorf("verifying session token: %w", err)
	}

	if err := registered.ValidateWithLeeway(jwt.Expected{
		Issuer:   Issuer,
		Time:     now,
		Audience: jwt.Audience{Audience},
	}, 5*time.Second); err != nil {
		return Claims{}, fmt.Errorf("validating session claims: %w", err)
	}

	customerID, err := uuid.Parse(custom.CustomerID)
	if err != nil {
		return Claims{}, fmt.Errorf("parsing customerId claim: %w", err)
	}
	userID, err := uuid.Parse(custom.UserID)
	if err != nil {
		return Claims{}, fmt.Errorf("parsing userId claim: %w", err)
	}

	return Claims{
		CustomerID:   customerID,
		UserID:       userID,
		Email:        custom.Email,
		DisplayName:  custom.DisplayName,
		NameID:       custom.NameID,
		SessionIndex: custom.SessionIndex,
		Role:         custom.Role,
		Attributes:   custom.Attributes,
	}, nil
}

// roleFromStore maps a persisted UserRole to the claim's plain string, kept
// as its own conversion point so the JWT payload never depends on the
// store package's type directly.
func roleFromStore(r store.UserRole) string { return string(r) }
