// Package sso implements the admin/human authentication path: SP-initiated
// SAML login, a self-issued session JWT, and the background sweep that
// expires stale sessions. It satisfies internal/auth.SSOVerifier so the
// rest of the server never imports SAML or JWT libraries directly.
package sso

import (
	"time"

	"github.com/google/uuid"
)

// Claims is what a successful SAML assertion resolves to before a session
// is minted. Attributes carries whatever the IdP's attribute statement
// included beyond the handful of named fields.
type Claims struct {
	CustomerID   uuid.UUID
	UserID       uuid.UUID
	Email        string
	DisplayName  string
	NameID       string
	SessionIndex string
	Role         string
	Attributes   map[string]string
}

// SessionToken is the outcome of minting a session: the signed JWT and the
// expiry it carries, needed to set the cookie and persist the session row.
type SessionToken struct {
	Raw       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SessionMaxAge is the fixed lifetime of an admin session JWT.
const SessionMaxAge = 8 * time.Hour

// Issuer and Audience are fixed per the session JWT's registered claims.
const (
	Issuer   = "snow-flow-enterprise"
	Audience = "license-server"
)

// CookieName is the name of the httpOnly cookie carrying the session JWT.
const CookieName = "sso_token"
