// Package vault implements the credential store: encrypted third-party
// secrets scoped to a customer, with redact-on-list, audit-on-read, and a
// background sweep that refreshes OAuth2 tokens before they expire.
package vault

import (
	"time"

	"github.com/google/uuid"

	"github.com/snowflow/licensed/internal/store"
)

// CredentialType aliases the persisted credential kind so this package and
// internal/store agree on one set of constants.
type CredentialType = store.CredentialType

const (
	CredentialTypeOAuth2    = store.CredentialTypeOAuth2
	CredentialTypeAPIToken  = store.CredentialTypeAPIToken
	CredentialTypeBasicAuth = store.CredentialTypeBasicAuth
	CredentialTypePAT       = store.CredentialTypePAT
)

// SecretFieldState distinguishes what a credential DTO actually carries.
type SecretFieldState int

const (
	// SecretAbsent means no value has ever been stored for this field.
	SecretAbsent SecretFieldState = iota
	// SecretRedacted means a value exists but was not decrypted for this
	// response (the list operation always returns this state).
	SecretRedacted
	// SecretPresent means Value holds the decrypted plaintext.
	SecretPresent
)

// SecretField is a tagged union standing in for "plaintext | redacted |
// absent" instead of using an empty string to mean two different things.
type SecretField struct {
	State SecretFieldState
	Value string
}

// Redacted returns a field in the redacted state whose Value is "[ENCRYPTED]".
func Redacted() SecretField { return SecretField{State: SecretRedacted, Value: "[ENCRYPTED]"} }

// Present wraps a decrypted plaintext value.
func Present(value string) SecretField { return SecretField{State: SecretPresent, Value: value} }

// Absent represents a field with no stored value.
func Absent() SecretField { return SecretField{State: SecretAbsent} }

// Credential is the DTO returned by list/get/create/update: one row per
// (customer, service), bundling whichever secret fields CredentialType
// requires alongside the plaintext provider config.
type Credential struct {
	ID              uuid.UUID
	Service         string
	CredentialType  CredentialType
	AccessToken     SecretField
	RefreshToken    SecretField
	ApiToken        SecretField
	Password        SecretField
	BaseURL         *string
	Email           *string
	ClientID        *string
	Scope           *string
	TokenType       *string
	ExpiresAt       *time.Time
	Enabled         bool
	LastUsedAt      *time.Time
	LastRefreshedAt *time.Time
	LastTestedAt    *time.Time
	LastTestOK      *bool
}
