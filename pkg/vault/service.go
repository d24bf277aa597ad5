package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snowflow/licensed/internal/store"
)

// Cipher is satisfied by pkg/kmsenvelope.Service. Declared here instead of
// importing kmsenvelope directly so this package stays agnostic of the KMS
// fallback mechanics, matching the dependency-inversion pattern used for
// internal/auth.SSOVerifier.
type Cipher interface {
	Encrypt(ctx context.Context, plaintext []byte) (string, error)
	Decrypt(ctx context.Context, blob string) ([]byte, error)
}

// Service implements the credential vault's CRUD and audit behavior.
type Service struct {
	pool   *pgxpool.Pool
	cipher Cipher
}

// NewService builds a Service backed by pool and cipher.
func NewService(pool *pgxpool.Pool, cipher Cipher) *Service {
	return &Service{pool: pool, cipher: cipher}
}

// validateSecrets enforces the "at least one secret field populated matches
// credentialType" invariant before a write reaches storage.
func validateSecrets(credType CredentialType, accessToken, refreshToken, apiToken, password *string) error {
	nonEmpty := func(s *string) bool { return s != nil && *s != "" }

	switch credType {
	case CredentialTypeOAuth2:
		if !nonEmpty(accessToken) {
			return errInvalidCredential("oauth2 credentials require an accessToken")
		}
	case CredentialTypeAPIToken, CredentialTypePAT:
		if !nonEmpty(apiToken) {
			return errInvalidCredential("api_token/pat credentials require an apiToken")
		}
	case CredentialTypeBasicAuth:
		if !nonEmpty(password) {
			return errInvalidCredential("basic_auth credentials require a password")
		}
	default:
		return errInvalidCredential("unknown credentialType")
	}
	return nil
}

func toCredential(r store.CustomerCredentialRow, access, refresh, apiToken, password SecretField) Credential {
	return Credential{
		ID:              r.ID,
		Service:         r.Service,
		CredentialType:  r.CredentialType,
		AccessToken:     access,
		RefreshToken:    refresh,
		ApiToken:        apiToken,
		Password:        password,
		BaseURL:         r.BaseURL,
		Email:           r.Email,
		ClientID:        r.ClientID,
		Scope:           r.Scope,
		TokenType:       r.TokenType,
		ExpiresAt:       r.ExpiresAt,
		Enabled:         r.Enabled,
		LastUsedAt:      r.LastUsedAt,
		LastRefreshedAt: r.LastRefreshedAt,
		LastTestedAt:    r.LastTestedAt,
		LastTestOK:      r.LastTestOK,
	}
}

// redactedSecrets reports, for each encrypted column, whether it's absent or
// present-but-redacted, without touching the cipher.
func redactedSecrets(r store.CustomerCredentialRow) (access, refresh, apiToken, password SecretField) {
	secretFor := func(encrypted *string) SecretField {
		if encrypted == nil {
			return Absent()
		}
		return Redacted()
	}
	return secretFor(r.AccessTokenEncrypted), secretFor(r.RefreshTokenEncrypted), secretFor(r.ApiTokenEncrypted), secretFor(r.PasswordEncrypted)
}

// List returns every credential for customerID with secrets redacted;
// plaintext config attributes (baseUrl, email, clientId, scope, tokenType)
// are returned as-is. Metadata reads are not audited — only actual secret
// exposure is, per the vault's audit-on-access rule.
func (s *Service) List(ctx context.Context, customerID uuid.UUID) ([]Credential, error) {
	rows, err := store.NewCustomerCredentialStore(s.pool).ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}
	out := make([]Credential, len(rows))
	for i, r := range rows {
		access, refresh, apiToken, password := redactedSecrets(r)
		out[i] = toCredential(r, access, refresh, apiToken, password)
	}
	return out, nil
}

func (s *Service) decryptField(ctx context.Context, encrypted *string) (SecretField, error) {
	if encrypted == nil {
		return Absent(), nil
	}
	plaintext, err := s.cipher.Decrypt(ctx, *encrypted)
	if err != nil {
		return SecretField{}, err
	}
	return Present(string(plaintext)), nil
}

// Get decrypts every secret field stored for (customerID, service), bumps
// last_used_at, and appends an "accessed" audit row — all inside one
// transaction, so an audit-append failure rolls back the read's side
// effects rather than silently diverging from them.
func (s *Service) Get(ctx context.Context, customerID uuid.UUID, service string, actorUserID *uuid.UUID) (Credential, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Credential{}, fmt.Errorf("beginning credential read transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	creds := store.NewCustomerCredentialStore(tx)
	audits := store.NewCredentialAuditStore(tx)

	row, err := creds.GetByCustomerService(ctx, customerID, service)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Credential{}, errCredentialNotFound()
		}
		return Credential{}, fmt.Errorf("loading credential: %w", err)
	}

	access, err := s.decryptField(ctx, row.AccessTokenEncrypted)
	if err != nil {
		return Credential{}, fmt.Errorf("decrypting access token: %w", err)
	}
	refresh, err := s.decryptField(ctx, row.RefreshTokenEncrypted)
	if err != nil {
		return Credential{}, fmt.Errorf("decrypting refresh token: %w", err)
	}
	apiToken, err := s.decryptField(ctx, row.ApiTokenEncrypted)
	if err != nil {
		return Credential{}, fmt.Errorf("decrypting api token: %w", err)
	}
	password, err := s.decryptField(ctx, row.PasswordEncrypted)
	if err != nil {
		return Credential{}, fmt.Errorf("decrypting password: %w", err)
	}

	if err := creds.BumpLastUsed(ctx, row.ID); err != nil {
		return Credential{}, fmt.Errorf("recording credential access: %w", err)
	}
	if err := audits.Append(ctx, store.AppendCredentialAuditParams{
		OwnerKind: store.CredentialOwnerCustomer, OwnerID: customerID,
		Service: service, Action: store.CredentialAuditView, Success: true,
		ActorUserID: actorUserID,
	}); err != nil {
		return Credential{}, fmt.Errorf("appending access audit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Credential{}, fmt.Errorf("committing credential read: %w", err)
	}

	return toCredential(row, access, refresh, apiToken, password), nil
}

// PutParams is the caller-facing input for Put.
type PutParams struct {
	CredentialType CredentialType
	AccessToken    *string
	RefreshToken   *string
	ApiToken       *string
	Password       *string
	BaseURL        *string
	Email          *string
	ClientID       *string
	Scope          *string
	TokenType      *string
	ExpiresAt      *time.Time
}

func (s *Service) encryptField(ctx context.Context, plaintext *string) (*string, error) {
	if plaintext == nil || *plaintext == "" {
		return nil, nil
	}
	encrypted, err := s.cipher.Encrypt(ctx, []byte(*plaintext))
	if err != nil {
		return nil, err
	}
	return &encrypted, nil
}

// Put creates or overwrites the credential for (customerID, service),
// appending a "created" audit row the first time and an "updated" row on
// every write thereafter.
func (s *Service) Put(ctx context.Context, customerID uuid.UUID, service string, p PutParams, actorUserID *uuid.UUID) (Credential, error) {
	if err := validateSecrets(p.CredentialType, p.AccessToken, p.RefreshToken, p.ApiToken, p.Password); err != nil {
		return Credential{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Credential{}, fmt.Errorf("beginning credential write transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	creds := store.NewCustomerCredentialStore(tx)
	audits := store.NewCredentialAuditStore(tx)

	action := store.CredentialAuditCreate
	if _, err := creds.GetByCustomerService(ctx, customerID, service); err == nil {
		action = store.CredentialAuditUpdate
	} else if !errors.Is(err, store.ErrNotFound) {
		return Credential{}, fmt.Errorf("checking existing credential: %w", err)
	}

	encryptedAccess, err := s.encryptField(ctx, p.AccessToken)
	if err != nil {
		return Credential{}, fmt.Errorf("encrypting access token: %w", err)
	}
	encryptedRefresh, err := s.encryptField(ctx, p.RefreshToken)
	if err != nil {
		return Credential{}, fmt.Errorf("encrypting refresh token: %w", err)
	}
	encryptedAPIToken, err := s.encryptField(ctx, p.ApiToken)
	if err != nil {
		return Credential{}, fmt.Errorf("encrypting api token: %w", err)
	}
	encryptedPassword, err := s.encryptField(ctx, p.Password)
	if err != nil {
		return Credential{}, fmt.Errorf("encrypting password: %w", err)
	}

	row, err := creds.Upsert(ctx, store.UpsertCustomerCredentialParams{
		CustomerID: customerID, Service: service, CredentialType: p.CredentialType,
		AccessTokenEncrypted: encryptedAccess, RefreshTokenEncrypted: encryptedRefresh,
		ApiTokenEncrypted: encryptedAPIToken, PasswordEncrypted: encryptedPassword,
		BaseURL: p.BaseURL, Email: p.Email, ClientID: p.ClientID,
		Scope: p.Scope, TokenType: p.TokenType, ExpiresAt: p.ExpiresAt,
	})
	if err != nil {
		return Credential{}, fmt.Errorf("writing credential: %w", err)
	}

	if err := audits.Append(ctx, store.AppendCredentialAuditParams{
		OwnerKind: store.CredentialOwnerCustomer, OwnerID: customerID,
		Service: service, Action: action, Success: true, ActorUserID: actorUserID,
	}); err != nil {
		return Credential{}, fmt.Errorf("appending write audit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Credential{}, fmt.Errorf("committing credential write: %w", err)
	}

	access, refresh, apiToken, password := redactedSecrets(row)
	return toCredential(row, access, refresh, apiToken, password), nil
}

// Delete removes the credential for (customerID, service) and appends a
// "deleted" audit row.
func (s *Service) Delete(ctx context.Context, customerID uuid.UUID, service string, actorUserID *uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning credential delete transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	creds := store.NewCustomerCredentialStore(tx)
	audits := store.NewCredentialAuditStore(tx)

	row, err := creds.GetByCustomerService(ctx, customerID, service)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errCredentialNotFound()
		}
		return fmt.Errorf("loading credential: %w", err)
	}

	if err := creds.Delete(ctx, row.ID); err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	if err := audits.Append(ctx, store.AppendCredentialAuditParams{
		OwnerKind: store.CredentialOwnerCustomer, OwnerID: customerID,
		Service: service, Action: store.CredentialAuditDelete, Success: true,
		ActorUserID: actorUserID,
	}); err != nil {
		return fmt.Errorf("appending delete audit: %w", err)
	}

	return tx.Commit(ctx)
}

// RecordTestResult stamps the outcome of an out-of-band connectivity test
// and appends a "tested" audit row carrying that outcome. The vault never
// speaks to the third-party service itself; a caller probes the service
// externally and reports the verdict here.
func (s *Service) RecordTestResult(ctx context.Context, customerID uuid.UUID, service string, ok bool, message string, actorUserID *uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning credential test transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	creds := store.NewCustomerCredentialStore(tx)
	audits := store.NewCredentialAuditStore(tx)

	row, err := creds.GetByCustomerService(ctx, customerID, service)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errCredentialNotFound()
		}
		return fmt.Errorf("loading credential: %w", err)
	}

	if err := creds.RecordTestResult(ctx, row.ID, ok); err != nil {
		return fmt.Errorf("recording test result: %w", err)
	}
	if err := audits.Append(ctx, store.AppendCredentialAuditParams{
		OwnerKind: store.CredentialOwnerCustomer, OwnerID: customerID,
		Service: service, Action: store.CredentialAuditTest, Success: ok,
		ActorUserID: actorUserID, Detail: &message,
	}); err != nil {
		return fmt.Errorf("appending test audit: %w", err)
	}

	return tx.Commit(ctx)
}
