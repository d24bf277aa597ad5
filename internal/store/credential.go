package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CredentialOwnerKind distinguishes which table a CredentialAudit row refers
// back to, since customer and service-integrator credentials live in
// separate tables but share one audit trail.
type CredentialOwnerKind string

const (
	CredentialOwnerCustomer          CredentialOwnerKind = "customer"
	CredentialOwnerServiceIntegrator CredentialOwnerKind = "service_integrator"
)

// CredentialType names which secret field(s) a credential is expected to
// carry. At least one matching secret field must be populated for the type.
type CredentialType string

const (
	CredentialTypeOAuth2    CredentialType = "oauth2"
	CredentialTypeAPIToken  CredentialType = "api_token"
	CredentialTypeBasicAuth CredentialType = "basic_auth"
	CredentialTypePAT       CredentialType = "pat"
)

// CustomerCredentialRow is one stored third-party credential belonging to a
// customer: one row per (customerId, service), bundling the encrypted secret
// fields a credentialType requires alongside the plaintext config attributes
// (base URL, username/email, client id, scope, token type) a provider
// integration also needs. EncryptedXxx fields hold the envelope/local blob
// produced by pkg/kmsenvelope; the plaintext never touches this layer.
type CustomerCredentialRow struct {
	ID                    uuid.UUID
	CustomerID            uuid.UUID
	Service               string
	CredentialType        CredentialType
	AccessTokenEncrypted  *string
	RefreshTokenEncrypted *string
	ApiTokenEncrypted     *string
	PasswordEncrypted     *string
	BaseURL               *string
	Email                 *string
	ClientID              *string
	Scope                 *string
	TokenType             *string
	ExpiresAt             *time.Time
	Enabled               bool
	LastUsedAt            *time.Time
	LastRefreshedAt       *time.Time
	LastTestedAt          *time.Time
	LastTestOK            *bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

const customerCredColumns = `id, customer_id, service, credential_type,
	access_token_encrypted, refresh_token_encrypted, api_token_encrypted, password_encrypted,
	base_url, email, client_id, scope, token_type, expires_at, enabled,
	last_used_at, last_refreshed_at, last_tested_at, last_test_ok, created_at, updated_at`

// CustomerCredentialStore provides database operations for customer-owned credentials.
type CustomerCredentialStore struct {
	db DBTX
}

// NewCustomerCredentialStore creates a Store backed by db (pool or tx).
func NewCustomerCredentialStore(db DBTX) *CustomerCredentialStore {
	return &CustomerCredentialStore{db: db}
}

func scanCustomerCredentialRow(row pgx.Row) (CustomerCredentialRow, error) {
	var r CustomerCredentialRow
	err := row.Scan(
		&r.ID, &r.CustomerID, &r.Service, &r.CredentialType,
		&r.AccessTokenEncrypted, &r.RefreshTokenEncrypted, &r.ApiTokenEncrypted, &r.PasswordEncrypted,
		&r.BaseURL, &r.Email, &r.ClientID, &r.Scope, &r.TokenType, &r.ExpiresAt, &r.Enabled,
		&r.LastUsedAt, &r.LastRefreshedAt, &r.LastTestedAt, &r.LastTestOK, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

// GetByID fetches a customer credential by primary key.
func (s *CustomerCredentialStore) GetByID(ctx context.Context, id uuid.UUID) (CustomerCredentialRow, error) {
	row := s.db.QueryRow(ctx, `SELECT `+customerCredColumns+` FROM customer_credentials WHERE id = $1`, id)
	r, err := scanCustomerCredentialRow(row)
	if err != nil {
		return CustomerCredentialRow{}, Translate(err)
	}
	return r, nil
}

// GetByCustomerService fetches the one credential stored for
// (customerID, service).
func (s *CustomerCredentialStore) GetByCustomerService(ctx context.Context, customerID uuid.UUID, service string) (CustomerCredentialRow, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+customerCredColumns+` FROM customer_credentials WHERE customer_id = $1 AND service = $2`,
		customerID, service)
	r, err := scanCustomerCredentialRow(row)
	if err != nil {
		return CustomerCredentialRow{}, Translate(err)
	}
	return r, nil
}

// ListByCustomer returns every stored credential across all services for a customer.
func (s *CustomerCredentialStore) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]CustomerCredentialRow, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+customerCredColumns+` FROM customer_credentials WHERE customer_id = $1 ORDER BY service`,
		customerID)
	if err != nil {
		return nil, fmt.Errorf("listing customer credentials: %w", Translate(err))
	}
	defer rows.Close()
	return collectCustomerCredentialRows(rows)
}

func collectCustomerCredentialRows(rows pgx.Rows) ([]CustomerCredentialRow, error) {
	var items []CustomerCredentialRow
	for rows.Next() {
		r, err := scanCustomerCredentialRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning customer credential row: %w", err)
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// UpsertCustomerCredentialParams describes a credential to write. Nil secret
// pointers leave that secret column cleared; the caller validates that at
// least one matches CredentialType before calling this.
type UpsertCustomerCredentialParams struct {
	CustomerID            uuid.UUID
	Service               string
	CredentialType        CredentialType
	AccessTokenEncrypted  *string
	RefreshTokenEncrypted *string
	ApiTokenEncrypted     *string
	PasswordEncrypted     *string
	BaseURL               *string
	Email                 *string
	ClientID              *string
	Scope                 *string
	TokenType             *string
	ExpiresAt             *time.Time
}

// Upsert creates or overwrites the credential for (customerID, service).
func (s *CustomerCredentialStore) Upsert(ctx context.Context, p UpsertCustomerCredentialParams) (CustomerCredentialRow, error) {
	query := `INSERT INTO customer_credentials (
			id, customer_id, service, credential_type,
			access_token_encrypted, refresh_token_encrypted, api_token_encrypted, password_encrypted,
			base_url, email, client_id, scope, token_type, expires_at, enabled, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, true, now(), now())
		ON CONFLICT (customer_id, service) DO UPDATE SET
			credential_type = EXCLUDED.credential_type,
			access_token_encrypted = EXCLUDED.access_token_encrypted,
			refresh_token_encrypted = EXCLUDED.refresh_token_encrypted,
			api_token_encrypted = EXCLUDED.api_token_encrypted,
			password_encrypted = EXCLUDED.password_encrypted,
			base_url = EXCLUDED.base_url,
			email = EXCLUDED.email,
			client_id = EXCLUDED.client_id,
			scope = EXCLUDED.scope,
			token_type = EXCLUDED.token_type,
			expires_at = EXCLUDED.expires_at,
			enabled = true,
			last_tested_at = NULL,
			last_test_ok = NULL,
			updated_at = now()
		RETURNING ` + customerCredColumns

	row := s.db.QueryRow(ctx, query,
		p.CustomerID, p.Service, p.CredentialType,
		p.AccessTokenEncrypted, p.RefreshTokenEncrypted, p.ApiTokenEncrypted, p.PasswordEncrypted,
		p.BaseURL, p.Email, p.ClientID, p.Scope, p.TokenType, p.ExpiresAt,
	)
	r, err := scanCustomerCredentialRow(row)
	if err != nil {
		return CustomerCredentialRow{}, fmt.Errorf("upserting customer credential: %w", Translate(err))
	}
	return r, nil
}

// RecordTestResult stamps the outcome of a connectivity test.
func (s *CustomerCredentialStore) RecordTestResult(ctx context.Context, id uuid.UUID, ok bool) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE customer_credentials SET last_tested_at = now(), last_test_ok = $2, updated_at = now() WHERE id = $1`,
		id, ok)
	if err != nil {
		return fmt.Errorf("recording credential test result: %w", Translate(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one credential by primary key.
func (s *CustomerCredentialStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM customer_credentials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting customer credential: %w", Translate(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListExpiringWithin returns customer credentials whose expires_at falls
// within [now, now+within).
func (s *CustomerCredentialStore) ListExpiringWithin(ctx context.Context, now time.Time, within time.Duration) ([]CustomerCredentialRow, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+customerCredColumns+` FROM customer_credentials WHERE expires_at IS NOT NULL AND expires_at >= $1 AND expires_at < $2`,
		now, now.Add(within))
	if err != nil {
		return nil, fmt.Errorf("listing expiring customer credentials: %w", Translate(err))
	}
	defer rows.Close()
	return collectCustomerCredentialRows(rows)
}

// BumpLastUsed stamps a credential as just-read, for the vault's audited
// get operation.
func (s *CustomerCredentialStore) BumpLastUsed(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `UPDATE customer_credentials SET last_used_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("bumping credential last_used_at: %w", Translate(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnabled flips the enabled flag, used when a provider rejects a
// refreshed OAuth2 token with 401/403.
func (s *CustomerCredentialStore) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE customer_credentials SET enabled = $2, updated_at = now() WHERE id = $1`, id, enabled)
	if err != nil {
		return fmt.Errorf("setting credential enabled flag: %w", Translate(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordRefresh overwrites a refreshed credential's access token ciphertext
// and expiry, stamping last_refreshed_at. refreshTokenEncrypted is only
// overwritten when non-nil, since most providers don't rotate it on refresh.
func (s *CustomerCredentialStore) RecordRefresh(ctx context.Context, id uuid.UUID, accessTokenEncrypted string, refreshTokenEncrypted *string, expiresAt *time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE customer_credentials SET
			access_token_encrypted = $2,
			refresh_token_encrypted = COALESCE($3, refresh_token_encrypted),
			expires_at = $4,
			last_refreshed_at = now(),
			updated_at = now()
		WHERE id = $1`,
		id, accessTokenEncrypted, refreshTokenEncrypted, expiresAt)
	if err != nil {
		return fmt.Errorf("recording credential refresh: %w", Translate(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRefreshCandidates returns enabled credentials carrying a refresh token
// whose expires_at falls within `within` of now — the population the
// expiring-token sweep refreshes.
func (s *CustomerCredentialStore) ListRefreshCandidates(ctx context.Context, now time.Time, within time.Duration) ([]CustomerCredentialRow, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+customerCredColumns+` FROM customer_credentials
		WHERE expires_at IS NOT NULL AND expires_at >= $1 AND expires_at < $2
			AND enabled = true
			AND refresh_token_encrypted IS NOT NULL`,
		now, now.Add(within))
	if err != nil {
		return nil, fmt.Errorf("listing refreshable credentials: %w", Translate(err))
	}
	defer rows.Close()
	return collectCustomerCredentialRows(rows)
}

// ServiceIntegratorCredentialRow is the SI-scoped analogue of
// CustomerCredentialRow, for credentials an SI configures for all of its
// customers (e.g. a shared upstream API key).
type ServiceIntegratorCredentialRow struct {
	ID                    uuid.UUID
	ServiceIntegratorID   uuid.UUID
	Service               string
	CredentialType        CredentialType
	AccessTokenEncrypted  *string
	RefreshTokenEncrypted *string
	ApiTokenEncrypted     *string
	PasswordEncrypted     *string
	BaseURL               *string
	Email                 *string
	ClientID              *string
	Scope                 *string
	TokenType             *string
	ExpiresAt             *time.Time
	Enabled               bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

const siCredColumns = `id, service_integrator_id, service, credential_type,
	access_token_encrypted, refresh_token_encrypted, api_token_encrypted, password_encrypted,
	base_url, email, client_id, scope, token_type, expires_at, enabled, created_at, updated_at`

// ServiceIntegratorCredentialStore provides database operations for SI-owned credentials.
type ServiceIntegratorCredentialStore struct {
	db DBTX
}

// NewServiceIntegratorCredentialStore creates a Store backed by db.
func NewServiceIntegratorCredentialStore(db DBTX) *ServiceIntegratorCredentialStore {
	return &ServiceIntegratorCredentialStore{db: db}
}

func scanSICredentialRow(row pgx.Row) (ServiceIntegratorCredentialRow, error) {
	var r ServiceIntegratorCredentialRow
	err := row.Scan(
		&r.ID, &r.ServiceIntegratorID, &r.Service, &r.CredentialType,
		&r.AccessTokenEncrypted, &r.RefreshTokenEncrypted, &r.ApiTokenEncrypted, &r.PasswordEncrypted,
		&r.BaseURL, &r.Email, &r.ClientID, &r.Scope, &r.TokenType, &r.ExpiresAt, &r.Enabled,
		&r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

// ListByServiceIntegrator returns every stored credential for an SI.
func (s *ServiceIntegratorCredentialStore) ListByServiceIntegrator(ctx context.Context, siID uuid.UUID) ([]ServiceIntegratorCredentialRow, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+siCredColumns+` FROM service_integrator_credentials WHERE service_integrator_id = $1 ORDER BY service`,
		siID)
	if err != nil {
		return nil, fmt.Errorf("listing service integrator credentials: %w", Translate(err))
	}
	defer rows.Close()

	var items []ServiceIntegratorCredentialRow
	for rows.Next() {
		r, err := scanSICredentialRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning service integrator credential row: %w", err)
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// UpsertServiceIntegratorCredentialParams describes a credential to write.
type UpsertServiceIntegratorCredentialParams struct {
	ServiceIntegratorID   uuid.UUID
	Service               string
	CredentialType        CredentialType
	AccessTokenEncrypted  *string
	RefreshTokenEncrypted *string
	ApiTokenEncrypted     *string
	PasswordEncrypted     *string
	BaseURL               *string
	Email                 *string
	ClientID              *string
	Scope                 *string
	TokenType             *string
	ExpiresAt             *time.Time
}

// Upsert creates or overwrites one SI credential.
func (s *ServiceIntegratorCredentialStore) Upsert(ctx context.Context, p UpsertServiceIntegratorCredentialParams) (ServiceIntegratorCredentialRow, error) {
	query := `INSERT INTO service_integrator_credentials (
			id, service_integrator_id, service, credential_type,
			access_token_encrypted, refresh_token_encrypted, api_token_encrypted, password_encrypted,
			base_url, email, client_id, scope, token_type, expires_at, enabled, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, true, now(), now())
		ON CONFLICT (service_integrator_id, service) DO UPDATE SET
			credential_type = EXCLUDED.credential_type,
			access_token_encrypted = EXCLUDED.access_token_encrypted,
			refresh_token_encrypted = EXCLUDED.refresh_token_encrypted,
			api_token_encrypted = EXCLUDED.api_token_encrypted,
			password_encrypted = EXCLUDED.password_encrypted,
			base_url = EXCLUDED.base_url,
			email = EXCLUDED.email,
			client_id = EXCLUDED.client_id,
			scope = EXCLUDED.scope,
			token_type = EXCLUDED.token_type,
			expires_at = EXCLUDED.expires_at,
			updated_at = now()
		RETURNING ` + siCredColumns

	row := s.db.QueryRow(ctx, query,
		p.ServiceIntegratorID, p.Service, p.CredentialType,
		p.AccessTokenEncrypted, p.RefreshTokenEncrypted, p.ApiTokenEncrypted, p.PasswordEncrypted,
		p.BaseURL, p.Email, p.ClientID, p.Scope, p.TokenType, p.ExpiresAt,
	)
	r, err := scanSICredentialRow(row)
	if err != nil {
		return ServiceIntegratorCredentialRow{}, fmt.Errorf("upserting service integrator credential: %w", Translate(err))
	}
	return r, nil
}

// Delete removes one SI credential by primary key.
func (s *ServiceIntegratorCredentialStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM service_integrator_credentials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting service integrator credential: %w", Translate(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CredentialAuditAction enumerates the actions recorded against a credential.
type CredentialAuditAction string

const (
	CredentialAuditCreate    CredentialAuditAction = "created"
	CredentialAuditUpdate    CredentialAuditAction = "updated"
	CredentialAuditDelete    CredentialAuditAction = "deleted"
	CredentialAuditTest      CredentialAuditAction = "tested"
	CredentialAuditView      CredentialAuditAction = "accessed"
	CredentialAuditRefreshed CredentialAuditAction = "refreshed"
)

// CredentialAuditRow is one append-only audit entry against a credential,
// cascading with the credential's deletion.
type CredentialAuditRow struct {
	ID          uuid.UUID
	OwnerKind   CredentialOwnerKind
	OwnerID     uuid.UUID
	Service     string
	Action      CredentialAuditAction
	Success     bool
	ActorUserID *uuid.UUID
	OccurredAt  time.Time
	Detail      *string
}

const credAuditColumns = `id, owner_kind, owner_id, service, action, success, actor_user_id, occurred_at, detail`

// CredentialAuditStore appends and lists credential audit events.
type CredentialAuditStore struct {
	db DBTX
}

// NewCredentialAuditStore creates a Store backed by db.
func NewCredentialAuditStore(db DBTX) *CredentialAuditStore {
	return &CredentialAuditStore{db: db}
}

// AppendCredentialAuditParams describes one audit event to append. Success
// is true for create/update/delete/view (the vault only audits those after
// they've happened) and carries the actual outcome for test/refreshed.
type AppendCredentialAuditParams struct {
	OwnerKind   CredentialOwnerKind
	OwnerID     uuid.UUID
	Service     string
	Action      CredentialAuditAction
	Success     bool
	ActorUserID *uuid.UUID
	Detail      *string
}

// Append inserts one credential audit row.
func (s *CredentialAuditStore) Append(ctx context.Context, p AppendCredentialAuditParams) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO credential_audits (id, owner_kind, owner_id, service, action, success, actor_user_id, occurred_at, detail)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, now(), $7)`,
		p.OwnerKind, p.OwnerID, p.Service, p.Action, p.Success, p.ActorUserID, p.Detail,
	)
	if err != nil {
		return fmt.Errorf("appending credential audit: %w", Translate(err))
	}
	return nil
}

// ListByOwner returns the most recent audit entries for an owner, newest first.
func (s *CredentialAuditStore) ListByOwner(ctx context.Context, ownerKind CredentialOwnerKind, ownerID uuid.UUID, limit int) ([]CredentialAuditRow, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+credAuditColumns+` FROM credential_audits WHERE owner_kind = $1 AND owner_id = $2 ORDER BY occurred_at DESC LIMIT $3`,
		ownerKind, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing credential audits: %w", Translate(err))
	}
	defer rows.Close()

	var items []CredentialAuditRow
	for rows.Next() {
		var r CredentialAuditRow
		if err := rows.Scan(
			&r.ID, &r.OwnerKind, &r.OwnerID, &r.Service, &r.Action, &r.Success,
			&r.ActorUserID, &r.OccurredAt, &r.Detail,
		); err != nil {
			return nil, fmt.Errorf("scanning credential audit row: %w", err)
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
