package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SsoConfigRow is one customer's SAML service-provider configuration.
type SsoConfigRow struct {
	ID                 uuid.UUID
	CustomerID         uuid.UUID
	IdpEntityID        string
	IdpSSOURL          string
	IdpCertificate     string
	SPEntityID         string
	AttributeMapping   []byte // raw JSON
	Enabled            bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

const ssoConfigColumns = `id, customer_id, idp_entity_id, idp_sso_url, idp_certificate, sp_entity_id, attribute_mapping, enabled, created_at, updated_at`

// SsoConfigStore provides database operations for SSO configuration.
type SsoConfigStore struct {
	db DBTX
}

// NewSsoConfigStore creates a Store backed by db (pool or tx).
func NewSsoConfigStore(db DBTX) *SsoConfigStore {
	return &SsoConfigStore{db: db}
}

func scanSsoConfigRow(row pgx.Row) (SsoConfigRow, error) {
	var r SsoConfigRow
	err := row.Scan(
		&r.ID, &r.CustomerID, &r.IdpEntityID, &r.IdpSSOURL, &r.IdpCertificate,
		&r.SPEntityID, &r.AttributeMapping, &r.Enabled, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

// GetByCustomer fetches the SSO config for a customer, if configured.
func (s *SsoConfigStore) GetByCustomer(ctx context.Context, customerID uuid.UUID) (SsoConfigRow, error) {
	row := s.db.QueryRow(ctx, `SELECT `+ssoConfigColumns+` FROM sso_configs WHERE customer_id = $1`, customerID)
	r, err := scanSsoConfigRow(row)
	if err != nil {
		return SsoConfigRow{}, Translate(err)
	}
	return r, nil
}

// UpsertSsoConfigParams describes an SSO config to create or replace.
type UpsertSsoConfigParams struct {
	CustomerID       uuid.UUID
	IdpEntityID      string
	IdpSSOURL        string
	IdpCertificate   string
	SPEntityID       string
	AttributeMapping []byte
	Enabled          bool
}

// Upsert creates or replaces a customer's SSO config.
func (s *SsoConfigStore) Upsert(ctx context.Context, p UpsertSsoConfigParams) (SsoConfigRow, error) {
	var mapping any
	if p.AttributeMapping != nil {
		mapping = p.AttributeMapping
	}

	query := `INSERT INTO sso_configs (id, customer_id, idp_entity_id, idp_sso_url, idp_certificate, sp_entity_id, attribute_mapping, enabled, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (customer_id) DO UPDATE SET
			idp_entity_id = EXCLUDED.idp_entity_id,
			idp_sso_url = EXCLUDED.idp_sso_url,
			idp_certificate = EXCLUDED.idp_certificate,
			sp_entity_id = EXCLUDED.sp_entity_id,
			attribute_mapping = EXCLUDED.attribute_mapping,
			enabled = EXCLUDED.enabled,
			updated_at = now()
		RETURNING ` + ssoConfigColumns

	row := s.db.QueryRow(ctx, query, p.CustomerID, p.IdpEntityID, p.IdpSSOURL, p.IdpCertificate, p.SPEntityID, mapping, p.Enabled)
	r, err := scanSsoConfigRow(row)
	if err != nil {
		return SsoConfigRow{}, fmt.Errorf("upserting sso config: %w", Translate(err))
	}
	return r, nil
}

// SetEnabled flips a customer's SSO config on or off.
func (s *SsoConfigStore) SetEnabled(ctx context.Context, customerID uuid.UUID, enabled bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE sso_configs SET enabled = $2, updated_at = now() WHERE customer_id = $1`, customerID, enabled)
	if err != nil {
		return fmt.Errorf("updating sso config enabled flag: %w", Translate(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SsoSessionRow is one minted session, mirroring the claims embedded in the
// JWT handed back to the browser as the sso_token cookie.
type SsoSessionRow struct {
	ID          uuid.UUID
	CustomerID  uuid.UUID
	UserID      uuid.UUID
	Email       string
	Role        UserRole
	JWTHash     string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	RevokedAt   *time.Time
}

const ssoSessionColumns = `id, customer_id, user_id, email, role, jwt_hash, issued_at, expires_at, revoked_at`

// SsoSessionStore provides database operations for minted SSO sessions.
type SsoSessionStore struct {
	db DBTX
}

// NewSsoSessionStore creates a Store backed by db.
func NewSsoSessionStore(db DBTX) *SsoSessionStore {
	return &SsoSessionStore{db: db}
}

func scanSsoSessionRow(row pgx.Row) (SsoSessionRow, error) {
	var r SsoSessionRow
	err := row.Scan(
		&r.ID, &r.CustomerID, &r.UserID, &r.Email, &r.Role, &r.JWTHash,
		&r.IssuedAt, &r.ExpiresAt, &r.RevokedAt,
	)
	return r, err
}

// CreateSsoSessionParams describes a session to persist at mint time.
type CreateSsoSessionParams struct {
	CustomerID uuid.UUID
	UserID     uuid.UUID
	Email      string
	Role       UserRole
	JWTHash    string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Create inserts a new SSO session row.
func (s *SsoSessionStore) Create(ctx context.Context, p CreateSsoSessionParams) (SsoSessionRow, error) {
	query := `INSERT INTO sso_sessions (id, customer_id, user_id, email, role, jwt_hash, issued_at, expires_at, revoked_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, NULL)
		RETURNING ` + ssoSessionColumns

	row := s.db.QueryRow(ctx, query, p.CustomerID, p.UserID, p.Email, p.Role, p.JWTHash, p.IssuedAt, p.ExpiresAt)
	r, err := scanSsoSessionRow(row)
	if err != nil {
		return SsoSessionRow{}, fmt.Errorf("creating sso session: %w", Translate(err))
	}
	return r, nil
}

// GetByJWTHash looks up a session by the hash of its bearer token, used to
// check revocation without storing the token itself.
func (s *SsoSessionStore) GetByJWTHash(ctx context.Context, jwtHash string) (SsoSessionRow, error) {
	row := s.db.QueryRow(ctx, `SELECT `+ssoSessionColumns+` FROM sso_sessions WHERE jwt_hash = $1`, jwtHash)
	r, err := scanSsoSessionRow(row)
	if err != nil {
		return SsoSessionRow{}, Translate(err)
	}
	return r, nil
}

// Revoke marks a session revoked, used by logout.
func (s *SsoSessionStore) Revoke(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `UPDATE sso_sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoking sso session: %w", Translate(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpiredBefore purges sessions that expired before cutoff, for the
// hourly session-sweep background worker.
func (s *SsoSessionStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM sso_sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweeping expired sso sessions: %w", Translate(err))
	}
	return tag.RowsAffected(), nil
}
