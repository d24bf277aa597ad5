package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRole enumerates the roles a principal can hold.
type UserRole string

const (
	RoleDeveloper   UserRole = "developer"
	RoleStakeholder UserRole = "stakeholder"
	RoleAdmin       UserRole = "admin"
)

// UserStatus enumerates user lifecycle states.
type UserStatus string

const (
	UserStatusActive     UserStatus = "active"
	UserStatusInactive   UserStatus = "inactive"
	UserStatusSuspended  UserStatus = "suspended"
)

// UserRow is the persisted shape of a User. Exactly one of CustomerID or
// ServiceIntegratorID is non-nil.
type UserRow struct {
	ID                  uuid.UUID
	CustomerID          *uuid.UUID
	ServiceIntegratorID *uuid.UUID
	HashedUserID        string
	RawMachineID        *string
	DisplayName         *string
	Email               *string
	Role                UserRole
	Status              UserStatus
	LastLoginAt         *time.Time
	LastSeenIP          *string
	LastSeenUA          *string
	CreatedAt           time.Time
}

const userColumns = `id, customer_id, service_integrator_id, hashed_user_id, raw_machine_id, display_name,
	email, role, status, last_login_at, last_seen_ip, last_seen_ua, created_at`

// UserStore provides database operations for users.
type UserStore struct {
	db DBTX
}

// NewUserStore creates a Store backed by db.
func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

func scanUserRow(row pgx.Row) (UserRow, error) {
	var r UserRow
	err := row.Scan(
		&r.ID, &r.CustomerID, &r.ServiceIntegratorID, &r.HashedUserID, &r.RawMachineID, &r.DisplayName,
		&r.Email, &r.Role, &r.Status, &r.LastLoginAt, &r.LastSeenIP, &r.LastSeenUA, &r.CreatedAt,
	)
	return r, err
}

// GetByHashedID looks up a user by (owner, hashedUserID). Exactly one of
// customerID/siID should be set by the caller.
func (s *UserStore) GetByHashedID(ctx context.Context, customerID, siID *uuid.UUID, hashedUserID string) (UserRow, error) {
	var row pgx.Row
	if customerID != nil {
		row = s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE customer_id = $1 AND hashed_user_id = $2`, *customerID, hashedUserID)
	} else {
		row = s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE service_integrator_id = $1 AND hashed_user_id = $2`, *siID, hashedUserID)
	}
	r, err := scanUserRow(row)
	if err != nil {
		return UserRow{}, Translate(err)
	}
	return r, nil
}

// UpsertUserParams describes a user record to create or refresh on login.
type UpsertUserParams struct {
	CustomerID          *uuid.UUID
	ServiceIntegratorID *uuid.UUID
	HashedUserID        string
	RawMachineID        *string
	DisplayName         *string
	Email               *string
	Role                UserRole
	IP                  *string
	UserAgent           *string
}

// Upsert creates a user row or refreshes login/last-seen metadata on an
// existing one, keyed by (owner, hashedUserID).
func (s *UserStore) Upsert(ctx context.Context, p UpsertUserParams) (UserRow, error) {
	query := `INSERT INTO users (customer_id, service_integrator_id, hashed_user_id, raw_machine_id, display_name, email, role, status, last_login_at, last_seen_ip, last_seen_ua)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'active', now(), $8, $9)
		ON CONFLICT (customer_id, service_integrator_id, hashed_user_id) DO UPDATE SET
			raw_machine_id = COALESCE(EXCLUDED.raw_machine_id, users.raw_machine_id),
			display_name = COALESCE(EXCLUDED.display_name, users.display_name),
			email = COALESCE(EXCLUDED.email, users.email),
			last_login_at = now(),
			last_seen_ip = EXCLUDED.last_seen_ip,
			last_seen_ua = EXCLUDED.last_seen_ua
		RETURNING ` + userColumns

	row := s.db.QueryRow(ctx, query,
		p.CustomerID, p.ServiceIntegratorID, p.HashedUserID, p.RawMachineID, p.DisplayName, p.Email, p.Role,
		p.IP, p.UserAgent,
	)
	r, err := scanUserRow(row)
	if err != nil {
		return UserRow{}, fmt.Errorf("upserting user: %w", Translate(err))
	}
	return r, nil
}

// ListByCustomer returns all users belonging to a customer.
func (s *UserStore) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]UserRow, error) {
	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", Translate(err))
	}
	defer rows.Close()

	var items []UserRow
	for rows.Next() {
		r, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}
	return items, nil
}
