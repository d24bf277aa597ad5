package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CustomerStatus enumerates the lifecycle states of a customer org.
type CustomerStatus string

const (
	CustomerStatusActive    CustomerStatus = "active"
	CustomerStatusSuspended CustomerStatus = "suspended"
	CustomerStatusChurned   CustomerStatus = "churned"
)

// CustomerRow is the persisted shape of a Customer. Seat totals use the -1
// sentinel for unlimited at this boundary only; callers should convert
// to/from license.SeatLimit immediately after scanning.
type CustomerRow struct {
	ID                     uuid.UUID
	ServiceIntegratorID    uuid.UUID
	DisplayName            string
	ContactEmail           string
	LicenseKey             string
	ThemeID                *uuid.UUID
	DeveloperSeats         int
	StakeholderSeats       int
	ActiveDeveloperSeats   int
	ActiveStakeholderSeats int
	SeatLimitsEnforced     bool
	Status                 CustomerStatus
	APICallCount           int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

const customerColumns = `id, service_integrator_id, display_name, contact_email, license_key, theme_id,
	developer_seats, stakeholder_seats, active_developer_seats, active_stakeholder_seats,
	seat_limits_enforced, status, api_call_count, created_at, updated_at`

// CustomerStore provides database operations for customers.
type CustomerStore struct {
	db DBTX
}

// NewCustomerStore creates a Store backed by db (pool or tx).
func NewCustomerStore(db DBTX) *CustomerStore {
	return &CustomerStore{db: db}
}

func scanCustomerRow(row pgx.Row) (CustomerRow, error) {
	var r CustomerRow
	err := row.Scan(
		&r.ID, &r.ServiceIntegratorID, &r.DisplayName, &r.ContactEmail, &r.LicenseKey, &r.ThemeID,
		&r.DeveloperSeats, &r.StakeholderSeats, &r.ActiveDeveloperSeats, &r.ActiveStakeholderSeats,
		&r.SeatLimitsEnforced, &r.Status, &r.APICallCount, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

// GetByID fetches a customer by primary key.
func (s *CustomerStore) GetByID(ctx context.Context, id uuid.UUID) (CustomerRow, error) {
	row := s.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	r, err := scanCustomerRow(row)
	if err != nil {
		return CustomerRow{}, Translate(err)
	}
	return r, nil
}

// GetByIDForUpdate fetches a customer by primary key with a row lock,
// letting callers serialize concurrent admission checks against the same
// customer ("an implementation MAY use SELECT … FOR UPDATE on the customer
// row to enforce strict bounding"). Must be called within a transaction.
func (s *CustomerStore) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (CustomerRow, error) {
	row := s.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR UPDATE`, id)
	r, err := scanCustomerRow(row)
	if err != nil {
		return CustomerRow{}, Translate(err)
	}
	return r, nil
}

// GetByLicenseKey fetches a customer by its license key.
func (s *CustomerStore) GetByLicenseKey(ctx context.Context, key string) (CustomerRow, error) {
	row := s.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE license_key = $1`, key)
	r, err := scanCustomerRow(row)
	if err != nil {
		return CustomerRow{}, Translate(err)
	}
	return r, nil
}

// CreateCustomerParams holds fields for inserting a new customer.
type CreateCustomerParams struct {
	ServiceIntegratorID uuid.UUID
	DisplayName         string
	ContactEmail        string
	LicenseKey          string
	ThemeID             *uuid.UUID
	DeveloperSeats      int
	StakeholderSeats    int
	SeatLimitsEnforced  bool
	Status              CustomerStatus
}

// Create inserts a new customer and returns the created row.
func (s *CustomerStore) Create(ctx context.Context, p CreateCustomerParams) (CustomerRow, error) {
	status := p.Status
	if status == "" {
		status = CustomerStatusActive
	}

	query := `INSERT INTO customers (service_integrator_id, display_name, contact_email, license_key, theme_id,
			developer_seats, stakeholder_seats, seat_limits_enforced, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + customerColumns

	row := s.db.QueryRow(ctx, query,
		p.ServiceIntegratorID, p.DisplayName, p.ContactEmail, p.LicenseKey, p.ThemeID,
		p.DeveloperSeats, p.StakeholderSeats, p.SeatLimitsEnforced, status,
	)
	r, err := scanCustomerRow(row)
	if err != nil {
		return CustomerRow{}, fmt.Errorf("creating customer: %w", Translate(err))
	}
	return r, nil
}

// UpdateActiveSeats persists the live seat counters a caller has just
// recounted for a customer. The seat service calls it within the same
// transaction as the ActiveConnection write that triggered the recount; the
// reaper calls it per customer outside any transaction.
func (s *CustomerStore) UpdateActiveSeats(ctx context.Context, id uuid.UUID, activeDeveloper, activeStakeholder int) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE customers SET active_developer_seats = $2, active_stakeholder_seats = $3, updated_at = now() WHERE id = $1`,
		id, activeDeveloper, activeStakeholder,
	)
	if err != nil {
		return fmt.Errorf("updating active seats: %w", Translate(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementAPICallCount bumps the rolling API-call counter by one.
func (s *CustomerStore) IncrementAPICallCount(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE customers SET api_call_count = api_call_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("incrementing api call count: %w", Translate(err))
	}
	return nil
}

// UpdateStatus transitions a customer's status.
func (s *CustomerStore) UpdateStatus(ctx context.Context, id uuid.UUID, status CustomerStatus) error {
	tag, err := s.db.Exec(ctx, `UPDATE customers SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("updating customer status: %w", Translate(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByServiceIntegrator returns all customers belonging to an SI.
func (s *CustomerStore) ListByServiceIntegrator(ctx context.Context, siID uuid.UUID) ([]CustomerRow, error) {
	rows, err := s.db.Query(ctx, `SELECT `+customerColumns+` FROM customers WHERE service_integrator_id = $1 ORDER BY created_at DESC`, siID)
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", Translate(err))
	}
	defer rows.Close()

	var items []CustomerRow
	for rows.Next() {
		r, err := scanCustomerRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning customer row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating customer rows: %w", err)
	}
	return items, nil
}

// List returns all customers, for admin listing endpoints.
func (s *CustomerStore) List(ctx context.Context) ([]CustomerRow, error) {
	rows, err := s.db.Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", Translate(err))
	}
	defer rows.Close()

	var items []CustomerRow
	for rows.Next() {
		r, err := scanCustomerRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning customer row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating customer rows: %w", err)
	}
	return items, nil
}
