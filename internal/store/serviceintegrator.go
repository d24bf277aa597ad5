package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ServiceIntegratorStatus enumerates the lifecycle states of a reseller tenant.
type ServiceIntegratorStatus string

const (
	SIStatusActive    ServiceIntegratorStatus = "active"
	SIStatusSuspended ServiceIntegratorStatus = "suspended"
	SIStatusChurned   ServiceIntegratorStatus = "churned"
)

// ServiceIntegratorRow is the persisted shape of a ServiceIntegrator.
type ServiceIntegratorRow struct {
	ID                uuid.UUID
	CompanyName       string
	ContactEmail      string
	BillingEmail      string
	MasterLicenseKey  string
	WhiteLabelConfig  []byte // raw JSON, nullable
	Status            ServiceIntegratorStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const siColumns = `id, company_name, contact_email, billing_email, master_license_key, white_label_config, status, created_at, updated_at`

// ServiceIntegratorStore provides database operations for service integrators.
type ServiceIntegratorStore struct {
	db DBTX
}

// NewServiceIntegratorStore creates a Store backed by db (pool or tx).
func NewServiceIntegratorStore(db DBTX) *ServiceIntegratorStore {
	return &ServiceIntegratorStore{db: db}
}

func scanServiceIntegratorRow(row pgx.Row) (ServiceIntegratorRow, error) {
	var r ServiceIntegratorRow
	var whiteLabel []byte
	err := row.Scan(
		&r.ID, &r.CompanyName, &r.ContactEmail, &r.BillingEmail, &r.MasterLicenseKey,
		&whiteLabel, &r.Status, &r.CreatedAt, &r.UpdatedAt,
	)
	r.WhiteLabelConfig = whiteLabel
	return r, err
}

// GetByID fetches a service integrator by primary key.
func (s *ServiceIntegratorStore) GetByID(ctx context.Context, id uuid.UUID) (ServiceIntegratorRow, error) {
	row := s.db.QueryRow(ctx, `SELECT `+siColumns+` FROM service_integrators WHERE id = $1`, id)
	r, err := scanServiceIntegratorRow(row)
	if err != nil {
		return ServiceIntegratorRow{}, Translate(err)
	}
	return r, nil
}

// GetByMasterLicenseKey fetches a service integrator by its master key.
func (s *ServiceIntegratorStore) GetByMasterLicenseKey(ctx context.Context, key string) (ServiceIntegratorRow, error) {
	row := s.db.QueryRow(ctx, `SELECT `+siColumns+` FROM service_integrators WHERE master_license_key = $1`, key)
	r, err := scanServiceIntegratorRow(row)
	if err != nil {
		return ServiceIntegratorRow{}, Translate(err)
	}
	return r, nil
}

// CreateServiceIntegratorParams holds fields for inserting a new service integrator.
type CreateServiceIntegratorParams struct {
	CompanyName      string
	ContactEmail     string
	BillingEmail     string
	MasterLicenseKey string
	WhiteLabelConfig []byte
	Status           ServiceIntegratorStatus
}

// Create inserts a new service integrator and returns the created row.
func (s *ServiceIntegratorStore) Create(ctx context.Context, p CreateServiceIntegratorParams) (ServiceIntegratorRow, error) {
	var whiteLabel any
	if p.WhiteLabelConfig != nil {
		whiteLabel = p.WhiteLabelConfig
	}
	status := p.Status
	if status == "" {
		status = SIStatusActive
	}

	query := `INSERT INTO service_integrators (company_name, contact_email, billing_email, master_license_key, white_label_config, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + siColumns

	row := s.db.QueryRow(ctx, query, p.CompanyName, p.ContactEmail, p.BillingEmail, p.MasterLicenseKey, whiteLabel, status)
	r, err := scanServiceIntegratorRow(row)
	if err != nil {
		return ServiceIntegratorRow{}, fmt.Errorf("creating service integrator: %w", Translate(err))
	}
	return r, nil
}

// UpdateStatus transitions a service integrator's status.
func (s *ServiceIntegratorStore) UpdateStatus(ctx context.Context, id uuid.UUID, status ServiceIntegratorStatus) error {
	tag, err := s.db.Exec(ctx, `UPDATE service_integrators SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("updating service integrator status: %w", Translate(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all service integrators ordered by creation time.
func (s *ServiceIntegratorStore) List(ctx context.Context) ([]ServiceIntegratorRow, error) {
	rows, err := s.db.Query(ctx, `SELECT `+siColumns+` FROM service_integrators ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing service integrators: %w", Translate(err))
	}
	defer rows.Close()

	var items []ServiceIntegratorRow
	for rows.Next() {
		r, err := scanServiceIntegratorRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning service integrator row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating service integrator rows: %w", err)
	}
	return items, nil
}
