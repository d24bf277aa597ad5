package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ThemeRow is one white-label presentation theme a ServiceIntegrator can
// apply across its customers.
type ThemeRow struct {
	ID                  uuid.UUID
	ServiceIntegratorID uuid.UUID
	Name                string
	LogoURL             *string
	PrimaryColor        *string
	SecondaryColor      *string
	SupportEmail        *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

const themeColumns = `id, service_integrator_id, name, logo_url, primary_color, secondary_color, support_email, created_at, updated_at`

// ThemeStore provides database operations for white-label themes.
type ThemeStore struct {
	db DBTX
}

// NewThemeStore creates a Store backed by db (pool or tx).
func NewThemeStore(db DBTX) *ThemeStore {
	return &ThemeStore{db: db}
}

func scanThemeRow(row pgx.Row) (ThemeRow, error) {
	var r ThemeRow
	err := row.Scan(
		&r.ID, &r.ServiceIntegratorID, &r.Name, &r.LogoURL, &r.PrimaryColor,
		&r.SecondaryColor, &r.SupportEmail, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

// GetByID fetches a theme by primary key.
func (s *ThemeStore) GetByID(ctx context.Context, id uuid.UUID) (ThemeRow, error) {
	row := s.db.QueryRow(ctx, `SELECT `+themeColumns+` FROM themes WHERE id = $1`, id)
	r, err := scanThemeRow(row)
	if err != nil {
		return ThemeRow{}, Translate(err)
	}
	return r, nil
}

// ListByServiceIntegrator returns all themes owned by an SI.
func (s *ThemeStore) ListByServiceIntegrator(ctx context.Context, siID uuid.UUID) ([]ThemeRow, error) {
	rows, err := s.db.Query(ctx, `SELECT `+themeColumns+` FROM themes WHERE service_integrator_id = $1 ORDER BY name`, siID)
	if err != nil {
		return nil, fmt.Errorf("listing themes: %w", Translate(err))
	}
	defer rows.Close()

	var items []ThemeRow
	for rows.Next() {
		r, err := scanThemeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning theme row: %w", err)
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// CreateThemeParams holds fields for inserting a new theme.
type CreateThemeParams struct {
	ServiceIntegratorID uuid.UUID
	Name                string
	LogoURL             *string
	PrimaryColor        *string
	SecondaryColor      *string
	SupportEmail        *string
}

// Create inserts a new theme and returns the created row.
func (s *ThemeStore) Create(ctx context.Context, p CreateThemeParams) (ThemeRow, error) {
	query := `INSERT INTO themes (id, service_integrator_id, name, logo_url, primary_color, secondary_color, support_email, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, now(), now())
		RETURNING ` + themeColumns

	row := s.db.QueryRow(ctx, query, p.ServiceIntegratorID, p.Name, p.LogoURL, p.PrimaryColor, p.SecondaryColor, p.SupportEmail)
	r, err := scanThemeRow(row)
	if err != nil {
		return ThemeRow{}, fmt.Errorf("creating theme: %w", Translate(err))
	}
	return r, nil
}

// UpdateThemeParams holds fields for updating an existing theme.
type UpdateThemeParams struct {
	ID             uuid.UUID
	Name           string
	LogoURL        *string
	PrimaryColor   *string
	SecondaryColor *string
	SupportEmail   *string
}

// Update overwrites a theme's display fields.
func (s *ThemeStore) Update(ctx context.Context, p UpdateThemeParams) (ThemeRow, error) {
	query := `UPDATE themes SET name = $2, logo_url = $3, primary_color = $4, secondary_color = $5, support_email = $6, updated_at = now()
		WHERE id = $1
		RETURNING ` + themeColumns

	row := s.db.QueryRow(ctx, query, p.ID, p.Name, p.LogoURL, p.PrimaryColor, p.SecondaryColor, p.SupportEmail)
	r, err := scanThemeRow(row)
	if err != nil {
		return ThemeRow{}, fmt.Errorf("updating theme: %w", Translate(err))
	}
	return r, nil
}

// Delete removes a theme by primary key.
func (s *ThemeStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM themes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting theme: %w", Translate(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
