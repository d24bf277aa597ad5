package theme

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snowflow/licensed/internal/store"
)

// Service enforces that a ServiceIntegrator can only read or write its own
// themes; internal/store.ThemeStore itself has no notion of a caller.
type Service struct {
	db *pgxpool.Pool
}

// NewService builds a Service.
func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// List returns every theme owned by siID.
func (s *Service) List(ctx context.Context, siID uuid.UUID) ([]store.ThemeRow, error) {
	rows, err := store.NewThemeStore(s.db).ListByServiceIntegrator(ctx, siID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Get returns a theme by id, scoped to siID.
func (s *Service) Get(ctx context.Context, siID, id uuid.UUID) (store.ThemeRow, error) {
	row, err := store.NewThemeStore(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ThemeRow{}, errNotFound()
		}
		return store.ThemeRow{}, err
	}
	if row.ServiceIntegratorID != siID {
		return store.ThemeRow{}, errForbidden()
	}
	return row, nil
}

// CreateParams is the caller-facing input for Create.
type CreateParams struct {
	Name           string
	LogoURL        *string
	PrimaryColor   *string
	SecondaryColor *string
	SupportEmail   *string
}

// Create inserts a new theme owned by siID.
func (s *Service) Create(ctx context.Context, siID uuid.UUID, p CreateParams) (store.ThemeRow, error) {
	return store.NewThemeStore(s.db).Create(ctx, store.CreateThemeParams{
		ServiceIntegratorID: siID,
		Name:                p.Name,
		LogoURL:             p.LogoURL,
		PrimaryColor:        p.PrimaryColor,
		SecondaryColor:      p.SecondaryColor,
		SupportEmail:        p.SupportEmail,
	})
}

// UpdateParams is the caller-facing input for Update.
type UpdateParams struct {
	Name           string
	LogoURL        *string
	PrimaryColor   *string
	SecondaryColor *string
	SupportEmail   *string
}

// Update overwrites a theme's display fields, after confirming siID owns it.
func (s *Service) Update(ctx context.Context, siID, id uuid.UUID, p UpdateParams) (store.ThemeRow, error) {
	if _, err := s.Get(ctx, siID, id); err != nil {
		return store.ThemeRow{}, err
	}
	return store.NewThemeStore(s.db).Update(ctx, store.UpdateThemeParams{
		ID:             id,
		Name:           p.Name,
		LogoURL:        p.LogoURL,
		PrimaryColor:   p.PrimaryColor,
		SecondaryColor: p.SecondaryColor,
		SupportEmail:   p.SupportEmail,
	})
}

// Delete removes a theme, after confirming siID owns it.
func (s *Service) Delete(ctx context.Context, siID, id uuid.UUID) error {
	if _, err := s.Get(ctx, siID, id); err != nil {
		return err
	}
	if err := store.NewThemeStore(s.db).Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errNotFound()
		}
		return err
	}
	return nil
}
