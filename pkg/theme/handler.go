package theme

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/snowflow/licensed/internal/auth"
	"github.com/snowflow/licensed/internal/httpserver"
	"github.com/snowflow/licensed/internal/store"
)

// Handler wires theme CRUD to /api/themes/*. Every operation is scoped to
// the caller's ServiceIntegrator, resolved from the authenticated Identity.
type Handler struct {
	service *Service
}

// NewHandler builds a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func serviceIntegratorID(r *http.Request) (uuid.UUID, bool) {
	id := auth.FromContext(r.Context())
	if id == nil || id.ServiceIntegratorID == nil {
		return uuid.UUID{}, false
	}
	return *id.ServiceIntegratorID, true
}

type themeDTO struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	LogoURL        *string `json:"logoUrl,omitempty"`
	PrimaryColor   *string `json:"primaryColor,omitempty"`
	SecondaryColor *string `json:"secondaryColor,omitempty"`
	SupportEmail   *string `json:"supportEmail,omitempty"`
}

func toThemeDTO(r store.ThemeRow) themeDTO {
	return themeDTO{
		ID:             r.ID.String(),
		Name:           r.Name,
		LogoURL:        r.LogoURL,
		PrimaryColor:   r.PrimaryColor,
		SecondaryColor: r.SecondaryColor,
		SupportEmail:   r.SupportEmail,
	}
}

// List handles GET /api/themes.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	siID, ok := serviceIntegratorID(r)
	if !ok {
		httpserver.RespondError(w, http.StatusForbidden, "forbidden", "theme management requires a service integrator identity")
		return
	}

	rows, err := h.service.List(r.Context(), siID)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "listing themes failed")
		return
	}
	out := make([]themeDTO, len(rows))
	for i, row := range rows {
		out[i] = toThemeDTO(row)
	}
	httpserver.Respond(w, http.StatusOK, out)
}

// Get handles GET /api/themes/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	siID, ok := serviceIntegratorID(r)
	if !ok {
		httpserver.RespondError(w, http.StatusForbidden, "forbidden", "theme management requires a service integrator identity")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid theme id")
		return
	}

	row, err := h.service.Get(r.Context(), siID, id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, toThemeDTO(row))
}

type themeRequest struct {
	Name           string  `json:"name" validate:"required"`
	LogoURL        *string `json:"logoUrl,omitempty"`
	PrimaryColor   *string `json:"primaryColor,omitempty"`
	SecondaryColor *string `json:"secondaryColor,omitempty"`
	SupportEmail   *string `json:"supportEmail,omitempty"`
}

// Create handles POST /api/themes.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	siID, ok := serviceIntegratorID(r)
	if !ok {
		httpserver.RespondError(w, http.StatusForbidden, "forbidden", "theme management requires a service integrator identity")
		return
	}

	var body themeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if body.Name == "" {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}

	row, err := h.service.Create(r.Context(), siID, CreateParams{
		Name:           body.Name,
		LogoURL:        body.LogoURL,
		PrimaryColor:   body.PrimaryColor,
		SecondaryColor: body.SecondaryColor,
		SupportEmail:   body.SupportEmail,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, toThemeDTO(row))
}

// Update handles PUT /api/themes/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	siID, ok := serviceIntegratorID(r)
	if !ok {
		httpserver.RespondError(w, http.StatusForbidden, "forbidden", "theme management requires a service integrator identity")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid theme id")
		return
	}

	var body themeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if body.Name == "" {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}

	row, err := h.service.Update(r.Context(), siID, id, UpdateParams{
		Name:           body.Name,
		LogoURL:        body.LogoURL,
		PrimaryColor:   body.PrimaryColor,
		SecondaryColor: body.SecondaryColor,
		SupportEmail:   body.SupportEmail,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, toThemeDTO(row))
}

// Delete handles DELETE /api/themes/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	siID, ok := serviceIntegratorID(r)
	if !ok {
		httpserver.RespondError(w, http.StatusForbidden, "forbidden", "theme management requires a service integrator identity")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid theme id")
		return
	}

	if err := h.service.Delete(r.Context(), siID, id); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusNoContent, nil)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var themeErr *Error
	if errors.As(err, &themeErr) {
		httpserver.RespondError(w, themeErr.Status, string(themeErr.Code), themeErr.Message)
		return
	}
	httpserver.RespondError(w, http.StatusInternalServerError, "internal", "theme operation failed")
}
