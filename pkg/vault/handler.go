package vault

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/snowflow/licensed/internal/auth"
	"github.com/snowflow/licensed/internal/httpserver"
)

// Handler wires the vault's CRUD/test operations to /api/credentials/*.
type Handler struct {
	service *Service
}

// NewHandler builds a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func identityUserID(r *http.Request) *uuid.UUID {
	id := auth.FromContext(r.Context())
	if id == nil {
		return nil
	}
	return id.UserID
}

type secretDTO struct {
	Value    *string `json:"value,omitempty"`
	Redacted bool    `json:"redacted,omitempty"`
}

func toSecretDTO(f SecretField) *secretDTO {
	switch f.State {
	case SecretPresent:
		v := f.Value
		return &secretDTO{Value: &v}
	case SecretRedacted:
		return &secretDTO{Redacted: true}
	default:
		return nil
	}
}

type credentialDTO struct {
	ID              string     `json:"id"`
	Service         string     `json:"service"`
	CredentialType  string     `json:"credentialType"`
	AccessToken     *secretDTO `json:"accessToken,omitempty"`
	RefreshToken    *secretDTO `json:"refreshToken,omitempty"`
	ApiToken        *secretDTO `json:"apiToken,omitempty"`
	Password        *secretDTO `json:"password,omitempty"`
	BaseURL         *string    `json:"baseUrl,omitempty"`
	Email           *string    `json:"email,omitempty"`
	ClientID        *string    `json:"clientId,omitempty"`
	Scope           *string    `json:"scope,omitempty"`
	TokenType       *string    `json:"tokenType,omitempty"`
	ExpiresAt       *string    `json:"expiresAt,omitempty"`
	Enabled         bool       `json:"enabled"`
	LastUsedAt      *string    `json:"lastUsedAt,omitempty"`
	LastRefreshedAt *string    `json:"lastRefreshedAt,omitempty"`
	LastTestedAt    *string    `json:"lastTestedAt,omitempty"`
	LastTestOK      *bool      `json:"lastTestOk,omitempty"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func toCredentialDTO(c Credential) credentialDTO {
	return credentialDTO{
		ID:              c.ID.String(),
		Service:         c.Service,
		CredentialType:  string(c.CredentialType),
		AccessToken:     toSecretDTO(c.AccessToken),
		RefreshToken:    toSecretDTO(c.RefreshToken),
		ApiToken:        toSecretDTO(c.ApiToken),
		Password:        toSecretDTO(c.Password),
		BaseURL:         c.BaseURL,
		Email:           c.Email,
		ClientID:        c.ClientID,
		Scope:           c.Scope,
		TokenType:       c.TokenType,
		ExpiresAt:       formatTime(c.ExpiresAt),
		Enabled:         c.Enabled,
		LastUsedAt:      formatTime(c.LastUsedAt),
		LastRefreshedAt: formatTime(c.LastRefreshedAt),
		LastTestedAt:    formatTime(c.LastTestedAt),
		LastTestOK:      c.LastTestOK,
	}
}

// List handles GET /api/credentials, every credential stored for the caller
// regardless of service.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	cust, ok := auth.CustomerFromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
		return
	}

	creds, err := h.service.List(r.Context(), cust.ID)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "listing credentials failed")
		return
	}
	out := make([]credentialDTO, len(creds))
	for i, c := range creds {
		out[i] = toCredentialDTO(c)
	}
	httpserver.Respond(w, http.StatusOK, out)
}

type putCredentialRequest struct {
	CredentialType string  `json:"credentialType" validate:"required"`
	AccessToken    *string `json:"accessToken,omitempty"`
	RefreshToken   *string `json:"refreshToken,omitempty"`
	ApiToken       *string `json:"apiToken,omitempty"`
	Password       *string `json:"password,omitempty"`
	BaseURL        *string `json:"baseUrl,omitempty"`
	Email          *string `json:"email,omitempty"`
	ClientID       *string `json:"clientId,omitempty"`
	Scope          *string `json:"scope,omitempty"`
	TokenType      *string `json:"tokenType,omitempty"`
	ExpiresAt      *string `json:"expiresAt,omitempty"`
}

// Put handles POST /api/credentials/{service}, creating or overwriting the
// credential stored for that service.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	cust, ok := auth.CustomerFromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
		return
	}
	service := chi.URLParam(r, "service")

	var body putCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if body.CredentialType == "" {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "credentialType is required")
		return
	}

	var expiresAt *time.Time
	if body.ExpiresAt != nil {
		parsed, err := time.Parse(time.RFC3339, *body.ExpiresAt)
		if err != nil {
			httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "expiresAt must be RFC3339")
			return
		}
		expiresAt = &parsed
	}

	actor := identityUserID(r)
	cred, err := h.service.Put(r.Context(), cust.ID, service, PutParams{
		CredentialType: CredentialType(body.CredentialType),
		AccessToken:    body.AccessToken,
		RefreshToken:   body.RefreshToken,
		ApiToken:       body.ApiToken,
		Password:       body.Password,
		BaseURL:        body.BaseURL,
		Email:          body.Email,
		ClientID:       body.ClientID,
		Scope:          body.Scope,
		TokenType:      body.TokenType,
		ExpiresAt:      expiresAt,
	}, actor)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, toCredentialDTO(cred))
}

// Delete handles DELETE /api/credentials/{service}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	cust, ok := auth.CustomerFromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
		return
	}
	service := chi.URLParam(r, "service")

	if err := h.service.Delete(r.Context(), cust.ID, service, identityUserID(r)); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusNoContent, nil)
}

// Get handles GET /api/credentials/{service}, the only operation that
// returns decrypted values; each call appends an "accessed" audit row.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	cust, ok := auth.CustomerFromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
		return
	}
	service := chi.URLParam(r, "service")

	got, err := h.service.Get(r.Context(), cust.ID, service, identityUserID(r))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, toCredentialDTO(got))
}

type testResultRequest struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Test handles POST /api/credentials/{service}/test, recording the result
// of an out-of-band connectivity probe run by the caller.
func (h *Handler) Test(w http.ResponseWriter, r *http.Request) {
	cust, ok := auth.CustomerFromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
		return
	}
	service := chi.URLParam(r, "service")

	var body testResultRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	if err := h.service.RecordTestResult(r.Context(), cust.ID, service, body.OK, body.Message, identityUserID(r)); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]bool{"ok": body.OK})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var vaultErr *Error
	if errors.As(err, &vaultErr) {
		httpserver.RespondError(w, vaultErr.Status, string(vaultErr.Code), vaultErr.Message)
		return
	}
	httpserver.RespondError(w, http.StatusInternalServerError, "internal", "credential operation failed")
}
