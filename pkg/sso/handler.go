package sso

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/crewjam/saml"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	internalauth "github.com/snowflow/licensed/internal/auth"
	"github.com/snowflow/licensed/internal/httpserver"
	"github.com/snowflow/licensed/internal/store"
)

// Handler implements the SAML SP-initiated login flow, admin session
// minting, and the /sso/* endpoints.
type Handler struct {
	pool          *pgxpool.Pool
	providers     *providerCache
	signer        *sessionSigner
	logger        *slog.Logger
	secureCookies bool
}

// NewHandler builds a Handler. baseURL is this server's externally-visible
// origin, used to build ACS/metadata URLs. jwtSecret signs session tokens.
// secureCookies should be true in production (sets Secure on sso_token).
func NewHandler(pool *pgxpool.Pool, baseURL, jwtSecret string, secureCookies bool, logger *slog.Logger) (*Handler, error) {
	signer, err := newSessionSigner(jwtSecret)
	if err != nil {
		return nil, err
	}
	return &Handler{
		pool:          pool,
		providers:     newProviderCache(baseURL),
		signer:        signer,
		logger:        logger,
		secureCookies: secureCookies,
	}, nil
}

// Login handles GET /sso/login/:customerId, redirecting the browser to the
// IdP's SSO URL with a SAML AuthnRequest.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "customerId"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid customer id")
		return
	}

	sp, _, err := h.providers.get(r.Context(), h.pool, customerID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	redirectURL, err := sp.MakeRedirectAuthenticationRequest(customerID.String())
	if err != nil {
		h.logger.Error("building saml authn request", "error", err, "customerId", customerID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "failed to build SAML request")
		return
	}

	http.Redirect(w, r, redirectURL.String(), http.StatusFound)
}

// Callback handles POST /sso/callback, the SAML ACS endpoint. RelayState
// carries the customer id set by Login, since the assertion alone does not
// name which customer's SsoConfig to validate against.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid form body")
		return
	}
	relayState := r.FormValue("RelayState")
	customerID, err := uuid.Parse(relayState)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "missing or invalid RelayState")
		return
	}

	sp, cfg, err := h.providers.get(r.Context(), h.pool, customerID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	assertion, err := sp.ParseResponse(r, nil)
	if err != nil {
		h.logger.Warn("saml assertion rejected", "error", err, "customerId", customerID)
		h.respondError(w, errAssertionInvalid(err.Error()))
		return
	}

	claims, err := claimsFromAssertion(assertion, customerID, cfg)
	if err != nil {
		h.respondError(w, errAssertionInvalid(err.Error()))
		return
	}

	userRow, err := store.NewUserStore(h.pool).Upsert(r.Context(), store.UpsertUserParams{
		CustomerID:   &customerID,
		HashedUserID: hashNameID(claims.NameID),
		DisplayName:  strPtr(claims.DisplayName),
		Email:        strPtr(claims.Email),
		Role:         store.RoleStakeholder,
		IP:           strPtr(r.RemoteAddr),
		UserAgent:    strPtr(r.UserAgent()),
	})
	if err != nil {
		h.logger.Error("upserting sso user", "error", err, "customerId", customerID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "recording sso login failed")
		return
	}
	claims.UserID = userRow.ID
	claims.Role = roleFromStore(userRow.Role)

	now := time.Now()
	token, err := h.signer.mint(claims, now)
	if err != nil {
		h.logger.Error("minting session token", "error", err, "customerId", customerID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "minting session failed")
		return
	}

	if _, err := store.NewSsoSessionStore(h.pool).Create(r.Context(), store.CreateSsoSessionParams{
		CustomerID: customerID,
		UserID:     userRow.ID,
		Email:      claims.Email,
		Role:       userRow.Role,
		JWTHash:    hashToken(token.Raw),
		IssuedAt:   token.IssuedAt,
		ExpiresAt:  token.ExpiresAt,
	}); err != nil {
		h.logger.Error("persisting sso session", "error", err, "customerId", customerID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "persisting session failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token.Raw,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		Expires:  token.ExpiresAt,
	})
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "authenticated"})
}

// Metadata handles GET /sso/metadata/:customerId, serving this SP's SAML
// metadata XML for the IdP administrator to consume.
func (h *Handler) Metadata(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "customerId"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid customer id")
		return
	}
	sp, _, err := h.providers.get(r.Context(), h.pool, customerID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/samlmetadata+xml")
	if err := xml.NewEncoder(w).Encode(sp.Metadata()); err != nil {
		h.logger.Error("encoding sp metadata", "error", err, "customerId", customerID)
	}
}

// Logout handles POST /sso/logout: revokes the session row, clears the
// cookie, and returns the IdP's single-logout URL for the browser to
// redirect to, if one is configured.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id := internalauth.FromContext(r.Context())
	if id == nil || id.Method != internalauth.MethodSSO {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "no active sso session")
		return
	}

	token := sessionTokenFromRequest(r)
	if token != "" {
		session, err := store.NewSsoSessionStore(h.pool).GetByJWTHash(r.Context(), hashToken(token))
		if err == nil {
			_ = store.NewSsoSessionStore(h.pool).Revoke(r.Context(), session.ID)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
	})
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Verify satisfies internal/auth.SSOVerifier: it checks the JWT's signature
// and expiry, then confirms the session has not been revoked.
func (h *Handler) Verify(ctx context.Context, token string) (internalauth.SSOClaims, error) {
	claims, err := h.signer.verify(token, time.Now())
	if err != nil {
		return internalauth.SSOClaims{}, errSessionRequired()
	}

	session, err := store.NewSsoSessionStore(h.pool).GetByJWTHash(ctx, hashToken(token))
	if err != nil {
		return internalauth.SSOClaims{}, errSessionRequired()
	}
	if session.RevokedAt != nil {
		return internalauth.SSOClaims{}, errSessionRequired()
	}

	return internalauth.SSOClaims{
		CustomerID: claims.CustomerID,
		UserID:     claims.UserID,
		Email:      claims.Email,
		Role:       store.UserRole(claims.Role),
	}, nil
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var ssoErr *Error
	if errors.As(err, &ssoErr) {
		httpserver.RespondError(w, ssoErr.Status, string(ssoErr.Code), ssoErr.Message)
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		httpserver.RespondError(w, http.StatusNotFound, string(CodeConfigNotFound), "no SSO configuration for this customer")
		return
	}
	h.logger.Error("sso request failed", "error", err)
	httpserver.RespondError(w, http.StatusInternalServerError, "internal", "sso request failed")
}

// claimsFromAssertion extracts NameID, session index and the attribute
// statement from a validated assertion, mapping attribute names to claim
// fields per SsoConfig.AttributeMapping (a flat {claim: idpAttributeName}
// JSON object; "email" and "displayName" fall back to those literal
// attribute names when no mapping is configured).
func claimsFromAssertion(assertion *saml.Assertion, customerID uuid.UUID, cfg store.SsoConfigRow) (Claims, error) {
	if assertion.Subject == nil || assertion.Subject.NameID == nil {
		return Claims{}, errAssertionInvalid("missing subject NameID")
	}

	mapping := map[string]string{"email": "email", "displayName": "displayName"}
	if len(cfg.AttributeMapping) > 0 {
		var custom map[string]string
		if err := json.Unmarshal(cfg.AttributeMapping, &custom); err == nil {
			for k, v := range custom {
				mapping[k] = v
			}
		}
	}

	attrs := make(map[string]string)
	for _, stmt := range assertion.AttributeStatements {
		for _, attr := range stmt.Attributes {
			if len(attr.Values) == 0 {
				continue
			}
			attrs[attr.Name] = attr.Values[0].Value
			if attr.FriendlyName != "" {
				attrs[attr.FriendlyName] = attr.Values[0].Value
			}
		}
	}

	var sessionIndex string
	if len(assertion.AuthnStatements) > 0 {
		sessionIndex = assertion.AuthnStatements[0].SessionIndex
	}

	return Claims{
		CustomerID:   customerID,
		Email:        attrs[mapping["email"]],
		DisplayName:  attrs[mapping["displayName"]],
		NameID:       assertion.Subject.NameID.Value,
		SessionIndex: sessionIndex,
		Attributes:   attrs,
	}, nil
}

func hashNameID(nameID string) string {
	sum := sha256.Sum256([]byte(nameID))
	return hex.EncodeToString(sum[:])
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func sessionTokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && (h[:7] == "Bearer " || h[:7] == "bearer ") {
		return h[7:]
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
