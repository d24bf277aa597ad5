package auth

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/snowflow/licensed/internal/store"
	"github.com/snowflow/licensed/pkg/license"
)

// SSOVerifier validates a bearer/cookie token minted by the SSO package and
// returns the claims embedded in it. Declared here instead of importing
// pkg/sso directly so this package carries no SAML/JWT dependency of its
// own; pkg/sso satisfies this interface.
type SSOVerifier interface {
	Verify(ctx context.Context, token string) (SSOClaims, error)
}

// SSOClaims mirrors the claims embedded in the sso_token JWT.
type SSOClaims struct {
	CustomerID uuid.UUID
	UserID     uuid.UUID
	Email      string
	Role       Role
}

// LicenseKeyMiddleware authenticates /mcp/* requests by the bearer license
// key, resolving and attaching the owning Customer. It does not determine
// the caller's seat role; pkg/seat derives that from the connect request
// body, where the client declares which seat (developer or stakeholder) it
// is claiming.
func LicenseKeyMiddleware(customers *store.CustomerStore, licenseSecret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				respondErr(w, http.StatusUnauthorized, "unauthorized", "missing license key")
				return
			}

			if _, err := license.Parse(raw, licenseSecret, license.ParseOptions{EnforceExpiry: true, Now: time.Now()}); err != nil {
				logger.Warn("license key rejected", "error", err)
				respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid or expired license key")
				return
			}

			cust, err := customers.GetByLicenseKey(r.Context(), raw)
			if err != nil {
				logger.Warn("license key has no matching customer", "error", err)
				respondErr(w, http.StatusUnauthorized, "unauthorized", "license key not recognized")
				return
			}
			if cust.Status != store.CustomerStatusActive {
				respondErr(w, http.StatusForbidden, "forbidden", "customer account is not active")
				return
			}

			identity := &Identity{
				CustomerID: &cust.ID,
				Method:     MethodLicenseKey,
			}

			ctx := NewContext(r.Context(), identity)
			ctx = context.WithValue(ctx, customerRowKey{}, cust)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type customerRowKey struct{}

// CustomerFromContext returns the Customer row resolved by
// LicenseKeyMiddleware, if present.
func CustomerFromContext(ctx context.Context) (store.CustomerRow, bool) {
	c, ok := ctx.Value(customerRowKey{}).(store.CustomerRow)
	return c, ok
}

// AdminMiddleware authenticates /api/* requests via, in order: the operator
// master key (X-Admin-Key matching cfg.AdminKey), an opaque SI or customer
// admin license key, or an SSO session token (Authorization bearer or the
// sso_token cookie).
func AdminMiddleware(customers *store.CustomerStore, serviceIntegrators *store.ServiceIntegratorStore, sso SSOVerifier, adminKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var identity *Identity

			if key := r.Header.Get("X-Admin-Key"); key != "" {
				switch {
				case adminKey != "" && hmac.Equal([]byte(key), []byte(adminKey)):
					identity = &Identity{Role: RoleAdmin, Method: MethodAdminKey}
				case license.IsOpaqueSIKey(key):
					si, err := serviceIntegrators.GetByMasterLicenseKey(r.Context(), key)
					if err != nil {
						respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid admin key")
						return
					}
					identity = &Identity{ServiceIntegratorID: &si.ID, Role: RoleAdmin, Method: MethodOpaqueKey}
				case license.IsOpaqueCustomerKey(key):
					cust, err := customers.GetByLicenseKey(r.Context(), key)
					if err != nil {
						respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid admin key")
						return
					}
					identity = &Identity{CustomerID: &cust.ID, Role: RoleAdmin, Method: MethodOpaqueKey}
				default:
					respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid admin key")
					return
				}
			}

			if identity == nil {
				if token := ssoToken(r); token != "" && sso != nil {
					claims, err := sso.Verify(r.Context(), token)
					if err != nil {
						logger.Warn("sso session rejected", "error", err)
						respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid or expired session")
						return
					}
					identity = &Identity{
						CustomerID: &claims.CustomerID,
						UserID:     &claims.UserID,
						Email:      claims.Email,
						Role:       claims.Role,
						Method:     MethodSSO,
					}
				}
			}

			if identity == nil {
				respondErr(w, http.StatusUnauthorized, "unauthorized", "no valid authentication provided")
				return
			}

			ctx := NewContext(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") || strings.HasPrefix(h, "bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	return ""
}

func ssoToken(r *http.Request) string {
	if tok := bearerToken(r); tok != "" {
		return tok
	}
	if c, err := r.Cookie("sso_token"); err == nil {
		return c.Value
	}
	return ""
}

func respondErr(w http.ResponseWriter, status int, errStr, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errStr,
		"message": message,
	})
}
