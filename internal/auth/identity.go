package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/snowflow/licensed/internal/store"
)

// Role aliases the persisted user role so auth and store agree on one set
// of constants instead of maintaining a parallel mapping at the boundary.
type Role = store.UserRole

const (
	RoleAdmin       = store.RoleAdmin
	RoleDeveloper   = store.RoleDeveloper
	RoleStakeholder = store.RoleStakeholder
)

// Method names how an Identity was authenticated.
type Method string

const (
	// MethodLicenseKey is a customer or legacy license key on /mcp/*.
	MethodLicenseKey Method = "license_key"
	// MethodOpaqueKey is an opaque SNOW-ENT-CUST-/SNOW-SI- admin key.
	MethodOpaqueKey Method = "opaque_key"
	// MethodSSO is a browser session minted after a SAML assertion.
	MethodSSO Method = "sso"
	// MethodAdminKey is the operator master key (env ADMIN_KEY).
	MethodAdminKey Method = "admin_key"
)

// Identity is the authenticated caller attached to a request's context.
// Exactly one of CustomerID/ServiceIntegratorID is set for license-key and
// SSO identities; the operator admin key sets neither.
type Identity struct {
	CustomerID          *uuid.UUID
	ServiceIntegratorID *uuid.UUID
	UserID              *uuid.UUID
	HashedUserID         string
	Email                string
	Role                 Role
	Method               Method
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying id.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the Identity stored in ctx, or nil if none.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(contextKey{}).(*Identity)
	return id
}
