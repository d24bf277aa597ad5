// Package seat implements the admission-control protocol that bounds how
// many concurrent MCP clients a customer may run per seat role: a connect
// handshake that enforces the seat limit with a short reconnect grace
// window, a heartbeat to keep a connection alive, an explicit disconnect,
// and a background reaper that evicts connections nobody heard from in
// time.
package seat

import (
	"time"

	"github.com/google/uuid"

	"github.com/snowflow/licensed/internal/store"
	"github.com/snowflow/licensed/pkg/license"
)

// ConnectRequest describes one admission attempt. HashedUserID identifies
// the caller without persisting a raw user identifier in the connection
// table.
type ConnectRequest struct {
	CustomerID   uuid.UUID
	HashedUserID string
	Role         store.UserRole
	IPAddress    string
	UserAgent    string
	JWTHash      string
}

// ConnectResult is returned on successful admission.
type ConnectResult struct {
	ConnectionID string
	Role         store.UserRole
	SeatLimit    license.SeatLimit
	Active       int
}

// Config tunes the grace window, staleness threshold, and reap cadence.
type Config struct {
	GracePeriod  time.Duration
	StaleTimeout time.Duration
	ReapInterval time.Duration
}

// DefaultConfig matches the documented defaults: a five minute reconnect
// grace window, a two minute staleness threshold, and a one minute reap
// tick.
func DefaultConfig() Config {
	return Config{
		GracePeriod:  5 * time.Minute,
		StaleTimeout: 2 * time.Minute,
		ReapInterval: 60 * time.Second,
	}
}

func seatLimitForRole(cust store.CustomerRow, role store.UserRole) license.SeatLimit {
	if role == store.RoleStakeholder {
		return license.FromStorage(cust.StakeholderSeats)
	}
	return license.FromStorage(cust.DeveloperSeats)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
