package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ActiveConnectionRow is one live client channel. Uniqueness is enforced
// on (customer_id, hashed_user_id, role) by the database.
type ActiveConnectionRow struct {
	ID            uuid.UUID
	CustomerID    uuid.UUID
	HashedUserID  string
	Role          UserRole
	ConnectionID  string
	IPAddress     *string
	UserAgent     *string
	ConnectedAt   time.Time
	LastSeen      time.Time
	JWTHash       *string
}

const activeConnColumns = `id, customer_id, hashed_user_id, role, connection_id, ip_address, user_agent, connected_at, last_seen, jwt_hash`

// ActiveConnectionStore provides database operations for live connections.
type ActiveConnectionStore struct {
	db DBTX
}

// NewActiveConnectionStore creates a Store backed by db (pool or tx).
func NewActiveConnectionStore(db DBTX) *ActiveConnectionStore {
	return &ActiveConnectionStore{db: db}
}

func scanActiveConnectionRow(row pgx.Row) (ActiveConnectionRow, error) {
	var r ActiveConnectionRow
	err := row.Scan(
		&r.ID, &r.CustomerID, &r.HashedUserID, &r.Role, &r.ConnectionID,
		&r.IPAddress, &r.UserAgent, &r.ConnectedAt, &r.LastSeen, &r.JWTHash,
	)
	return r, err
}

// GetByOwnerRoleUser fetches the live connection for (customerID, hashedUserID, role), if any.
func (s *ActiveConnectionStore) GetByOwnerRoleUser(ctx context.Context, customerID uuid.UUID, hashedUserID string, role UserRole) (ActiveConnectionRow, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+activeConnColumns+` FROM active_connections WHERE customer_id = $1 AND hashed_user_id = $2 AND role = $3`,
		customerID, hashedUserID, role)
	r, err := scanActiveConnectionRow(row)
	if err != nil {
		return ActiveConnectionRow{}, Translate(err)
	}
	return r, nil
}

// CountByRole returns the number of live connections for (customerID, role).
func (s *ActiveConnectionStore) CountByRole(ctx context.Context, customerID uuid.UUID, role UserRole) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM active_connections WHERE customer_id = $1 AND role = $2`, customerID, role).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting active connections: %w", Translate(err))
	}
	return count, nil
}

// CountAllByRole returns active counts for both developer and stakeholder
// roles for a customer in one query, used to recompute customer.active*Seats.
func (s *ActiveConnectionStore) CountAllByRole(ctx context.Context, customerID uuid.UUID) (developer, stakeholder int, err error) {
	rows, err := s.db.Query(ctx, `SELECT role, count(*) FROM active_connections WHERE customer_id = $1 GROUP BY role`, customerID)
	if err != nil {
		return 0, 0, fmt.Errorf("counting active connections by role: %w", Translate(err))
	}
	defer rows.Close()

	for rows.Next() {
		var role UserRole
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return 0, 0, fmt.Errorf("scanning role count: %w", err)
		}
		switch role {
		case RoleDeveloper:
			developer = n
		case RoleStakeholder:
			stakeholder = n
		}
	}
	return developer, stakeholder, rows.Err()
}

// UpsertActiveConnectionParams describes a connection to admit or refresh.
type UpsertActiveConnectionParams struct {
	CustomerID   uuid.UUID
	HashedUserID string
	Role         UserRole
	ConnectionID string
	IPAddress    *string
	UserAgent    *string
	JWTHash      *string
}

// Upsert admits or replaces the live connection for (customerID,
// hashedUserID, role), atomically via ON CONFLICT so concurrent reconnects
// never double-count. Returns the new row and, if a different prior
// connection id existed, that prior id (so the caller can emit a
// disconnect event for it before the connect event for the new one).
func (s *ActiveConnectionStore) Upsert(ctx context.Context, p UpsertActiveConnectionParams) (row ActiveConnectionRow, priorConnectionID string, err error) {
	// The prior connection id must be read before the write lands; capture
	// it with a preceding read inside the same transaction instead of
	// trying to recover it from the upsert's RETURNING clause (which would
	// only ever observe the post-write row).
	existing, getErr := s.GetByOwnerRoleUser(ctx, p.CustomerID, p.HashedUserID, p.Role)
	if getErr == nil {
		priorConnectionID = existing.ConnectionID
	}

	row2 := s.db.QueryRow(ctx,
		`INSERT INTO active_connections (id, customer_id, hashed_user_id, role, connection_id, ip_address, user_agent, connected_at, last_seen, jwt_hash)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, now(), now(), $7)
		ON CONFLICT (customer_id, hashed_user_id, role) DO UPDATE SET
			connection_id = EXCLUDED.connection_id,
			ip_address = EXCLUDED.ip_address,
			user_agent = EXCLUDED.user_agent,
			connected_at = now(),
			last_seen = now(),
			jwt_hash = EXCLUDED.jwt_hash
		RETURNING `+activeConnColumns,
		p.CustomerID, p.HashedUserID, p.Role, p.ConnectionID, p.IPAddress, p.UserAgent, p.JWTHash,
	)
	r, err := scanActiveConnectionRow(row2)
	if err != nil {
		return ActiveConnectionRow{}, "", fmt.Errorf("upserting active connection: %w", Translate(err))
	}
	if priorConnectionID == r.ConnectionID {
		// No prior row existed (GetByOwnerRoleUser failed) or it's the
		// same connection id as before — nothing to disconnect-audit.
		priorConnectionID = ""
	}
	return r, priorConnectionID, nil
}

// Touch refreshes last_seen for (customerID, hashedUserID, role). Returns
// false if no such row exists (the client must re-admit).
func (s *ActiveConnectionStore) Touch(ctx context.Context, customerID uuid.UUID, hashedUserID string, role UserRole) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE active_connections SET last_seen = now() WHERE customer_id = $1 AND hashed_user_id = $2 AND role = $3`,
		customerID, hashedUserID, role)
	if err != nil {
		return false, fmt.Errorf("touching active connection: %w", Translate(err))
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes the connection for (customerID, hashedUserID, role) and
// returns whether a row was actually deleted.
func (s *ActiveConnectionStore) Delete(ctx context.Context, customerID uuid.UUID, hashedUserID string, role UserRole) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM active_connections WHERE customer_id = $1 AND hashed_user_id = $2 AND role = $3`,
		customerID, hashedUserID, role)
	if err != nil {
		return false, fmt.Errorf("deleting active connection: %w", Translate(err))
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteStale deletes every connection whose last_seen is strictly older
// than the cutoff and returns the deleted rows, so the reaper can emit a
// timeout event and recompute customer seat counters for each one.
func (s *ActiveConnectionStore) DeleteStale(ctx context.Context, cutoff time.Time) ([]ActiveConnectionRow, error) {
	rows, err := s.db.Query(ctx, `DELETE FROM active_connections WHERE last_seen < $1 RETURNING `+activeConnColumns, cutoff)
	if err != nil {
		return nil, fmt.Errorf("deleting stale active connections: %w", Translate(err))
	}
	defer rows.Close()

	var items []ActiveConnectionRow
	for rows.Next() {
		r, err := scanActiveConnectionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning deleted active connection: %w", err)
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// ConnectionEventKind enumerates the append-only audit event types.
type ConnectionEventKind string

const (
	EventConnect    ConnectionEventKind = "connect"
	EventDisconnect ConnectionEventKind = "disconnect"
	EventHeartbeat  ConnectionEventKind = "heartbeat"
	EventTimeout    ConnectionEventKind = "timeout"
	EventRejected   ConnectionEventKind = "rejected"
)

// ConnectionEventRow is one append-only audit entry.
type ConnectionEventRow struct {
	ID           uuid.UUID
	CustomerID   uuid.UUID
	HashedUserID string
	Role         UserRole
	Event        ConnectionEventKind
	OccurredAt   time.Time
	IPAddress    *string
	ErrorMessage *string
	SeatLimit    *int
	ActiveCount  *int
}

const connEventColumns = `id, customer_id, hashed_user_id, role, event, occurred_at, ip_address, error_message, seat_limit, active_count`

// ConnectionEventStore appends and lists connection lifecycle events.
type ConnectionEventStore struct {
	db DBTX
}

// NewConnectionEventStore creates a Store backed by db.
func NewConnectionEventStore(db DBTX) *ConnectionEventStore {
	return &ConnectionEventStore{db: db}
}

// AppendConnectionEventParams describes one event to append.
type AppendConnectionEventParams struct {
	CustomerID   uuid.UUID
	HashedUserID string
	Role         UserRole
	Event        ConnectionEventKind
	IPAddress    *string
	ErrorMessage *string
	SeatLimit    *int
	ActiveCount  *int
}

// Append inserts one connection event row.
func (s *ConnectionEventStore) Append(ctx context.Context, p AppendConnectionEventParams) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO connection_events (id, customer_id, hashed_user_id, role, event, occurred_at, ip_address, error_message, seat_limit, active_count)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, now(), $5, $6, $7, $8)`,
		p.CustomerID, p.HashedUserID, p.Role, p.Event, p.IPAddress, p.ErrorMessage, p.SeatLimit, p.ActiveCount,
	)
	if err != nil {
		return fmt.Errorf("appending connection event: %w", Translate(err))
	}
	return nil
}

// ListByCustomer returns the most recent events for a customer, newest first.
func (s *ConnectionEventStore) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]ConnectionEventRow, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+connEventColumns+` FROM connection_events WHERE customer_id = $1 ORDER BY occurred_at DESC LIMIT $2`,
		customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing connection events: %w", Translate(err))
	}
	defer rows.Close()

	var items []ConnectionEventRow
	for rows.Next() {
		var r ConnectionEventRow
		if err := rows.Scan(
			&r.ID, &r.CustomerID, &r.HashedUserID, &r.Role, &r.Event, &r.OccurredAt,
			&r.IPAddress, &r.ErrorMessage, &r.SeatLimit, &r.ActiveCount,
		); err != nil {
			return nil, fmt.Errorf("scanning connection event row: %w", err)
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
