package seat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snowflow/licensed/internal/store"
)

// Service implements the connect/heartbeat/disconnect admission protocol
// against a connection pool. Every state-changing step that needs to see a
// consistent view of seat counts runs inside one transaction, including the
// audit event it produces — an audit row never commits separately from the
// write it describes.
type Service struct {
	pool   *pgxpool.Pool
	cfg    Config
	logger *slog.Logger
}

// NewService builds a Service backed by pool.
func NewService(pool *pgxpool.Pool, cfg Config, logger *slog.Logger) *Service {
	return &Service{pool: pool, cfg: cfg, logger: logger}
}

// TryConnect runs the seven-step admission protocol: load the customer,
// check for enforcement bypass, count active seats for the role, allow a
// grace-period reconnect over the limit, admit the connection, recompute
// the live seat counters, and record the outcome as a connection event.
func (s *Service) TryConnect(ctx context.Context, req ConnectRequest) (ConnectResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ConnectResult{}, fmt.Errorf("beginning admission transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	customers := store.NewCustomerStore(tx)
	conns := store.NewActiveConnectionStore(tx)
	events := store.NewConnectionEventStore(tx)

	cust, err := customers.GetByIDForUpdate(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ConnectResult{}, errCustomerInactive()
		}
		return ConnectResult{}, fmt.Errorf("loading customer: %w", err)
	}

	if cust.Status != store.CustomerStatusActive {
		if err := events.Append(ctx, store.AppendConnectionEventParams{
			CustomerID: req.CustomerID, HashedUserID: req.HashedUserID, Role: req.Role,
			Event: store.EventRejected, IPAddress: strPtr(req.IPAddress),
			ErrorMessage: strPtr("customer account is not active"),
		}); err != nil {
			return ConnectResult{}, fmt.Errorf("recording rejection: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return ConnectResult{}, fmt.Errorf("committing rejection: %w", err)
		}
		return ConnectResult{}, errCustomerInactive()
	}

	seatLimit := seatLimitForRole(cust, req.Role)
	bypass := !cust.SeatLimitsEnforced || req.Role == store.RoleAdmin || seatLimit.IsUnlimited()

	if !bypass {
		activeBefore, err := conns.CountByRole(ctx, req.CustomerID, req.Role)
		if err != nil {
			return ConnectResult{}, fmt.Errorf("counting active seats: %w", err)
		}

		if activeBefore >= seatLimit.Count() {
			ok, err := s.withinGracePeriod(ctx, conns, req)
			if err != nil {
				return ConnectResult{}, err
			}
			if !ok {
				limit := seatLimit.Count()
				if err := events.Append(ctx, store.AppendConnectionEventParams{
					CustomerID: req.CustomerID, HashedUserID: req.HashedUserID, Role: req.Role,
					Event: store.EventRejected, IPAddress: strPtr(req.IPAddress),
					SeatLimit: &limit, ActiveCount: &activeBefore,
				}); err != nil {
					return ConnectResult{}, fmt.Errorf("recording rejection: %w", err)
				}
				if err := tx.Commit(ctx); err != nil {
					return ConnectResult{}, fmt.Errorf("committing rejection: %w", err)
				}
				return ConnectResult{}, errSeatLimitExceeded(limit, activeBefore, string(req.Role))
			}
		}
	}

	connectionID := uuid.NewString()
	newRow, priorConnectionID, err := conns.Upsert(ctx, store.UpsertActiveConnectionParams{
		CustomerID:   req.CustomerID,
		HashedUserID: req.HashedUserID,
		Role:         req.Role,
		ConnectionID: connectionID,
		IPAddress:    strPtr(req.IPAddress),
		UserAgent:    strPtr(req.UserAgent),
		JWTHash:      strPtr(req.JWTHash),
	})
	if err != nil {
		return ConnectResult{}, fmt.Errorf("admitting connection: %w", err)
	}

	if priorConnectionID != "" {
		if err := events.Append(ctx, store.AppendConnectionEventParams{
			CustomerID: req.CustomerID, HashedUserID: req.HashedUserID, Role: req.Role,
			Event: store.EventDisconnect, IPAddress: strPtr(req.IPAddress),
		}); err != nil {
			return ConnectResult{}, fmt.Errorf("recording prior disconnect: %w", err)
		}
	}

	developerActive, stakeholderActive, err := conns.CountAllByRole(ctx, req.CustomerID)
	if err != nil {
		return ConnectResult{}, fmt.Errorf("recounting active seats: %w", err)
	}
	if err := customers.UpdateActiveSeats(ctx, req.CustomerID, developerActive, stakeholderActive); err != nil {
		return ConnectResult{}, fmt.Errorf("updating active seat counters: %w", err)
	}

	activeAfter := developerActive
	if req.Role == store.RoleStakeholder {
		activeAfter = stakeholderActive
	}

	limitSnapshot := seatLimit.Count()
	if err := events.Append(ctx, store.AppendConnectionEventParams{
		CustomerID: req.CustomerID, HashedUserID: req.HashedUserID, Role: req.Role,
		Event: store.EventConnect, IPAddress: strPtr(req.IPAddress),
		SeatLimit: &limitSnapshot, ActiveCount: &activeAfter,
	}); err != nil {
		return ConnectResult{}, fmt.Errorf("recording connect event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return ConnectResult{}, fmt.Errorf("committing admission: %w", err)
	}

	return ConnectResult{
		ConnectionID: newRow.ConnectionID,
		Role:         req.Role,
		SeatLimit:    seatLimit,
		Active:       activeAfter,
	}, nil
}

// withinGracePeriod reports whether a prior connection for the same
// (customer, user, role) went stale fewer than GracePeriod ago, in which
// case the new connect attempt is treated as a reconnect rather than a
// second seat.
func (s *Service) withinGracePeriod(ctx context.Context, conns *store.ActiveConnectionStore, req ConnectRequest) (bool, error) {
	existing, err := conns.GetByOwnerRoleUser(ctx, req.CustomerID, req.HashedUserID, req.Role)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("checking reconnect grace period: %w", err)
	}
	return time.Since(existing.LastSeen) <= s.cfg.GracePeriod, nil
}

// Heartbeat refreshes last_seen for a live connection. It returns false if
// no connection row exists, in which case the caller must re-admit via
// TryConnect rather than assume the heartbeat kept anything alive.
func (s *Service) Heartbeat(ctx context.Context, customerID uuid.UUID, hashedUserID string, role store.UserRole) (bool, error) {
	conns := store.NewActiveConnectionStore(s.pool)
	ok, err := conns.Touch(ctx, customerID, hashedUserID, role)
	if err != nil {
		return false, fmt.Errorf("recording heartbeat: %w", err)
	}
	if ok {
		events := store.NewConnectionEventStore(s.pool)
		if err := events.Append(ctx, store.AppendConnectionEventParams{
			CustomerID: customerID, HashedUserID: hashedUserID, Role: role,
			Event: store.EventHeartbeat,
		}); err != nil {
			return true, fmt.Errorf("recording heartbeat event: %w", err)
		}
	}
	return ok, nil
}

// Disconnect releases a seat explicitly. It is a no-op (returns false) if
// the connection was already gone, e.g. reaped for staleness.
func (s *Service) Disconnect(ctx context.Context, customerID uuid.UUID, hashedUserID string, role store.UserRole) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning disconnect transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	conns := store.NewActiveConnectionStore(tx)
	customers := store.NewCustomerStore(tx)
	events := store.NewConnectionEventStore(tx)

	deleted, err := conns.Delete(ctx, customerID, hashedUserID, role)
	if err != nil {
		return false, fmt.Errorf("deleting active connection: %w", err)
	}
	if !deleted {
		return false, tx.Commit(ctx)
	}

	developerActive, stakeholderActive, err := conns.CountAllByRole(ctx, customerID)
	if err != nil {
		return false, fmt.Errorf("recounting active seats: %w", err)
	}
	if err := customers.UpdateActiveSeats(ctx, customerID, developerActive, stakeholderActive); err != nil {
		return false, fmt.Errorf("updating active seat counters: %w", err)
	}
	if err := events.Append(ctx, store.AppendConnectionEventParams{
		CustomerID: customerID, HashedUserID: hashedUserID, Role: role,
		Event: store.EventDisconnect,
	}); err != nil {
		return false, fmt.Errorf("recording disconnect event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing disconnect: %w", err)
	}
	return true, nil
}
