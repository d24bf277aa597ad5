package seat

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snowflow/licensed/internal/store"
)

// Reaper periodically evicts connections that have gone stale: no
// heartbeat within StaleTimeout of the last one seen. It runs outside any
// single customer's admission transaction, since a reap tick may touch many
// customers and must never hold a connection across the whole pass.
type Reaper struct {
	pool   *pgxpool.Pool
	cfg    Config
	logger *slog.Logger
}

// NewReaper builds a Reaper backed by pool.
func NewReaper(pool *pgxpool.Pool, cfg Config, logger *slog.Logger) *Reaper {
	return &Reaper{pool: pool, cfg: cfg, logger: logger}
}

// Run ticks every cfg.ReapInterval until ctx is canceled, sweeping once
// immediately on entry so a restart doesn't wait a full interval before its
// first pass.
func (r *Reaper) Run(ctx context.Context) {
	r.sweep(ctx)

	ticker := time.NewTicker(r.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep deletes every connection whose last_seen is strictly older than
// now - StaleTimeout, appends a timeout event per evicted connection, and
// recomputes active seat counters for every customer touched.
func (r *Reaper) sweep(ctx context.Context) {
	conns := store.NewActiveConnectionStore(r.pool)
	events := store.NewConnectionEventStore(r.pool)
	customers := store.NewCustomerStore(r.pool)

	cutoff := time.Now().Add(-r.cfg.StaleTimeout)
	stale, err := conns.DeleteStale(ctx, cutoff)
	if err != nil {
		r.logger.Error("seat reaper: deleting stale connections", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	touched := make(map[uuid.UUID]struct{}, len(stale))
	for _, row := range stale {
		if err := events.Append(ctx, store.AppendConnectionEventParams{
			CustomerID: row.CustomerID, HashedUserID: row.HashedUserID, Role: row.Role,
			Event: store.EventTimeout,
		}); err != nil {
			r.logger.Error("seat reaper: recording timeout event", "error", err, "customerId", row.CustomerID)
		}
		touched[row.CustomerID] = struct{}{}
	}

	for customerID := range touched {
		developerActive, stakeholderActive, err := conns.CountAllByRole(ctx, customerID)
		if err != nil {
			r.logger.Error("seat reaper: recounting active seats", "error", err, "customerId", customerID)
			continue
		}
		if err := customers.UpdateActiveSeats(ctx, customerID, developerActive, stakeholderActive); err != nil {
			r.logger.Error("seat reaper: updating active seat counters", "error", err, "customerId", customerID)
		}
	}

	r.logger.Info("seat reaper: evicted stale connections", "count", len(stale), "customers", len(touched))
}
