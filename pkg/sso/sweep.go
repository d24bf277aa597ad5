package sso

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snowflow/licensed/internal/store"
)

// DefaultSessionSweepInterval is how often expired sessions are purged
// absent an explicit interval.
const DefaultSessionSweepInterval = time.Hour

// SessionSweeper deletes SsoSession rows past their expiry on a recurring
// schedule, independent of the request path that creates or verifies them.
type SessionSweeper struct {
	pool     *pgxpool.Pool
	interval time.Duration
	logger   *slog.Logger
}

// NewSessionSweeper builds a SessionSweeper. interval <= 0 falls back to
// DefaultSessionSweepInterval.
func NewSessionSweeper(pool *pgxpool.Pool, interval time.Duration, logger *slog.Logger) *SessionSweeper {
	if interval <= 0 {
		interval = DefaultSessionSweepInterval
	}
	return &SessionSweeper{pool: pool, interval: interval, logger: logger}
}

// Run ticks every interval until ctx is canceled, sweeping once immediately
// on entry.
func (sw *SessionSweeper) Run(ctx context.Context) {
	sw.sweep(ctx)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.sweep(ctx)
		}
	}
}

func (sw *SessionSweeper) sweep(ctx context.Context) {
	n, err := store.NewSsoSessionStore(sw.pool).DeleteExpiredBefore(ctx, time.Now())
	if err != nil {
		sw.logger.Error("sso session sweep failed", "error", err)
		return
	}
	if n > 0 {
		sw.logger.Info("sso session sweep", "deleted", n)
	}
}
