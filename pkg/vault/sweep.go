package vault

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"

	"github.com/snowflow/licensed/internal/store"
)

// ErrProviderUnauthorized signals that the provider rejected a refresh
// attempt with 401/403; the sweep disables the credential rather than
// retrying it forever.
var ErrProviderUnauthorized = errors.New("vault: provider rejected refresh")

// RefreshFunc exchanges a refresh token for a new oauth2.Token. Implementations
// are external to the core — each third-party provider knows its own token
// endpoint and client credentials — the sweep only ships the scheduler and
// this contract.
type RefreshFunc func(ctx context.Context, customerID, service string, refreshToken string) (*oauth2.Token, error)

// DefaultSweepInterval is how often the scheduler checks for expiring
// credentials, absent an explicit interval.
const DefaultSweepInterval = 5 * time.Minute

// DefaultSweepWindow is how far ahead of expiry a credential becomes a
// refresh candidate, absent an explicit window.
const DefaultSweepWindow = time.Hour

// Sweeper refreshes OAuth2 credentials before they expire.
type Sweeper struct {
	pool       *pgxpool.Pool
	cipher     Cipher
	refreshers map[string]RefreshFunc
	interval   time.Duration
	window     time.Duration
	logger     *slog.Logger
}

// NewSweeper builds a Sweeper. refreshers maps a service name (e.g.
// "jira", "github") to the function that exchanges its refresh token.
// interval/window <= 0 fall back to DefaultSweepInterval/DefaultSweepWindow.
func NewSweeper(pool *pgxpool.Pool, cipher Cipher, refreshers map[string]RefreshFunc, interval, window time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if window <= 0 {
		window = DefaultSweepWindow
	}
	return &Sweeper{pool: pool, cipher: cipher, refreshers: refreshers, interval: interval, window: window, logger: logger}
}

// Run ticks every interval until ctx is canceled, sweeping once immediately
// on entry.
func (sw *Sweeper) Run(ctx context.Context) {
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

func (sw *Sweeper) sweep(ctx context.Context) {
	creds := store.NewCustomerCredentialStore(sw.pool)

	candidates, err := creds.ListRefreshCandidates(ctx, time.Now(), sw.window)
	if err != nil {
		sw.logger.Error("vault sweep: listing refresh candidates", "error", err)
		return
	}

	for _, row := range candidates {
		refresh, ok := sw.refreshers[row.Service]
		if !ok {
			continue
		}
		sw.refreshOne(ctx, row, refresh)
	}
}

func (sw *Sweeper) refreshOne(ctx context.Context, row store.CustomerCredentialRow, refresh RefreshFunc) {
	if row.RefreshTokenEncrypted == nil {
		return
	}

	plainRefreshToken, err := sw.cipher.Decrypt(ctx, *row.RefreshTokenEncrypted)
	if err != nil {
		sw.logger.Error("vault sweep: decrypting refresh token", "error", err, "customerId", row.CustomerID, "service", row.Service)
		return
	}

	newToken, err := refresh(ctx, row.CustomerID.String(), row.Service, string(plainRefreshToken))

	credStore := store.NewCustomerCredentialStore(sw.pool)
	audits := store.NewCredentialAuditStore(sw.pool)

	if err != nil {
		if errors.Is(err, ErrProviderUnauthorized) {
			if disableErr := credStore.SetEnabled(ctx, row.ID, false); disableErr != nil {
				sw.logger.Error("vault sweep: disabling credential", "error", disableErr, "customerId", row.CustomerID)
				return
			}
			failMsg := "provider rejected refresh, credential disabled"
			_ = audits.Append(ctx, store.AppendCredentialAuditParams{
				OwnerKind: store.CredentialOwnerCustomer, OwnerID: row.CustomerID,
				Service: row.Service, Action: store.CredentialAuditRefreshed, Success: false,
				Detail: &failMsg,
			})
			return
		}
		sw.logger.Warn("vault sweep: refresh failed, will retry next tick", "error", err, "customerId", row.CustomerID, "service", row.Service)
		return
	}

	encrypted, err := sw.cipher.Encrypt(ctx, []byte(newToken.AccessToken))
	if err != nil {
		sw.logger.Error("vault sweep: encrypting refreshed token", "error", err, "customerId", row.CustomerID)
		return
	}
	var rotatedRefresh *string
	if newToken.RefreshToken != "" {
		encryptedRefresh, err := sw.cipher.Encrypt(ctx, []byte(newToken.RefreshToken))
		if err != nil {
			sw.logger.Error("vault sweep: encrypting rotated refresh token", "error", err, "customerId", row.CustomerID)
			return
		}
		rotatedRefresh = &encryptedRefresh
	}
	var newExpiresAt *time.Time
	if !newToken.Expiry.IsZero() {
		newExpiresAt = &newToken.Expiry
	}
	if err := credStore.RecordRefresh(ctx, row.ID, encrypted, rotatedRefresh, newExpiresAt); err != nil {
		sw.logger.Error("vault sweep: recording refresh", "error", err, "customerId", row.CustomerID)
		return
	}
	okMsg := "refreshed"
	_ = audits.Append(ctx, store.AppendCredentialAuditParams{
		OwnerKind: store.CredentialOwnerCustomer, OwnerID: row.CustomerID,
		Service: row.Service, Action: store.CredentialAuditRefreshed, Success: true,
		Detail: &okMsg,
	})
}
