package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/snowflow/licensed/internal/auth"
	"github.com/snowflow/licensed/internal/config"
	"github.com/snowflow/licensed/internal/httpserver"
	"github.com/snowflow/licensed/internal/platform"
	"github.com/snowflow/licensed/internal/store"
	"github.com/snowflow/licensed/internal/telemetry"
	"github.com/snowflow/licensed/pkg/cryptoutil"
	"github.com/snowflow/licensed/pkg/kmsenvelope"
	"github.com/snowflow/licensed/pkg/seat"
	"github.com/snowflow/licensed/pkg/sso"
	"github.com/snowflow/licensed/pkg/theme"
	"github.com/snowflow/licensed/pkg/vault"
)

// Run is the main application entry point. It reads config, connects to
// infrastructure, and starts the appropriate mode (api or worker).
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	logger.Info("starting licensed",
		"mode", cfg.Mode,
		"listen", cfg.ListenAddr(),
	)

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseDSN(), cfg.DatabasePoolSize)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseDSN(), cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := prometheus.NewRegistry()
	metricsReg.MustRegister(telemetry.All()...)

	cipher, err := newCipher(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing credential cipher: %w", err)
	}
	defer func() {
		if err := cipher.Close(); err != nil {
			logger.Error("closing kms client", "error", err)
		}
	}()

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, db, rdb, metricsReg, cipher)
	case "worker":
		return runWorker(ctx, cfg, logger, db)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

// newCipher builds the credential cipher from config: a local AES-256-GCM
// key always, upgraded to cloud-KMS envelope encryption when a GCP project
// is configured and reachable (pkg/kmsenvelope.New probes and otherwise
// falls back to the local key, logging a warning).
func newCipher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*kmsenvelope.Service, error) {
	raw := []byte(cfg.CredentialsEncryptionKey)
	var localKey []byte
	if cfg.RequireExactKeyLength {
		key, err := cryptoutil.StrictKey(raw)
		if err != nil {
			return nil, fmt.Errorf("CREDENTIALS_ENCRYPTION_KEY: %w", err)
		}
		localKey = key
	} else {
		localKey = cryptoutil.NormalizeKey(raw)
	}

	kmsCfg := kmsenvelope.Config{
		Location: cfg.KMSLocation,
		KeyRing:  cfg.KMSKeyRing,
		KeyName:  cfg.KMSKeyName,
	}
	if cfg.KMSEnabled() {
		kmsCfg.ProjectID = cfg.ProjectID()
	}

	return kmsenvelope.New(ctx, kmsCfg, localKey, logger), nil
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry, cipher *kmsenvelope.Service) error {
	srv := httpserver.NewServer(cfg, logger, db, rdb, metricsReg)

	customers := store.NewCustomerStore(db)
	serviceIntegrators := store.NewServiceIntegratorStore(db)

	baseURL := fmt.Sprintf("http://%s", cfg.ListenAddr())
	ssoHandler, err := sso.NewHandler(db, baseURL, cfg.JWTSecret, !cfg.IsDev(), logger)
	if err != nil {
		return fmt.Errorf("initializing sso handler: %w", err)
	}

	adminMW := auth.AdminMiddleware(customers, serviceIntegrators, ssoHandler, cfg.AdminKey, logger)

	mcpRateWindow, err := time.ParseDuration(cfg.MCPRateLimitWindow)
	if err != nil {
		return fmt.Errorf("parsing MCP_RATE_LIMIT_WINDOW: %w", err)
	}
	ssoRateWindow, err := time.ParseDuration(cfg.SSORateLimitWindow)
	if err != nil {
		return fmt.Errorf("parsing SSO_RATE_LIMIT_WINDOW: %w", err)
	}
	mcpLimiter := auth.NewRateLimiter(rdb, "mcp", cfg.MCPRateLimit, mcpRateWindow)
	ssoLimiter := auth.NewRateLimiter(rdb, "sso", cfg.SSORateLimit, ssoRateWindow)

	seatCfg, err := seatConfigFrom(cfg)
	if err != nil {
		return err
	}
	seatService := seat.NewService(db, seatCfg, logger)
	seatHandler := seat.NewHandler(seatService, nil, logger)

	vaultService := vault.NewService(db, cipher)
	vaultHandler := vault.NewHandler(vaultService)

	themeService := theme.NewService(db)
	themeHandler := theme.NewHandler(themeService)

	// /mcp/* — machine-client bearer license key, per-customer rate limit.
	srv.Router.Route("/mcp", func(r chi.Router) {
		r.Use(auth.LicenseKeyMiddleware(customers, cfg.LicenseSecret, logger))
		r.Use(rateLimitByCustomer(mcpLimiter, logger))
		r.Post("/connect", seatHandler.Connect)
		r.Post("/heartbeat", seatHandler.Heartbeat)
		r.Post("/disconnect", seatHandler.Disconnect)
		r.Post("/tools/call", seatHandler.ToolsCall)
	})

	// /sso/* — unauthenticated login/callback/metadata, rate limited by IP;
	// logout requires a session (AdminMiddleware resolves the bearer/cookie
	// JWT into an Identity).
	srv.Router.Route("/sso", func(r chi.Router) {
		r.Use(rateLimitByIP(ssoLimiter, logger))
		r.Get("/login/{customerId}", ssoHandler.Login)
		r.Post("/callback", ssoHandler.Callback)
		r.Get("/metadata/{customerId}", ssoHandler.Metadata)
		r.With(adminMW).Post("/logout", ssoHandler.Logout)
	})

	// /api/* — admin key, opaque SI/customer key, or SSO session.
	srv.Router.Route("/api", func(r chi.Router) {
		r.Use(adminMW)
		r.Route("/credentials", func(r chi.Router) {
			r.Get("/", vaultHandler.List)
			r.Route("/{service}", func(r chi.Router) {
				r.Get("/", vaultHandler.Get)
				r.Post("/", vaultHandler.Put)
				r.Delete("/", vaultHandler.Delete)
				r.Post("/test", vaultHandler.Test)
			})
		})
		r.Route("/themes", func(r chi.Router) {
			r.Get("/", themeHandler.List)
			r.Post("/", themeHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", themeHandler.Get)
				r.Put("/", themeHandler.Update)
				r.Delete("/", themeHandler.Delete)
			})
		})
	})

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// runWorker starts the three periodic background tasks as sibling
// goroutines, one ticker loop each, none holding a pooled connection
// between ticks.
func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool) error {
	logger.Info("worker started")

	seatCfg, err := seatConfigFrom(cfg)
	if err != nil {
		return err
	}
	reaper := seat.NewReaper(db, seatCfg, logger)
	go reaper.Run(ctx)

	sessionSweepInterval, err := time.ParseDuration(cfg.SessionSweepInterval)
	if err != nil {
		return fmt.Errorf("parsing SESSION_SWEEP_INTERVAL: %w", err)
	}
	sessionSweeper := sso.NewSessionSweeper(db, sessionSweepInterval, logger)
	go sessionSweeper.Run(ctx)

	credSweepInterval, err := time.ParseDuration(cfg.CredentialSweepInterval)
	if err != nil {
		return fmt.Errorf("parsing CREDENTIAL_SWEEP_INTERVAL: %w", err)
	}
	credSweepWithin, err := time.ParseDuration(cfg.CredentialSweepWithin)
	if err != nil {
		return fmt.Errorf("parsing CREDENTIAL_SWEEP_WITHIN: %w", err)
	}
	cipher, err := newCipher(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing credential cipher: %w", err)
	}
	defer func() {
		if err := cipher.Close(); err != nil {
			logger.Error("closing kms client", "error", err)
		}
	}()
	// No refreshers are registered in core: external OAuth2 providers are
	// wired in by a deployment that knows their token endpoints.
	credSweeper := vault.NewSweeper(db, cipher, map[string]vault.RefreshFunc{}, credSweepInterval, credSweepWithin, logger)
	go credSweeper.Run(ctx)

	<-ctx.Done()
	logger.Info("worker shutting down")
	return nil
}

func seatConfigFrom(cfg *config.Config) (seat.Config, error) {
	grace, err := time.ParseDuration(cfg.SeatGracePeriod)
	if err != nil {
		return seat.Config{}, fmt.Errorf("parsing SEAT_GRACE_PERIOD: %w", err)
	}
	stale, err := time.ParseDuration(cfg.SeatStaleTimeout)
	if err != nil {
		return seat.Config{}, fmt.Errorf("parsing SEAT_STALE_TIMEOUT: %w", err)
	}
	reap, err := time.ParseDuration(cfg.SeatReapInterval)
	if err != nil {
		return seat.Config{}, fmt.Errorf("parsing SEAT_REAP_INTERVAL: %w", err)
	}
	return seat.Config{GracePeriod: grace, StaleTimeout: stale, ReapInterval: reap}, nil
}

// rateLimitByCustomer enforces the per-customer /mcp/* limit, keyed on the
// Customer resolved by LicenseKeyMiddleware.
func rateLimitByCustomer(limiter *auth.RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cust, ok := auth.CustomerFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			checkRateLimit(limiter, logger, w, r, next, cust.ID.String())
		})
	}
}

// rateLimitByIP enforces the unauthenticated /sso/* limit keyed by client
// IP, since there is no resolved identity yet at this point in the chain.
func rateLimitByIP(limiter *auth.RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			checkRateLimit(limiter, logger, w, r, next, r.RemoteAddr)
		})
	}
}

func checkRateLimit(limiter *auth.RateLimiter, logger *slog.Logger, w http.ResponseWriter, r *http.Request, next http.Handler, bucket string) {
	result, err := limiter.Check(r.Context(), bucket)
	if err != nil {
		logger.Error("rate limit check failed", "error", err)
		next.ServeHTTP(w, r)
		return
	}
	if !result.Allowed {
		httpserver.RespondError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, try again later")
		return
	}
	if err := limiter.Record(r.Context(), bucket); err != nil {
		logger.Error("rate limit record failed", "error", err)
	}
	next.ServeHTTP(w, r)
}
