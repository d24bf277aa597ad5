package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration, loaded from environment variables.
type Config struct {
	// Mode selects the runtime mode: "api" or "worker".
	Mode string `env:"LICENSED_MODE" envDefault:"api"`

	// Server
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"8080"`

	// Database. Either DatabaseURL is set directly, or the discrete
	// DB_* fields are combined (Cloud SQL connector style).
	DatabaseURL            string `env:"DATABASE_URL"`
	DBHost                 string `env:"DB_HOST" envDefault:"localhost"`
	DBPort                 int    `env:"DB_PORT" envDefault:"5432"`
	DBUser                 string `env:"DB_USER" envDefault:"licensed"`
	DBPassword             string `env:"DB_PASSWORD"`
	DBName                 string `env:"DB_NAME" envDefault:"licensed"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`
	UseCloudSQL            bool   `env:"USE_CLOUD_SQL" envDefault:"false"`
	DatabasePoolSize       int    `env:"DATABASE_POOL_SIZE" envDefault:"10"`

	// Redis
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Telemetry
	MetricsPath string `env:"METRICS_PATH" envDefault:"/metrics"`

	// Migrations
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ORIGIN" envDefault:"*" envSeparator:","`

	// NodeEnv mirrors the Node-ecosystem NODE_ENV convention the original
	// server used to gate dev-only behavior (see IsDev).
	NodeEnv string `env:"NODE_ENV" envDefault:"production"`

	// Crypto / license / session secrets.
	CredentialsEncryptionKey string `env:"CREDENTIALS_ENCRYPTION_KEY"`
	RequireExactKeyLength    bool   `env:"REQUIRE_EXACT_KEY_LENGTH" envDefault:"false"`
	LicenseSecret            string `env:"LICENSE_SECRET"`
	JWTSecret                string `env:"JWT_SECRET"`
	SessionSecret            string `env:"SESSION_SECRET"`
	AdminKey                 string `env:"ADMIN_KEY"`

	// KMS
	GCPProjectID        string `env:"GCP_PROJECT_ID"`
	GoogleCloudProject  string `env:"GOOGLE_CLOUD_PROJECT"`
	KMSKeyRing          string `env:"KMS_KEY_RING" envDefault:"licensed-credentials"`
	KMSKeyName          string `env:"KMS_KEY_NAME" envDefault:"credential-dek-wrap"`
	KMSLocation         string `env:"KMS_LOCATION" envDefault:"global"`

	// Seat manager tuning.
	SeatGracePeriod  string `env:"SEAT_GRACE_PERIOD" envDefault:"5m"`
	SeatStaleTimeout string `env:"SEAT_STALE_TIMEOUT" envDefault:"2m"`
	SeatReapInterval string `env:"SEAT_REAP_INTERVAL" envDefault:"60s"`

	// Rate limiting.
	MCPRateLimit        int    `env:"MCP_RATE_LIMIT" envDefault:"100"`
	MCPRateLimitWindow  string `env:"MCP_RATE_LIMIT_WINDOW" envDefault:"15m"`
	SSORateLimit        int    `env:"SSO_RATE_LIMIT" envDefault:"10"`
	SSORateLimitWindow  string `env:"SSO_RATE_LIMIT_WINDOW" envDefault:"15m"`

	// Credential sweep.
	CredentialSweepInterval string `env:"CREDENTIAL_SWEEP_INTERVAL" envDefault:"5m"`
	CredentialSweepWithin   string `env:"CREDENTIAL_SWEEP_WITHIN" envDefault:"1h"`

	// SSO session sweep.
	SessionSweepInterval string `env:"SESSION_SWEEP_INTERVAL" envDefault:"1h"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the address the HTTP server should listen on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDev reports whether NODE_ENV indicates a development environment,
// in which the SSO session cookie is set without the Secure flag. Key-length
// strictness does not depend on it; RequireExactKeyLength alone sets that.
func (c *Config) IsDev() bool {
	return c.NodeEnv == "development" || c.NodeEnv == "dev" || c.NodeEnv == "test"
}

// DatabaseDSN resolves the effective Postgres connection string, preferring
// an explicit DATABASE_URL and otherwise composing one from the discrete
// DB_* fields.
func (c *Config) DatabaseDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	sslmode := "require"
	if c.IsDev() {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, sslmode)
}

// KMSEnabled reports whether the configuration has enough information to
// probe cloud KMS at startup.
func (c *Config) KMSEnabled() bool {
	return c.GCPProjectID != "" || c.GoogleCloudProject != ""
}

// ProjectID returns whichever of the two recognized project-id variables is set.
func (c *Config) ProjectID() string {
	if c.GCPProjectID != "" {
		return c.GCPProjectID
	}
	return c.GoogleCloudProject
}
