// Package config provides centralized configuration management for the importer.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"

	"github.com/JonMunkholm/payimport/internal/core"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 3m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"3m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds store settings.
type DatabaseConfig struct {
	// Driver selects the store: postgres or memory (default: postgres)
	Driver string `env:"DB_DRIVER" default:"postgres"`

	// URL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate applies the schema on startup (default: true)
	Migrate bool `env:"DB_MIGRATE" default:"true"`
}

// ImportConfig holds payment import settings.
type ImportConfig struct {
	// PerStep is the number of rows a step is sized for (default: 5)
	PerStep int `env:"IMPORT_PER_STEP" default:"5"`

	// UploadsDir is where uploaded files are kept between steps (default: uploads)
	UploadsDir string `env:"IMPORT_UPLOADS_DIR" default:"uploads"`

	// MaxFileSize is the maximum allowed file size in bytes (default: 100MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" envAlt:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of steps running at once (default: 4)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a step waits for a slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// StepInterval is how often the background runner steps running jobs (default: 2s)
	StepInterval time.Duration `env:"IMPORT_STEP_INTERVAL" default:"2s"`

	// StepTimeout is the maximum duration of one step (default: 2m)
	StepTimeout time.Duration `env:"IMPORT_STEP_TIMEOUT" default:"2m"`

	// TestMode is the run mode for rows without a recognised mode (default: false)
	TestMode bool `env:"IMPORT_TEST_MODE" default:"false"`

	// SuppressSideEffects stops receipts and sale notices during import (default: true)
	SuppressSideEffects bool `env:"IMPORT_SUPPRESS_SIDE_EFFECTS" default:"true"`

	// ThousandsSeparator is the thousands separator in amounts (default: ,)
	ThousandsSeparator string `env:"IMPORT_THOUSANDS_SEPARATOR" default:","`

	// DecimalSeparator is the decimal separator in amounts (default: .)
	DecimalSeparator string `env:"IMPORT_DECIMAL_SEPARATOR" default:"."`

	// CatalogCacheTTL is how long resolved product titles stay cached (default: 15m)
	CatalogCacheTTL time.Duration `env:"IMPORT_CATALOG_CACHE_TTL" default:"15m"`

	// CheckpointPath is the SQLite file the CLI keeps job state in (default: payimport.db)
	CheckpointPath string `env:"IMPORT_CHECKPOINT_PATH" default:"payimport.db"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit is requests per minute for upload and step endpoints (default: 30)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" envAlt:"RATE_LIMIT_UPLOAD" default:"30"`

	// Burst is the number of requests allowed above the steady rate (default: 10)
	Burst int `env:"RATE_LIMIT_BURST" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAuth rejects API requests without an API key or operator token (default: false)
	RequireAuth bool `env:"SECURITY_REQUIRE_AUTH" envAlt:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of keys accepted in X-API-Key
	APIKeys []string `env:"API_KEYS"`

	// JWTSecret verifies HS256 operator tokens in the Authorization header
	JWTSecret string `env:"JWT_SECRET"`

	// JWTIssuer is the required token issuer when set
	JWTIssuer string `env:"JWT_ISSUER"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// AmountFormat returns the configured amount separators.
func (c *ImportConfig) AmountFormat() core.AmountFormat {
	return core.AmountFormat{Thousands: c.ThousandsSeparator, Decimal: c.DecimalSeparator}
}

// ServiceConfig converts the import settings for core.NewService.
func (c *ImportConfig) ServiceConfig() core.ServiceConfig {
	return core.ServiceConfig{
		PerStep:             c.PerStep,
		UploadsDir:          c.UploadsDir,
		MaxFileSize:         c.MaxFileSize,
		MaxConcurrent:       c.MaxConcurrent,
		MaxWaitTime:         c.MaxWaitTime,
		TestMode:            c.TestMode,
		Format:              c.AmountFormat(),
		SuppressSideEffects: c.SuppressSideEffects,
		CatalogCacheTTL:     c.CatalogCacheTTL,
	}
}
