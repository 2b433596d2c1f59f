// Package config provides centralized configuration management for the relief
// reconciliation service. Settings come from environment variables with defaults
// and are validated on startup so misconfiguration fails fast.
package config

import (
	"strconv"
	"time"
	_ "time/tzdata" // EXPORT_TIME_ZONE must resolve on hosts without a zone database
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Import    ImportConfig
	Security  SecurityConfig
	Logging   LoggingConfig
	Audit     AuditConfig
	Export    ExportConfig
	Reconcile ReconcileConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading the request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing the response (default: 120s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"120s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// StoreConfig selects the record store backend.
type StoreConfig struct {
	// Driver is postgres or memory (default: postgres)
	Driver string `env:"STORE_DRIVER" default:"postgres"`

	// EnsureSchema applies the embedded schema on startup (default: true)
	EnsureSchema bool `env:"STORE_ENSURE_SCHEMA" default:"true"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string, required when STORE_DRIVER=postgres.
	// Supports both DATABASE_URL and DB_URL env vars.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig holds CSV import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum accepted CSV payload, e.g. 20MiB or 5000000 (default: 20MiB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"20MiB" unit:"bytes"`

	// MaxConcurrent is the maximum number of parallel import batches (default: 4)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long an import waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey enables X-API-Key checking on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Audit sinks.
const (
	AuditSinkLog      = "log"
	AuditSinkPostgres = "postgres"
	AuditSinkNone     = "none"
)

// AuditConfig holds batch audit settings.
type AuditConfig struct {
	// Sink is log, postgres or none (default: log)
	Sink string `env:"AUDIT_SINK" default:"log"`

	// QueueSize is the buffered event capacity of the postgres writer (default: 256)
	QueueSize int `env:"AUDIT_QUEUE_SIZE" default:"256"`

	// RetentionDays is how long audit rows are kept (default: 180)
	RetentionDays int `env:"AUDIT_RETENTION_DAYS" default:"180"`

	// CheckInterval is how often the retention purge runs (default: 24h)
	CheckInterval time.Duration `env:"AUDIT_CHECK_INTERVAL" default:"24h"`
}

// ExportConfig holds CSV export settings.
type ExportConfig struct {
	// TimeZone is the IANA zone used to render timestamps (default: Asia/Taipei)
	TimeZone string `env:"EXPORT_TIME_ZONE" default:"Asia/Taipei"`
}

// ReconcileConfig holds natural-key matching settings.
type ReconcileConfig struct {
	// AreaProximityDegrees is the coordinate tolerance for area matches in trash imports (default: 0.01)
	AreaProximityDegrees float64 `env:"AREA_PROXIMITY_DEGREES" default:"0.01"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Location resolves the export time zone. Unknown names fall back to a fixed
// UTC+8 zone.
func (c *ExportConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.FixedZone("UTC+8", 8*60*60)
	}
	return loc
}
