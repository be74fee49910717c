// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Import     ImportConfig
	Backup     BackupConfig
	Warehouse  WarehouseConfig
	Security   SecurityConfig
	Logging    LoggingConfig
	Validation ValidationConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envDefault:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"60s"`
}

// StorageConfig locates the data file.
type StorageConfig struct {
	// DataFile is the CSV file holding every record (default: circadian_data.csv)
	DataFile string `env:"DATA_FILE" envDefault:"circadian_data.csv"`

	// BackupDir is where relative backup names are written (default: backups)
	BackupDir string `env:"BACKUP_DIR" envDefault:"backups"`

	// WriteWait is how long a write waits for another to finish (default: 5s)
	WriteWait time.Duration `env:"WRITE_WAIT" envDefault:"5s"`
}

// ImportConfig holds bulk CSV import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum upload size in bytes (default: 10MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" envDefault:"10485760"`

	// MaxErrors caps the row errors reported for one file (default: 10)
	MaxErrors int `env:"IMPORT_MAX_ERRORS" envDefault:"10"`

	// MaxWarnings caps the row warnings reported for one file (default: 20)
	MaxWarnings int `env:"IMPORT_MAX_WARNINGS" envDefault:"20"`
}

// BackupConfig schedules automatic backups.
type BackupConfig struct {
	// Schedule is a standard 5-field cron spec; empty disables scheduled backups
	Schedule string `env:"BACKUP_SCHEDULE"`

	// Timezone the schedule is evaluated in (default: UTC)
	Timezone string `env:"BACKUP_TIMEZONE" envDefault:"UTC"`
}

// WarehouseConfig holds the optional Postgres mirror settings.
type WarehouseConfig struct {
	// URL is the PostgreSQL connection string; empty disables the mirror
	URL string `env:"DATABASE_URL"`

	// Table receives the mirrored rows (default: health_records)
	Table string `env:"WAREHOUSE_TABLE" envDefault:"health_records"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int32 `env:"DB_MAX_CONNS" envDefault:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int32 `env:"DB_MIN_CONNS" envDefault:"0"`

	// SyncTimeout bounds one full sync (default: 2m)
	SyncTimeout time.Duration `env:"WAREHOUSE_SYNC_TIMEOUT" envDefault:"2m"`
}

// Enabled reports whether a database URL was configured.
func (c WarehouseConfig) Enabled() bool {
	return c.URL != ""
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey protects /api routes with an X-API-Key header (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" envDefault:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS" envSeparator:","`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" envDefault:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// ValidationConfig holds settings for entry validation.
type ValidationConfig struct {
	// Timezone interprets timestamps written without an offset (default: Local)
	Timezone string `env:"TIMEZONE" envDefault:"Local"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
