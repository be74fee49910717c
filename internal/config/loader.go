package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/robfig/cron/v3"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Storage validation
	if strings.TrimSpace(c.Storage.DataFile) == "" {
		errs = append(errs, "DATA_FILE is required")
	}
	if c.Storage.WriteWait <= 0 {
		errs = append(errs, "WRITE_WAIT must be positive")
	}

	// Import validation
	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, "IMPORT_MAX_FILE_SIZE must be positive")
	}
	if c.Import.MaxErrors <= 0 {
		errs = append(errs, "IMPORT_MAX_ERRORS must be positive")
	}
	if c.Import.MaxWarnings <= 0 {
		errs = append(errs, "IMPORT_MAX_WARNINGS must be positive")
	}

	// Backup validation
	if _, err := time.LoadLocation(c.Backup.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("BACKUP_TIMEZONE (%q) is not a known location", c.Backup.Timezone))
	}
	if c.Backup.Schedule != "" {
		if _, err := cron.ParseStandard(c.Backup.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("BACKUP_SCHEDULE (%q) is not a valid cron spec: %v", c.Backup.Schedule, err))
		}
	}

	// Warehouse validation
	if c.Warehouse.Enabled() {
		if c.Warehouse.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Warehouse.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
		if c.Warehouse.MaxConns < c.Warehouse.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Warehouse.MaxConns, c.Warehouse.MinConns))
		}
		if !validIdentifier(c.Warehouse.Table) {
			errs = append(errs, fmt.Sprintf("WAREHOUSE_TABLE (%q) must be a plain SQL identifier", c.Warehouse.Table))
		}
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	// Validation settings
	if _, err := time.LoadLocation(c.Validation.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("TIMEZONE (%q) is not a known location", c.Validation.Timezone))
	}

	if len(errs) > 0 {
		return errors.New("validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// Location returns the location entries are interpreted in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Validation.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// BackupLocation returns the location the backup schedule runs in.
func (c *Config) BackupLocation() *time.Location {
	loc, err := time.LoadLocation(c.Backup.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// String renders the configuration with secrets masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Storage: {DataFile: %q, BackupDir: %q}, ", c.Storage.DataFile, c.Storage.BackupDir))
	b.WriteString(fmt.Sprintf("Import: {MaxFileSize: %d, MaxErrors: %d, MaxWarnings: %d}, ",
		c.Import.MaxFileSize, c.Import.MaxErrors, c.Import.MaxWarnings))
	b.WriteString(fmt.Sprintf("Backup: {Schedule: %q, Timezone: %q}, ", c.Backup.Schedule, c.Backup.Timezone))
	if c.Warehouse.Enabled() {
		b.WriteString(fmt.Sprintf("Warehouse: {URL: [MASKED], Table: %q}, ", c.Warehouse.Table))
	} else {
		b.WriteString("Warehouse: {disabled}, ")
	}
	b.WriteString(fmt.Sprintf("Security: {RequireAPIKey: %v, APIKeys: %d}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys)))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}, ",
		c.Logging.Level, c.Logging.Format))
	b.WriteString(fmt.Sprintf("Timezone: %q", c.Validation.Timezone))
	b.WriteString("}")
	return b.String()
}

func validIdentifier(s string) bool {
	if s == "" || len(s) > 63 {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
