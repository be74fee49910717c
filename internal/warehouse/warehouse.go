// Package warehouse mirrors the dataset into a PostgreSQL table for ad-hoc
// SQL analysis. The CSV file stays the source of truth; each sync replaces
// the whole table inside one transaction.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/circadian/internal/core"
)

// Config holds connection settings.
type Config struct {
	URL      string
	Table    string
	MaxConns int32
	MinConns int32
}

// Warehouse writes records to a Postgres table through a pool.
type Warehouse struct {
	pool   *pgxpool.Pool
	table  pgx.Identifier
	logger *slog.Logger
}

// Open connects, verifies the connection and creates the table if missing.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Warehouse, error) {
	if cfg.URL == "" {
		return nil, errors.New("warehouse: empty database url")
	}
	if logger == nil {
		logger = slog.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MinConns = cfg.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	w := &Warehouse{
		pool:   pool,
		table:  pgx.Identifier{tableName(cfg.Table)},
		logger: logger,
	}
	if err := w.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("connected to warehouse", "database", databaseName(cfg.URL), "table", w.table.Sanitize())
	return w, nil
}

func tableName(name string) string {
	if name == "" {
		return "health_records"
	}
	return name
}

func databaseName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

// EnsureSchema creates the mirror table.
func (w *Warehouse) EnsureSchema(ctx context.Context) error {
	_, err := w.pool.Exec(ctx, createTableSQL(w.table))
	if err != nil {
		return fmt.Errorf("create warehouse table: %w", err)
	}
	return nil
}

func createTableSQL(table pgx.Identifier) string {
	return `CREATE TABLE IF NOT EXISTS ` + table.Sanitize() + ` (
	person_id    TEXT        NOT NULL,
	recorded_at  TIMESTAMPTZ NOT NULL,
	heart_rate   INTEGER     NOT NULL,
	systolic_bp  INTEGER     NOT NULL,
	diastolic_bp INTEGER     NOT NULL,
	energy_level INTEGER     NOT NULL,
	notes        TEXT        NOT NULL DEFAULT '',
	PRIMARY KEY (person_id, recorded_at)
)`
}

var copyColumns = []string{
	"person_id", "recorded_at", "heart_rate", "systolic_bp", "diastolic_bp", "energy_level", "notes",
}

// rows converts records to COPY rows in copyColumns order.
func rows(records []core.Record) [][]any {
	out := make([][]any, len(records))
	for i, r := range records {
		out[i] = []any{
			r.PersonID,
			r.Timestamp,
			int32(r.HeartRate),
			int32(r.SystolicBP),
			int32(r.DiastolicBP),
			int32(r.EnergyLevel),
			r.Notes,
		}
	}
	return out
}

// Replace truncates the table and copies records into it atomically.
func (w *Warehouse) Replace(ctx context.Context, records []core.Record) (int64, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	if _, err := tx.Exec(ctx, "TRUNCATE "+w.table.Sanitize()); err != nil {
		return 0, fmt.Errorf("truncate warehouse table: %w", err)
	}

	n, err := tx.CopyFrom(ctx, w.table, copyColumns, pgx.CopyFromRows(rows(records)))
	if err != nil {
		return 0, fmt.Errorf("copy records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit warehouse sync: %w", err)
	}
	return n, nil
}

// Count returns the number of mirrored rows.
func (w *Warehouse) Count(ctx context.Context) (int64, error) {
	var n int64
	err := w.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+w.table.Sanitize()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count warehouse rows: %w", err)
	}
	return n, nil
}

// Close releases the pool.
func (w *Warehouse) Close() {
	w.pool.Close()
}
