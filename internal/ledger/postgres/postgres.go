// Package postgres backs the run ledger with a shared Postgres database, for
// teams recording from a cluster head node into central results storage.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/hpcbench/multibench/internal/platform/env"
)

type Config struct {
	URL             string
	PingTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func ConfigFromEnv() (Config, error) {
	pingTimeout, err := env.Duration("MULTIBENCH_DB_PING_TIMEOUT", 2*time.Second)
	if err != nil {
		return Config{}, err
	}
	maxOpenConns, err := env.Int("MULTIBENCH_DB_MAX_OPEN_CONNS", 4)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := env.Int("MULTIBENCH_DB_MAX_IDLE_CONNS", 2)
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := env.Duration("MULTIBENCH_DB_CONN_MAX_LIFETIME", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		URL:             env.String("MULTIBENCH_DB_URL", ""),
		PingTimeout:     pingTimeout,
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxLifetime: connMaxLifetime,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("MULTIBENCH_DB_URL is required")
	}
	if c.PingTimeout <= 0 {
		return errors.New("MULTIBENCH_DB_PING_TIMEOUT must be positive")
	}
	if c.MaxOpenConns < 1 {
		return errors.New("MULTIBENCH_DB_MAX_OPEN_CONNS must be >= 1")
	}
	if c.MaxIdleConns < 0 || c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("MULTIBENCH_DB_MAX_IDLE_CONNS must be between 0 and MULTIBENCH_DB_MAX_OPEN_CONNS")
	}
	if c.ConnMaxLifetime < 0 {
		return errors.New("MULTIBENCH_DB_CONN_MAX_LIFETIME must be >= 0")
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	seq           BIGSERIAL PRIMARY KEY,
	bench         TEXT NOT NULL,
	job_id        TEXT NOT NULL,
	rerun_index   INTEGER NOT NULL,
	config        TEXT NOT NULL,
	output_file   TEXT NOT NULL,
	session_id    TEXT NOT NULL DEFAULT '',
	instantiation JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS ledger_entries_bench ON ledger_entries (bench, seq);
`

// Open connects, pings, and ensures the ledger schema exists.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return db, nil
}
