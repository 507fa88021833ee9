// Package sqlite backs the run ledger with a local single-file database, for
// hosts where several benches share one results database but no server is
// available.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/hpcbench/multibench/internal/ledger"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	bench         TEXT NOT NULL,
	job_id        TEXT NOT NULL,
	rerun_index   INTEGER NOT NULL,
	config        TEXT NOT NULL,
	output_file   TEXT NOT NULL,
	session_id    TEXT NOT NULL DEFAULT '',
	instantiation TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS ledger_entries_bench ON ledger_entries (bench, seq);
`

// Open opens (creating if necessary) the ledger database at path.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping ledger database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return db, nil
}

// Store is one bench's view of the shared ledger database.
type Store struct {
	db    *sql.DB
	bench string
}

func NewStore(db *sql.DB, bench string) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db, bench: bench}
}

func (s *Store) Append(ctx context.Context, entries []ledger.Entry) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("ledger store not initialized")
	}
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger append: %w", err)
	}
	for _, entry := range entries {
		instantiation, err := json.Marshal(entry.Inst)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encode instantiation: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO ledger_entries (bench, job_id, rerun_index, config, output_file, session_id, instantiation)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			s.bench, entry.JobID, entry.RerunIndex, entry.Config,
			entry.OutputFile, entry.SessionID, string(instantiation))
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append ledger row: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) List(ctx context.Context) ([]ledger.Entry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("ledger store not initialized")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, rerun_index, config, output_file, session_id, instantiation
		 FROM ledger_entries WHERE bench = ? ORDER BY seq`, s.bench)
	if err != nil {
		return nil, fmt.Errorf("list ledger rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []ledger.Entry
	for rows.Next() {
		var entry ledger.Entry
		var instantiation string
		if err := rows.Scan(&entry.JobID, &entry.RerunIndex, &entry.Config,
			&entry.OutputFile, &entry.SessionID, &instantiation); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		if err := json.Unmarshal([]byte(instantiation), &entry.Inst); err != nil {
			return nil, fmt.Errorf("ledger row for job %s: %w", entry.JobID, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ledger rows: %w", err)
	}
	return entries, nil
}

func (s *Store) Reset(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("ledger store not initialized")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE bench = ?`, s.bench); err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}
	return nil
}

// Provider hands out per-bench stores backed by one shared database.
type Provider struct {
	DB *sql.DB
}

func (p Provider) ForBench(name string) ledger.Store {
	return NewStore(p.DB, name)
}
