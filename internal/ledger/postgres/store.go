package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hpcbench/multibench/internal/ledger"
)

// DB is the subset of *sql.DB the store needs, split out so tests can fake
// the database.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Store is one bench's view of the shared ledger database.
type Store struct {
	db    DB
	bench string
}

func NewStore(db DB, bench string) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db, bench: bench}
}

func (s *Store) Append(ctx context.Context, entries []ledger.Entry) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("ledger store not initialized")
	}
	for _, entry := range entries {
		instantiation, err := json.Marshal(entry.Inst)
		if err != nil {
			return fmt.Errorf("encode instantiation: %w", err)
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO ledger_entries (bench, job_id, rerun_index, config, output_file, session_id, instantiation)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			s.bench, entry.JobID, entry.RerunIndex, entry.Config,
			entry.OutputFile, entry.SessionID, instantiation)
		if err != nil {
			return fmt.Errorf("append ledger row: %w", err)
		}
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]ledger.Entry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("ledger store not initialized")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, rerun_index, config, output_file, session_id, instantiation
		 FROM ledger_entries WHERE bench = $1 ORDER BY seq`, s.bench)
	if err != nil {
		return nil, fmt.Errorf("list ledger rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []ledger.Entry
	for rows.Next() {
		var entry ledger.Entry
		var instantiation []byte
		if err := rows.Scan(&entry.JobID, &entry.RerunIndex, &entry.Config,
			&entry.OutputFile, &entry.SessionID, &instantiation); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		if err := json.Unmarshal(instantiation, &entry.Inst); err != nil {
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
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE bench = $1`, s.bench); err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}
	return nil
}

// Provider hands out per-bench stores backed by one shared database.
type Provider struct {
	DB DB
}

func (p Provider) ForBench(name string) ledger.Store {
	return NewStore(p.DB, name)
}
