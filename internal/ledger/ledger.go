// Package ledger persists the mapping from external scheduler job ids back to
// the run parameters that produced them. The ledger is the boundary between
// the record phase and the report phase: everything the report phase knows is
// reconstructed from ledger rows, in row order.
package ledger

import (
	"context"

	"github.com/hpcbench/multibench/internal/domain"
)

// Entry is one ledger row, written exactly once per successfully submitted
// job and never mutated.
type Entry struct {
	JobID      string               `json:"job_id"`
	RerunIndex int                  `json:"rerun_index"`
	Config     string               `json:"config"`
	OutputFile string               `json:"output_file"`
	SessionID  string               `json:"session_id,omitempty"`
	Inst       domain.Instantiation `json:"instantiation"`
}

// Store is one bench's persisted ledger. Append never rewrites prior rows;
// Reset discards the whole ledger when a bench is clobbered.
type Store interface {
	Append(ctx context.Context, entries []Entry) error
	List(ctx context.Context) ([]Entry, error)
	Reset(ctx context.Context) error
}
