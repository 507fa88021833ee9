package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hpcbench/multibench/internal/domain"
	"github.com/hpcbench/multibench/internal/ledger"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()

	store := NewStore(db, "scaling")
	other := NewStore(db, "other-bench")

	entries := []ledger.Entry{
		{
			JobID:      "101",
			RerunIndex: 0,
			Config:     "ref",
			OutputFile: "ref__nodes=2__r0__101.out",
			SessionID:  "session-1",
			Inst:       domain.NewInstantiation(domain.Field{Name: "nodes", Value: 2}),
		},
		{
			JobID:      "102",
			RerunIndex: 1,
			Config:     "ref",
			OutputFile: "ref__nodes=2__r1__102.out",
			SessionID:  "session-1",
			Inst:       domain.NewInstantiation(domain.Field{Name: "nodes", Value: 2}),
		},
	}
	if err := store.Append(ctx, entries); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := other.Append(ctx, []ledger.Entry{{JobID: "999", Config: "ref"}}); err != nil {
		t.Fatalf("append other bench: %v", err)
	}

	listed, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 rows scoped to bench, got %d", len(listed))
	}
	if listed[0].JobID != "101" || listed[1].JobID != "102" {
		t.Fatalf("row order not preserved: %v", listed)
	}
	if listed[0].Inst.Canonical() != "nodes=2" {
		t.Fatalf("instantiation did not survive round trip: %s", listed[0].Inst)
	}

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	listed, err = store.List(ctx)
	if err != nil {
		t.Fatalf("list after reset: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected empty ledger after reset, got %d rows", len(listed))
	}
	remaining, err := other.List(ctx)
	if err != nil || len(remaining) != 1 {
		t.Fatalf("reset must not touch other benches: %v %v", remaining, err)
	}
}
