package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hpcbench/multibench/internal/domain"
)

func entry(jobID string, rerun int) Entry {
	return Entry{
		JobID:      jobID,
		RerunIndex: rerun,
		Config:     "ref",
		OutputFile: "ref__r0__" + jobID + ".out",
		Inst:       domain.NewInstantiation(domain.Field{Name: "args", Value: "-n 1"}),
	}
}

func TestGroupsSplitOnIndexReset(t *testing.T) {
	entries := []Entry{
		entry("1", 0), entry("2", 1), entry("3", 2),
		entry("4", 0), entry("5", 1),
	}
	groups := Groups(entries)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[0].Entries) != 3 || len(groups[1].Entries) != 2 {
		t.Fatalf("expected sizes 3 and 2, got %d and %d",
			len(groups[0].Entries), len(groups[1].Entries))
	}
	if groups[0].Entries[0].JobID != "1" || groups[1].Entries[0].JobID != "4" {
		t.Fatalf("group order not preserved")
	}
}

func TestGroupsSplitOnSessionChange(t *testing.T) {
	first := entry("1", 0)
	first.SessionID = "session-a"
	second := entry("2", 1)
	second.SessionID = "session-b"
	groups := Groups([]Entry{first, second})
	if len(groups) != 2 {
		t.Fatalf("entries from different sessions must not share a group, got %d groups", len(groups))
	}
}

func TestGroupsSplitOnInstantiationChange(t *testing.T) {
	first := entry("1", 0)
	second := Entry{
		JobID:      "2",
		RerunIndex: 1,
		Config:     "ref",
		Inst:       domain.NewInstantiation(domain.Field{Name: "args", Value: "-n 2"}),
	}
	groups := Groups([]Entry{first, second})
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "scaling", "ledger.ndjson"))

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("missing ledger must not be an error: %v", err)
	}
	if entries != nil {
		t.Fatalf("expected no entries, got %v", entries)
	}

	written := []Entry{
		{
			JobID:      "101",
			RerunIndex: 0,
			Config:     "ref",
			OutputFile: "ref__nodes=2__r0__101.out",
			SessionID:  "session-1",
			Inst: domain.NewInstantiation(
				domain.Field{Name: "nodes", Value: 2},
				domain.Field{Name: "args", Value: "-n 1"},
			),
		},
	}
	if err := store.Append(ctx, written); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(ctx, []Entry{{JobID: "102", RerunIndex: 1, Config: "ref", SessionID: "session-1", Inst: written[0].Inst}}); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err = store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(entries))
	}
	if entries[0].JobID != "101" || entries[1].JobID != "102" {
		t.Fatalf("row order not preserved: %v", entries)
	}
	if !entries[0].Inst.Equal(written[0].Inst) {
		t.Fatalf("instantiation did not survive round trip: %s vs %s",
			entries[0].Inst, written[0].Inst)
	}
	if entries[0].Inst.Canonical() != "nodes=2,args=-n 1" {
		t.Fatalf("canonical form drifted: %s", entries[0].Inst.Canonical())
	}
}

func TestFileStoreCorruptRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.ndjson")
	if err := os.WriteFile(path, []byte("{not json}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFileStore(path).List(context.Background()); err == nil {
		t.Fatalf("corrupt row must be a hard failure")
	}
}

func TestFileStoreReset(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "ledger.ndjson"))
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset of missing ledger must succeed: %v", err)
	}
	if err := store.Append(ctx, []Entry{entry("1", 0)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	entries, err := store.List(ctx)
	if err != nil || entries != nil {
		t.Fatalf("expected empty ledger after reset, got %v %v", entries, err)
	}
}
