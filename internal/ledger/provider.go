package ledger

import "path/filepath"

// Provider hands out the ledger store for a named bench, hiding which
// backend holds the rows.
type Provider interface {
	ForBench(name string) Store
}

// FileProvider keeps one NDJSON ledger per bench under the results root.
type FileProvider struct {
	Root string
}

func (p FileProvider) ForBench(name string) Store {
	return NewFileStore(filepath.Join(p.Root, name, "ledger.ndjson"))
}
