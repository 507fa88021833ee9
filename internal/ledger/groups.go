package ledger

import "github.com/hpcbench/multibench/internal/domain"

// RerunGroup is the set of ledger entries recording repeated executions of
// one (configuration, instantiation) pair, in rerun order.
type RerunGroup struct {
	Config        string
	Instantiation domain.Instantiation
	Entries       []Entry
}

// Groups reconstructs rerun groups from ledger rows in file order. The group
// delimiter is positional: a row starts a new group whenever its rerun index
// is not the previous index plus one. Rows carrying a recording-session id
// additionally never join a group from another session, which guards the
// positional rule against a recording pass interrupted mid-group.
func Groups(entries []Entry) []RerunGroup {
	var groups []RerunGroup
	for idx, entry := range entries {
		if idx == 0 || startsNewGroup(entries[idx-1], entry) {
			groups = append(groups, RerunGroup{
				Config:        entry.Config,
				Instantiation: entry.Inst,
			})
		}
		last := &groups[len(groups)-1]
		last.Entries = append(last.Entries, entry)
	}
	return groups
}

func startsNewGroup(prev, next Entry) bool {
	if next.RerunIndex != prev.RerunIndex+1 {
		return true
	}
	if next.SessionID != prev.SessionID {
		return true
	}
	if next.Config != prev.Config {
		return true
	}
	return !next.Inst.Equal(prev.Inst)
}
