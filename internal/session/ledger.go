package session

import "github.com/codebuildervaibhav/whisper-session/internal/types"

// Ledger tracks in-flight model resources in the order the worker first
// announced them. A resource removed by its done event is retired until the
// current load cycle ends, so a late initiate cannot bring it back.
type Ledger struct {
	entries []types.ProgressEntry
	retired map[string]struct{}
}

// UpsertOnInitiate appends an entry. It reports false when the resource id
// is empty, already tracked, or retired in this load cycle.
func (l *Ledger) UpsertOnInitiate(entry types.ProgressEntry) bool {
	if entry.ResourceID == "" {
		return false
	}
	if _, ok := l.retired[entry.ResourceID]; ok {
		return false
	}
	if l.indexOf(entry.ResourceID) >= 0 {
		return false
	}

	l.entries = append(l.entries, entry)
	return true
}

// UpdateProgress sets the progress ratio of a tracked resource and, when
// known, its loaded byte count. Unknown ids are ignored.
func (l *Ledger) UpdateProgress(resourceID string, progress float64, loaded *float64) bool {
	i := l.indexOf(resourceID)
	if i < 0 {
		return false
	}

	l.entries[i].Progress = progress
	l.entries[i].Status = types.StatusProgress
	if loaded != nil {
		l.entries[i].Loaded = *loaded
	}
	return true
}

// RemoveOnDone drops a resource and retires its id
func (l *Ledger) RemoveOnDone(resourceID string) bool {
	i := l.indexOf(resourceID)
	if i < 0 {
		return false
	}

	l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
	if l.retired == nil {
		l.retired = make(map[string]struct{})
	}
	l.retired[resourceID] = struct{}{}
	return true
}

// EndCycle forgets retired ids so the next model load can reuse them
func (l *Ledger) EndCycle() {
	l.retired = nil
}

// Entries returns a copy of the tracked resources in insertion order
func (l *Ledger) Entries() []types.ProgressEntry {
	out := make([]types.ProgressEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of tracked resources
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Clone returns an independent copy
func (l Ledger) Clone() Ledger {
	c := Ledger{entries: l.Entries()}
	if l.retired != nil {
		c.retired = make(map[string]struct{}, len(l.retired))
		for id := range l.retired {
			c.retired[id] = struct{}{}
		}
	}
	return c
}

func (l *Ledger) indexOf(resourceID string) int {
	for i := range l.entries {
		if l.entries[i].ResourceID == resourceID {
			return i
		}
	}
	return -1
}
