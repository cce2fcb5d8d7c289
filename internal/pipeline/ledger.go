package pipeline

import (
	"sort"
	"sync"
)

// ledger collects item outcomes from concurrent workers. Entries are appended
// as items finish and re-sorted into batch order when read.
type ledger struct {
	mu      sync.Mutex
	entries []LedgerEntry
}

func (l *ledger) append(entry LedgerEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// sorted returns the entries ordered by their position in the generated
// batch, regardless of completion order.
func (l *ledger) sorted() []LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LedgerEntry, len(l.entries))
	copy(out, l.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func summarize(entries []LedgerEntry) Summary {
	summary := Summary{Total: len(entries)}
	for _, entry := range entries {
		switch entry.Status {
		case OutcomeCreated:
			summary.Created++
		case OutcomeSkipped:
			summary.Skipped++
		case OutcomeFailed:
			summary.Failed++
		}
	}
	return summary
}
