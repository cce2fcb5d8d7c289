package pipeline

import (
	"sync"
	"testing"
)

func TestLedgerSortsByBatchOrder(t *testing.T) {
	board := &ledger{}
	var wg sync.WaitGroup
	for _, idx := range []int{3, 0, 2, 1} {
		idx := idx
		wg.Add(1)
		go func() {
			defer wg.Done()
			board.append(LedgerEntry{Index: idx, Status: OutcomeCreated})
		}()
	}
	wg.Wait()

	entries := board.sorted()
	for i, entry := range entries {
		if entry.Index != i {
			t.Fatalf("entries[%d].Index = %d", i, entry.Index)
		}
	}
}

func TestSummarizeReconciles(t *testing.T) {
	entries := []LedgerEntry{
		{Status: OutcomeCreated},
		{Status: OutcomeCreated},
		{Status: OutcomeSkipped},
		{Status: OutcomeFailed},
	}
	got := summarize(entries)
	want := Summary{Total: 4, Created: 2, Skipped: 1, Failed: 1}
	if got != want {
		t.Fatalf("summarize = %+v, want %+v", got, want)
	}
	if got.Total != got.Created+got.Skipped+got.Failed {
		t.Fatalf("summary does not reconcile: %+v", got)
	}
}
