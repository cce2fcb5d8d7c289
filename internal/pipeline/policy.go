package pipeline

import "fmt"

// State tracks an item's progress through the pipeline. Created, Skipped and
// Failed are terminal.
type State string

const (
	StatePending  State = "pending"
	StateScraped  State = "scraped"
	StateSelected State = "selected"
	StateUploaded State = "uploaded"
	StateCreated  State = "created"
	StateSkipped  State = "skipped"
	StateFailed   State = "failed"
)

// validTransitions encodes the per-item decision policy: an item either walks
// the full scrape-select-upload-create path, exits early as skipped when no
// images exist, or fails at any stage.
var validTransitions = map[State][]State{
	StatePending:  {StateScraped, StateFailed},
	StateScraped:  {StateSelected, StateSkipped, StateFailed},
	StateSelected: {StateUploaded, StateFailed},
	StateUploaded: {StateCreated, StateFailed},
}

// CanTransition reports whether moving from one state to another is allowed.
func CanTransition(from, to State) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a state ends item processing.
func IsTerminal(s State) bool {
	return s == StateCreated || s == StateSkipped || s == StateFailed
}

// tracker guards the per-item state walk. An invalid transition is a bug in
// the pipeline, not an input condition, so it panics.
type tracker struct {
	state State
}

func newTracker() *tracker {
	return &tracker{state: StatePending}
}

func (t *tracker) to(next State) {
	if !CanTransition(t.state, next) {
		panic(fmt.Sprintf("invalid item state transition %s -> %s", t.state, next))
	}
	t.state = next
}
