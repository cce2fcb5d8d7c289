package pipeline

import (
	"context"
	"sync"
	"time"
)

// throttle spaces out CMS item creation calls so a batch stays under the API
// rate limit. It hands out evenly spaced slots; callers block until their
// slot arrives or their context ends.
type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// newThrottle limits to perMinute calls per minute. Zero or negative disables
// throttling.
func newThrottle(perMinute int) *throttle {
	t := &throttle{}
	if perMinute > 0 {
		t.interval = time.Minute / time.Duration(perMinute)
	}
	return t
}

func (t *throttle) Wait(ctx context.Context) error {
	if t.interval <= 0 {
		return ctx.Err()
	}

	t.mu.Lock()
	now := time.Now()
	slot := t.next
	if slot.Before(now) {
		slot = now
	}
	t.next = slot.Add(t.interval)
	t.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
