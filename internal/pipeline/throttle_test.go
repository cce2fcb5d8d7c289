package pipeline

import (
	"context"
	"testing"
	"time"
)

func TestThrottleDisabled(t *testing.T) {
	th := newThrottle(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := th.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("disabled throttle blocked for %v", elapsed)
	}
}

func TestThrottleSpacesCalls(t *testing.T) {
	// 6000/min = one slot per 10ms.
	th := newThrottle(6000)
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := th.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	// First call is immediate, the next four wait one interval each.
	if elapsed := time.Since(start); elapsed < 35*time.Millisecond {
		t.Fatalf("5 calls completed in %v, want >= ~40ms of spacing", elapsed)
	}
}

func TestThrottleHonorsContext(t *testing.T) {
	th := newThrottle(1) // one call per minute
	if err := th.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := th.Wait(ctx); err != context.DeadlineExceeded {
		t.Fatalf("Wait = %v, want context.DeadlineExceeded", err)
	}
}
