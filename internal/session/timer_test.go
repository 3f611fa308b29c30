package session

import (
	"sync"
	"testing"
	"time"
)

type tickSink struct {
	mu      sync.Mutex
	ticks   []int
	expired bool
}

func (ts *tickSink) onTick(remaining int) {
	ts.mu.Lock()
	ts.ticks = append(ts.ticks, remaining)
	ts.mu.Unlock()
}

func (ts *tickSink) onExpire() {
	ts.mu.Lock()
	ts.expired = true
	ts.mu.Unlock()
}

func (ts *tickSink) snapshot() ([]int, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]int(nil), ts.ticks...), ts.expired
}

func TestCountdownTicksDownAndExpires(t *testing.T) {
	sink := &tickSink{}
	c := NewCountdown(3, 5*time.Millisecond, sink.onTick, sink.onExpire)

	c.Start()
	waitFor(t, "expiry", func() bool {
		_, expired := sink.snapshot()
		return expired
	})

	ticks, _ := sink.snapshot()
	want := []int{2, 1, 0}
	if len(ticks) != len(want) {
		t.Fatalf("ticks = %v, want %v", ticks, want)
	}
	for i := range want {
		if ticks[i] != want[i] {
			t.Fatalf("ticks = %v, want %v", ticks, want)
		}
	}
}

func TestCountdownStartIsIdempotent(t *testing.T) {
	sink := &tickSink{}
	c := NewCountdown(3, 5*time.Millisecond, sink.onTick, sink.onExpire)

	c.Start()
	c.Start()
	waitFor(t, "expiry", func() bool {
		_, expired := sink.snapshot()
		return expired
	})

	// A doubled ticker would have produced six ticks.
	ticks, _ := sink.snapshot()
	if len(ticks) != 3 {
		t.Errorf("ticks = %v, want exactly 3", ticks)
	}
}

func TestCountdownStopSilencesCallbacks(t *testing.T) {
	sink := &tickSink{}
	c := NewCountdown(100, 5*time.Millisecond, sink.onTick, sink.onExpire)

	c.Start()
	c.Stop()
	c.Stop() // idempotent

	before, _ := sink.snapshot()
	time.Sleep(30 * time.Millisecond)
	after, expired := sink.snapshot()

	if expired {
		t.Error("stopped countdown expired")
	}
	if len(after)-len(before) > 1 {
		// At most one tick may have been in flight at Stop time.
		t.Errorf("ticks kept arriving after Stop: %v -> %v", before, after)
	}
}

func TestCountdownStopBeforeStart(t *testing.T) {
	sink := &tickSink{}
	c := NewCountdown(5, 5*time.Millisecond, sink.onTick, sink.onExpire)

	c.Stop()
	c.Start()

	time.Sleep(30 * time.Millisecond)
	ticks, expired := sink.snapshot()
	if len(ticks) != 0 || expired {
		t.Errorf("pre-stopped countdown ran: ticks=%v expired=%t", ticks, expired)
	}
	if c.Remaining() != 5 {
		t.Errorf("remaining = %d, want 5", c.Remaining())
	}
}
