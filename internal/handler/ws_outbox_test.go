package handler

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestOutboxRunsPostedWorkInOrder(t *testing.T) {
	o := newOutbox(16, zerolog.Nop())
	defer o.close()

	results := make(chan int, 3)
	for i := 1; i <= 3; i++ {
		i := i
		o.post(func() { results <- i })
	}

	for want := 1; want <= 3; want++ {
		select {
		case got := <-results:
			if got != want {
				t.Fatalf("work ran out of order: got %d, want %d", got, want)
			}
		case <-time.After(time.Second):
			t.Fatal("posted work never ran")
		}
	}
}

func TestOutboxPostNeverBlocks(t *testing.T) {
	o := newOutbox(1, zerolog.Nop())
	defer o.close()

	started := make(chan struct{})
	release := make(chan struct{})
	o.post(func() {
		close(started)
		<-release
	})
	<-started
	o.post(func() {}) // fills the one-slot buffer

	// With the runner stalled and the buffer full, further posts must
	// drop instead of blocking the caller.
	done := make(chan struct{})
	go func() {
		o.post(func() {})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("post blocked on a full buffer")
	}
	close(release)
}

func TestOutboxPostAfterCloseIsNoOp(t *testing.T) {
	o := newOutbox(4, zerolog.Nop())
	o.close()

	o.post(func() { t.Error("work ran after close") })
	o.close() // idempotent
	time.Sleep(10 * time.Millisecond)
}
