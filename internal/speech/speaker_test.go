package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// blockingBackend waits for ctx cancellation unless release is closed.
type blockingBackend struct {
	mu      sync.Mutex
	calls   []string
	release chan struct{}
}

func (b *blockingBackend) Synthesize(ctx context.Context, text string) error {
	b.mu.Lock()
	b.calls = append(b.calls, text)
	release := b.release
	b.mu.Unlock()

	if release == nil {
		return nil
	}
	select {
	case <-release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type failingBackend struct{}

func (failingBackend) Synthesize(ctx context.Context, text string) error {
	return errors.New("synthesis exploded")
}

func TestSpeakerSoftCompletesOnBackendError(t *testing.T) {
	sp := NewSpeaker(failingBackend{}, zerolog.Nop())

	if err := sp.Synthesize(context.Background(), "hello"); err != nil {
		t.Errorf("backend error should soft-complete, got %v", err)
	}
}

func TestSpeakerReportsCallerCancellation(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	sp := NewSpeaker(backend, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sp.Synthesize(ctx, "long speech") }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("synthesize did not return after cancellation")
	}
}

func TestSpeakerCancelsPreviousUtterance(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	sp := NewSpeaker(backend, zerolog.Nop())

	firstDone := make(chan error, 1)
	go func() { firstDone <- sp.Synthesize(context.Background(), "first") }()

	waitFor(t, "first utterance in flight", func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return len(backend.calls) == 1
	})

	secondDone := make(chan error, 1)
	go func() { secondDone <- sp.Synthesize(context.Background(), "second") }()

	// The first utterance was cancelled internally, not by its caller, so
	// it completes softly.
	select {
	case err := <-firstDone:
		if err != nil {
			t.Errorf("superseded utterance returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("superseded utterance never completed")
	}

	close(backend.release)
	select {
	case err := <-secondDone:
		if err != nil {
			t.Errorf("second utterance returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("second utterance never completed")
	}
}

func TestSpeakerCancelActive(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	sp := NewSpeaker(backend, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- sp.Synthesize(context.Background(), "speech") }()

	waitFor(t, "utterance in flight", func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return len(backend.calls) == 1
	})

	sp.CancelActive()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("cancelled utterance returned %v, want nil (soft completion)", err)
		}
	case <-time.After(time.Second):
		t.Fatal("utterance never completed after CancelActive")
	}
}
