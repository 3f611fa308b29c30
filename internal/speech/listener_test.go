package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeCapture struct {
	mu      sync.Mutex
	events  chan CaptureEvent
	started int
	stopped int
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{events: make(chan CaptureEvent, 16)}
}

func (f *fakeCapture) Start(ctx context.Context) error {
	f.mu.Lock()
	f.started++
	f.mu.Unlock()
	return nil
}

func (f *fakeCapture) Events() <-chan CaptureEvent { return f.events }

func (f *fakeCapture) Stop() error {
	f.mu.Lock()
	f.stopped++
	f.mu.Unlock()
	return nil
}

func (f *fakeCapture) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

type transcriptSink struct {
	mu          sync.Mutex
	interims    []string
	finals      []string
	unavailable int
}

func (s *transcriptSink) handlers() Handlers {
	return Handlers{
		OnInterim: func(text string) {
			s.mu.Lock()
			s.interims = append(s.interims, text)
			s.mu.Unlock()
		},
		OnFinal: func(text string) {
			s.mu.Lock()
			s.finals = append(s.finals, text)
			s.mu.Unlock()
		},
		OnVoiceUnavailable: func() {
			s.mu.Lock()
			s.unavailable++
			s.mu.Unlock()
		},
	}
}

func (s *transcriptSink) finalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.finals)
}

func (s *transcriptSink) lastFinal() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.finals) == 0 {
		return ""
	}
	return s.finals[len(s.finals)-1]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startListening(t *testing.T, l *Listener) {
	t.Helper()
	if err := l.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "listening state", func() bool { return l.State() == StateListening })
}

func TestListenerDeliversNormalizedFinals(t *testing.T) {
	capture := newFakeCapture()
	sink := &transcriptSink{}
	l := NewListener(capture, nil, sink.handlers(), zerolog.Nop())

	startListening(t, l)

	capture.events <- CaptureEvent{Text: "um I worked"}
	capture.events <- CaptureEvent{Text: "um I worked on billing", Final: true}

	waitFor(t, "final transcript", func() bool { return sink.finalCount() == 1 })

	// Interim text passes through raw; finals are normalized.
	sink.mu.Lock()
	interim := sink.interims[0]
	sink.mu.Unlock()
	if interim != "um I worked" {
		t.Errorf("interim = %q, want raw text", interim)
	}
	if got := sink.lastFinal(); got != "I worked on billing" {
		t.Errorf("final = %q, want normalized text", got)
	}
}

func TestListenerDropsReplayedFinal(t *testing.T) {
	capture := newFakeCapture()
	sink := &transcriptSink{}
	l := NewListener(capture, nil, sink.handlers(), zerolog.Nop())

	startListening(t, l)

	capture.events <- CaptureEvent{Text: "this is my answer to the question", Final: true}
	capture.events <- CaptureEvent{Text: "this is my answer to the question", Final: true}
	capture.events <- CaptureEvent{Text: "a completely different answer", Final: true}

	waitFor(t, "distinct finals", func() bool { return sink.finalCount() == 2 })
	time.Sleep(20 * time.Millisecond)
	if got := sink.finalCount(); got != 2 {
		t.Errorf("finals = %d, want 2 (replay dropped)", got)
	}
}

func TestListenerStartOnlyFromIdle(t *testing.T) {
	capture := newFakeCapture()
	l := NewListener(capture, nil, Handlers{}, zerolog.Nop())

	startListening(t, l)

	if err := l.Start(); !errors.Is(err, ErrNotIdle) {
		t.Fatalf("second start: %v, want ErrNotIdle", err)
	}
}

func TestListenerStartDuringCooldownDefers(t *testing.T) {
	capture := newFakeCapture()
	l := NewListener(capture, nil, Handlers{}, zerolog.Nop())
	l.cooldown = 40 * time.Millisecond

	startListening(t, l)
	l.Stop()

	// A start inside the cooldown is accepted, held back, and fires on
	// its own once the window closes; the capture must come back without
	// any further call.
	if err := l.Start(); err != nil {
		t.Fatalf("start inside cooldown: %v", err)
	}
	if got := capture.startCount(); got != 1 {
		t.Fatalf("capture started %d times before cooldown elapsed, want 1", got)
	}

	waitFor(t, "deferred capture start", func() bool { return capture.startCount() == 2 })
	waitFor(t, "listening state", func() bool { return l.State() == StateListening })
}

func TestListenerStopCancelsDeferredStart(t *testing.T) {
	capture := newFakeCapture()
	l := NewListener(capture, nil, Handlers{}, zerolog.Nop())
	l.cooldown = 30 * time.Millisecond

	startListening(t, l)
	l.Stop()

	if err := l.Start(); err != nil {
		t.Fatalf("start inside cooldown: %v", err)
	}
	l.Stop()

	time.Sleep(60 * time.Millisecond)
	if got := capture.startCount(); got != 1 {
		t.Errorf("capture started %d times, want 1 (held start cancelled)", got)
	}
	if got := l.State(); got != StateIdle {
		t.Errorf("state = %s, want IDLE", got)
	}
}

func TestListenerPermissionDeniedDisablesVoice(t *testing.T) {
	capture := newFakeCapture()
	sink := &transcriptSink{}
	l := NewListener(capture, nil, sink.handlers(), zerolog.Nop())

	startListening(t, l)

	capture.events <- CaptureEvent{Err: NewCaptureError(ErrCodeNotAllowed)}

	waitFor(t, "voice unavailable", func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return sink.unavailable == 1
	})

	if !l.VoiceDisabled() {
		t.Error("listener should be permanently disabled")
	}
	if err := l.Start(); !errors.Is(err, ErrVoiceUnavailable) {
		t.Errorf("start after denial: %v, want ErrVoiceUnavailable", err)
	}
}

func TestListenerAutoRestartsWhileAwaitingResponse(t *testing.T) {
	capture := newFakeCapture()
	l := NewListener(capture, func() bool { return true }, Handlers{}, zerolog.Nop())
	l.cooldown = 5 * time.Millisecond
	l.restartDelay = 10 * time.Millisecond

	startListening(t, l)

	capture.events <- CaptureEvent{Ended: true}
	waitFor(t, "auto restart", func() bool { return capture.startCount() == 2 })
}

func TestListenerNoRestartWhenGateClosed(t *testing.T) {
	capture := newFakeCapture()
	l := NewListener(capture, func() bool { return false }, Handlers{}, zerolog.Nop())
	l.cooldown = 5 * time.Millisecond
	l.restartDelay = 10 * time.Millisecond

	startListening(t, l)

	capture.events <- CaptureEvent{Ended: true}
	waitFor(t, "idle state", func() bool { return l.State() == StateIdle })

	time.Sleep(40 * time.Millisecond)
	if got := capture.startCount(); got != 1 {
		t.Errorf("capture started %d times, want 1 (no restart)", got)
	}
}
