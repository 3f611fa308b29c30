package speech

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/antzucaro/matchr"
	"github.com/rs/zerolog"
)

// ListenerState tracks the capture lifecycle.
type ListenerState int

const (
	StateIdle ListenerState = iota
	StateStarting
	StateListening
	StateStopping
)

func (s ListenerState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateListening:
		return "LISTENING"
	case StateStopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrNotIdle          = errors.New("listener is not idle")
	ErrVoiceUnavailable = errors.New("voice capture permanently unavailable")
)

// Restarting the underlying capability before it has fully released
// raises a fatal invalid-state failure, so capture must not begin again
// for this window after any stop.
const defaultCooldown = time.Second

// restartDelay spaces out automatic restarts after the capability ends
// on its own.
const defaultRestartDelay = 1200 * time.Millisecond

// Handlers are the Listener's outbound transcript edge.
type Handlers struct {
	// OnInterim receives provisional text; each call replaces the
	// previous interim text.
	OnInterim func(text string)
	// OnFinal receives normalized final text.
	OnFinal func(text string)
	// OnVoiceUnavailable fires once when capture is permanently disabled
	// (microphone permission denied).
	OnVoiceUnavailable func()
}

// Listener is the speech input adapter: a small state machine around a
// Capture capability that enforces the stop cooldown, normalizes finals,
// and restarts capture when it ends while the session still expects a
// response.
type Listener struct {
	capture Capture
	h       Handlers
	log     zerolog.Logger

	// gate reports whether the session is still awaiting a candidate
	// response. Auto-restart is suppressed when it returns false.
	gate func() bool

	cooldown     time.Duration
	restartDelay time.Duration

	mu        sync.Mutex
	state     ListenerState
	disabled  bool
	lastStop  time.Time
	lastFinal string
	gen       int
	cancel    context.CancelFunc
}

// NewListener creates a Listener over the given capture capability.
// gate may be nil, which disables auto-restart entirely.
func NewListener(capture Capture, gate func() bool, h Handlers, log zerolog.Logger) *Listener {
	return &Listener{
		capture:      capture,
		h:            h,
		gate:         gate,
		log:          log.With().Str("component", "speech_listener").Logger(),
		cooldown:     defaultCooldown,
		restartDelay: defaultRestartDelay,
	}
}

// Start begins listening. Permitted only from Idle and only while voice
// capture is available. A start landing inside the stop cooldown is not
// refused: it is held back and capture begins the moment the window
// closes, so a quick stop/start cycle (e.g. a skipped question followed
// by a short next utterance) never leaves the microphone dead.
func (l *Listener) Start() error {
	l.mu.Lock()
	if l.disabled {
		l.mu.Unlock()
		return ErrVoiceUnavailable
	}
	if l.state != StateIdle {
		l.mu.Unlock()
		return ErrNotIdle
	}

	l.state = StateStarting
	l.gen++
	gen := l.gen

	if wait := l.cooldown - time.Since(l.lastStop); wait > 0 {
		l.mu.Unlock()
		time.AfterFunc(wait, func() { l.beginCapture(gen) })
		return nil
	}
	l.mu.Unlock()

	l.beginCapture(gen)
	return nil
}

// beginCapture launches the pump for a start accepted by Start. A Stop
// or a newer start in the meantime invalidates gen and turns the held
// start into a no-op.
func (l *Listener) beginCapture(gen int) {
	l.mu.Lock()
	if l.gen != gen || l.state != StateStarting || l.disabled {
		l.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.mu.Unlock()

	go l.pump(ctx, gen)
}

// Stop ends listening. Idempotent; records the stop time that anchors
// the restart cooldown.
func (l *Listener) Stop() {
	l.mu.Lock()
	if l.state == StateIdle || l.state == StateStopping {
		l.mu.Unlock()
		return
	}
	l.state = StateStopping
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := l.capture.Stop(); err != nil {
		l.log.Debug().Err(err).Msg("Capture stop error")
	}

	l.mu.Lock()
	l.state = StateIdle
	l.lastStop = time.Now()
	l.mu.Unlock()
}

// State returns the current lifecycle state.
func (l *Listener) State() ListenerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// VoiceDisabled reports whether capture was permanently disabled for
// this session (permission denied).
func (l *Listener) VoiceDisabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disabled
}

func (l *Listener) pump(ctx context.Context, gen int) {
	if err := l.capture.Start(ctx); err != nil {
		l.log.Warn().Err(err).Msg("Capture start failed")
		l.toIdle(gen)
		return
	}

	l.mu.Lock()
	if l.gen != gen || l.state != StateStarting {
		l.mu.Unlock()
		return
	}
	l.state = StateListening
	l.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-l.capture.Events():
			if !ok || ev.Ended {
				l.handleEnded(gen)
				return
			}
			if ev.Err != nil {
				if l.handleCaptureError(ev.Err, gen) {
					return
				}
				continue
			}
			l.handleTranscript(ev, gen)
		}
	}
}

func (l *Listener) handleTranscript(ev CaptureEvent, gen int) {
	if l.stale(gen) {
		return
	}

	if !ev.Final {
		if l.h.OnInterim != nil {
			l.h.OnInterim(ev.Text)
		}
		return
	}

	text := Normalize(ev.Text)
	if text == "" {
		return
	}

	// Recognizer restarts occasionally replay the previous utterance;
	// drop finals that are near-identical to the last one.
	l.mu.Lock()
	prev := l.lastFinal
	l.lastFinal = text
	l.mu.Unlock()
	if prev != "" && nearDuplicate(prev, text) {
		l.log.Debug().Str("text", text).Msg("Dropping replayed final transcript")
		return
	}

	if l.h.OnFinal != nil {
		l.h.OnFinal(text)
	}
}

// handleCaptureError applies the error taxonomy. Returns true when the
// pump should exit.
func (l *Listener) handleCaptureError(err error, gen int) bool {
	var capErr *CaptureError
	if !errors.As(err, &capErr) {
		capErr = &CaptureError{Code: ErrCodeAborted}
	}

	switch capErr.Code {
	case ErrCodeNoSpeech:
		// Transient; the stream keeps running.
		return false

	case ErrCodeNotAllowed:
		l.mu.Lock()
		l.disabled = true
		l.mu.Unlock()
		l.log.Warn().Msg("Microphone permission denied, voice input disabled for session")
		l.Stop()
		if l.h.OnVoiceUnavailable != nil {
			l.h.OnVoiceUnavailable()
		}
		return true

	default:
		l.log.Warn().Str("code", capErr.Code).Msg("Capture error, stopping listener")
		l.Stop()
		if l.h.OnInterim != nil {
			l.h.OnInterim("")
		}
		return true
	}
}

// handleEnded runs when the capability ended on its own. The listener
// restarts after a delay only while the session still awaits a response;
// otherwise it stays idle so a moved-on or terminated session cannot
// trigger a restart storm.
func (l *Listener) handleEnded(gen int) {
	l.mu.Lock()
	if l.gen != gen || l.state == StateStopping {
		l.mu.Unlock()
		return
	}
	l.state = StateIdle
	l.lastStop = time.Now()
	disabled := l.disabled
	l.mu.Unlock()

	if disabled || l.gate == nil || !l.gate() {
		return
	}

	go func() {
		time.Sleep(l.restartDelay)
		if l.gate() {
			if err := l.Start(); err != nil {
				l.log.Debug().Err(err).Msg("Auto-restart skipped")
			}
		}
	}()
}

func (l *Listener) toIdle(gen int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen == gen {
		l.state = StateIdle
		l.lastStop = time.Now()
	}
}

func (l *Listener) stale(gen int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen != gen
}

// nearDuplicate reports whether two finals differ by at most one edit
// per eight characters.
func nearDuplicate(a, b string) bool {
	if a == b {
		return true
	}
	limit := len(a) / 8
	if limit == 0 {
		return false
	}
	return matchr.Levenshtein(a, b) <= limit
}
