package speech

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Backend performs the actual text-to-speech delivery, e.g. asking the
// candidate client to synthesize and waiting for its acknowledgement.
type Backend interface {
	Synthesize(ctx context.Context, text string) error
}

// Speaker is the speech output adapter: it guarantees at most one active
// utterance system-wide by cancelling any in-flight synthesis before a
// new one starts, and turns backend errors into soft completions.
type Speaker struct {
	backend Backend
	log     zerolog.Logger

	mu     sync.Mutex
	seq    int
	cancel context.CancelFunc
}

// NewSpeaker wraps a synthesis backend.
func NewSpeaker(backend Backend, log zerolog.Logger) *Speaker {
	return &Speaker{
		backend: backend,
		log:     log.With().Str("component", "speech_speaker").Logger(),
	}
}

// Synthesize speaks the given text, cancelling any utterance still in
// flight. It returns nil on synthesis errors so the caller always sees a
// completion; only caller-side cancellation is reported.
func (sp *Speaker) Synthesize(ctx context.Context, text string) error {
	sp.mu.Lock()
	if sp.cancel != nil {
		sp.cancel()
	}
	sp.seq++
	seq := sp.seq
	cctx, cancel := context.WithCancel(ctx)
	sp.cancel = cancel
	sp.mu.Unlock()

	err := sp.backend.Synthesize(cctx, text)

	sp.mu.Lock()
	if sp.seq == seq {
		sp.cancel = nil
	}
	sp.mu.Unlock()
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Soft completion: a broken utterance must not stall the session.
		sp.log.Warn().Err(err).Msg("Synthesis error, completing anyway")
	}
	return nil
}

// CancelActive aborts any in-flight utterance without starting a new one.
func (sp *Speaker) CancelActive() {
	sp.mu.Lock()
	cancel := sp.cancel
	sp.cancel = nil
	sp.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
