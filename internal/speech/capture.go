package speech

import "context"

// Capture is the platform speech-to-text capability consumed by the
// Listener. The concrete binding (browser recognition relayed over the
// candidate WebSocket, or a test double) is not the Listener's concern.
type Capture interface {
	// Start begins a capture stream. It returns once the underlying
	// capability acknowledged the start.
	Start(ctx context.Context) error

	// Events delivers transcript and lifecycle events. The channel is
	// long-lived across restarts; an Ended event marks the end of one
	// capture stream.
	Events() <-chan CaptureEvent

	// Stop ends the current capture stream. Idempotent.
	Stop() error
}

// CaptureEvent is a single event from the capture stream.
type CaptureEvent struct {
	// Text is the transcript fragment. Interim text overwrites the
	// previous interim text; it is never appended.
	Text  string
	Final bool

	// Err carries a recognition error. Transient errors keep the stream
	// alive; the Listener decides based on the error code.
	Err error

	// Ended marks that the underlying capability ended the stream on its
	// own, i.e. not through an explicit Stop.
	Ended bool
}

// Error codes reported by speech capture backends. These mirror the
// browser recognition error taxonomy.
const (
	ErrCodeNoSpeech   = "no-speech"
	ErrCodeNotAllowed = "not-allowed"
	ErrCodeNetwork    = "network"
	ErrCodeAborted    = "aborted"
)

// CaptureError is a coded recognition error.
type CaptureError struct {
	Code string
}

func (e *CaptureError) Error() string {
	return "speech capture: " + e.Code
}

// NewCaptureError builds a CaptureError from a wire error code.
func NewCaptureError(code string) *CaptureError {
	return &CaptureError{Code: code}
}
