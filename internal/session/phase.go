package session

// Phase is the current discrete stage of the session state machine.
// Exactly one phase is active at any instant and transitions happen only
// on the session's event loop.
type Phase int

const (
	PhaseNotStarted Phase = iota
	// PhaseSpeaking covers synthesis of the current question (and the
	// welcome text before question zero).
	PhaseSpeaking
	// PhaseAwaitingResponse means the candidate may answer the current
	// question, by voice or typed text.
	PhaseAwaitingResponse
	// PhaseProcessing is the short "thinking" window between an accepted
	// answer and the next question.
	PhaseProcessing
	PhaseCompleted
	PhaseTerminated
)

// Terminal reports whether the phase is absorbing: no further transitions
// and no further side effects are permitted.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseTerminated
}

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "NOT_STARTED"
	case PhaseSpeaking:
		return "SPEAKING"
	case PhaseAwaitingResponse:
		return "AWAITING_RESPONSE"
	case PhaseProcessing:
		return "PROCESSING"
	case PhaseCompleted:
		return "COMPLETED"
	case PhaseTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Reason explains why a session entered PhaseTerminated.
type Reason string

const (
	ReasonViolation    Reason = "violation"
	ReasonTimeout      Reason = "timeout"
	ReasonDisconnected Reason = "disconnected"
)
