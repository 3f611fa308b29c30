package websocket

import (
	"github.com/Iseelight/interview-backend/internal/model"
	"github.com/Iseelight/interview-backend/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	// ActionStart begins the assessment. Duplicate starts are no-ops.
	ActionStart Action = "start"
	// ActionRespond submits the candidate's answer (typed or voice-built).
	ActionRespond Action = "respond"
	// ActionSpeechDone acknowledges that client-side synthesis of an
	// utterance finished (or failed; failure is still a completion).
	ActionSpeechDone Action = "speech_done"
	// ActionTranscript carries a recognition event from the browser:
	// interim/final text, a coded error, or an unexpected end of capture.
	ActionTranscript Action = "transcript"
	// ActionFaceUpdate carries the continuous face detection signal.
	ActionFaceUpdate Action = "face_update"
	// ActionViolation reports a discrete proctoring violation.
	ActionViolation Action = "violation"
	ActionPing      Action = "ping"
)

// RequestPayload is the single client→server message shape; unused
// fields are ignored per action.
type RequestPayload struct {
	Action Action `json:"action"`

	// respond
	Text         string `json:"text,omitempty"`
	VoiceSourced bool   `json:"voice_sourced,omitempty"`

	// speech_done
	UtteranceID int `json:"utterance_id,omitempty"`

	// transcript
	Transcript string `json:"transcript,omitempty"`
	Final      bool   `json:"final,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
	Ended      bool   `json:"ended,omitempty"`

	// face_update
	FaceDetected bool    `json:"face_detected,omitempty"`
	FaceCount    int     `json:"face_count,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`

	// violation
	Kind     model.AlertKind     `json:"kind,omitempty"`
	Severity model.AlertSeverity `json:"severity,omitempty"`
	Message  string              `json:"message,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventMessage Event = "message"
	EventInterim Event = "interim"
	EventPhase   Event = "phase"
	EventTimer   Event = "timer"
	EventAlert   Event = "alert"
	// EventSpeak asks the client to synthesize the given text and reply
	// with speech_done carrying the same utterance ID.
	EventSpeak Event = "speak"
	// EventMicStart / EventMicStop command the client's capture path.
	EventMicStart Event = "mic_start"
	EventMicStop  Event = "mic_stop"
	// EventVoiceUnavailable tells the client voice input is disabled for
	// the rest of the session; typing remains available.
	EventVoiceUnavailable Event = "voice_unavailable"
	EventResult           Event = "result"
	EventError            Event = "error"
	EventPong             Event = "pong"
)

type MessageEvent struct {
	Event   Event         `json:"event"`
	Message model.Message `json:"message"`
}

// InterimEvent carries the single live interim message. Its ID is always
// model.InterimMessageID; the client replaces it in place, and empty text
// removes it.
type InterimEvent struct {
	Event   Event         `json:"event"`
	Message model.Message `json:"message"`
}

type PhaseEvent struct {
	Event         Event  `json:"event"`
	Phase         string `json:"phase"`
	QuestionIndex int    `json:"question_index"`
}

type TimerEvent struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

type AlertEvent struct {
	Event         Event               `json:"event"`
	Alert         model.SecurityAlert `json:"alert"`
	Violations    int                 `json:"violations"`
	MaxViolations int                 `json:"max_violations"`
}

type SpeakEvent struct {
	Event       Event  `json:"event"`
	UtteranceID int    `json:"utterance_id"`
	Text        string `json:"text"`
}

type MicEvent struct {
	Event Event `json:"event"`
}

type ResultEvent struct {
	Event  Event          `json:"event"`
	Result session.Result `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
