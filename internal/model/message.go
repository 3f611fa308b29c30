package model

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who produced a conversation message.
type Sender string

const (
	SenderAI        Sender = "AI"
	SenderCandidate Sender = "CANDIDATE"
)

// InterimMessageID is the sentinel ID of the single live interim message.
// At most one interim message exists at a time; new interim text replaces
// it in place and finalization removes it.
var InterimMessageID = uuid.Nil

// Message is a single entry in the assessment conversation. Messages are
// created and mutated only by the session state machine.
type Message struct {
	ID             uuid.UUID `json:"id"`
	Sender         Sender    `json:"sender"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
	IsInterim      bool      `json:"is_interim"`
	IsVoiceSourced bool      `json:"is_voice_sourced"`
}
