package model

import (
	"time"

	"github.com/google/uuid"
)

// AlertKind enumerates proctoring violation categories reported by the
// in-browser face detection widget.
type AlertKind string

const (
	AlertFaceNotDetected AlertKind = "FACE_NOT_DETECTED"
	AlertLookingAway     AlertKind = "LOOKING_AWAY"
	AlertMultipleFaces   AlertKind = "MULTIPLE_FACES"
	AlertTabSwitch       AlertKind = "TAB_SWITCH"
)

// AlertSeverity grades how serious a violation is. High severity
// terminates the session immediately regardless of the running count.
type AlertSeverity string

const (
	SeverityLow    AlertSeverity = "LOW"
	SeverityMedium AlertSeverity = "MEDIUM"
	SeverityHigh   AlertSeverity = "HIGH"
)

// SecurityAlert is a single proctoring violation record. The per-session
// alert set is append-only; alerts are never removed or mutated.
type SecurityAlert struct {
	ID        uuid.UUID     `json:"id"`
	Kind      AlertKind     `json:"kind"`
	Message   string        `json:"message"`
	Severity  AlertSeverity `json:"severity"`
	Timestamp time.Time     `json:"timestamp"`
}

// FaceDetectionUpdate is the continuous signal from the face monitor.
// The session only consumes faceDetected; the rest is forwarded to the
// recruiter monitor for display.
type FaceDetectionUpdate struct {
	FaceDetected bool    `json:"face_detected"`
	FaceCount    int     `json:"face_count"`
	Confidence   float64 `json:"confidence"`
}
