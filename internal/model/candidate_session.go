package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates candidate session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusTerminated SessionStatus = "TERMINATED"
)

// Candidate is a person taking an assessment. Candidates self-register at
// join time; there is no password, access is gated by the assessment code.
type Candidate struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// CandidateSession represents one candidate's assessment attempt.
// It records participation and outcome status only; the AssessmentResult
// object itself is delivered to the caller and never stored.
type CandidateSession struct {
	ID                uuid.UUID     `json:"id"`
	AssessmentID      uuid.UUID     `json:"assessment_id"`
	CandidateID       int           `json:"candidate_id"`
	StartedAt         time.Time     `json:"started_at"`
	FinishedAt        *time.Time    `json:"finished_at,omitempty"`
	Status            SessionStatus `json:"status"`
	TerminationReason *string       `json:"termination_reason,omitempty"`
}

// JoinAssessmentRequest is the payload for a candidate joining an assessment.
type JoinAssessmentRequest struct {
	Name       string `json:"name" binding:"required,min=2,max=120"`
	Email      string `json:"email" binding:"required,email,max=255"`
	AccessCode string `json:"access_code" binding:"required,min=4,max=32"`
}
