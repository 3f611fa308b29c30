package model

import (
	"time"

	"github.com/google/uuid"
)

// AssessmentStatus enumerates the possible states of an assessment.
type AssessmentStatus string

const (
	AssessmentStatusDraft     AssessmentStatus = "DRAFT"
	AssessmentStatusPublished AssessmentStatus = "PUBLISHED"
	AssessmentStatusClosed    AssessmentStatus = "CLOSED"
)

// Assessment represents an AI interview assessment definition.
type Assessment struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	RecruiterID     int       `json:"recruiter_id"`
	DurationSeconds int       `json:"duration_seconds"`
	// AccessCodeHash is the bcrypt hash of the candidate entry code.
	// Never serialized to clients.
	AccessCodeHash        string           `json:"-"`
	MaxViolations         int              `json:"max_violations"`
	FaceDetectionRequired bool             `json:"face_detection_required"`
	QuestionCount         int              `json:"question_count"`
	Status                AssessmentStatus `json:"status"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// Question is a single interview question within an assessment.
// Questions are ordered and immutable once the assessment is published.
type Question struct {
	ID           uuid.UUID `json:"id"`
	AssessmentID uuid.UUID `json:"assessment_id"`
	QuestionText string    `json:"question_text"`
	OrderNum     int       `json:"order_num"`
}

// AssessmentPayload is the Redis-cached payload handed to a joining candidate.
type AssessmentPayload struct {
	AssessmentID          uuid.UUID `json:"assessment_id"`
	Title                 string    `json:"title"`
	DurationSeconds       int       `json:"duration_seconds"`
	MaxViolations         int       `json:"max_violations"`
	FaceDetectionRequired bool      `json:"face_detection_required"`
	Questions             []string  `json:"questions"`
}

// CreateAssessmentRequest is the payload for creating a new assessment.
type CreateAssessmentRequest struct {
	Title                 string   `json:"title" binding:"required,min=3,max=255"`
	DurationSeconds       int      `json:"duration_seconds" binding:"required,min=60,max=14400"`
	AccessCode            string   `json:"access_code" binding:"required,min=4,max=32"`
	MaxViolations         int      `json:"max_violations" binding:"omitempty,min=1,max=10"`
	FaceDetectionRequired *bool    `json:"face_detection_required" binding:"omitempty"`
	Questions             []string `json:"questions" binding:"required,min=1,max=50,dive,min=3,max=2000"`
}
