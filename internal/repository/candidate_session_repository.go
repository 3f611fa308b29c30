package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Iseelight/interview-backend/internal/model"
)

// CandidateSessionRepository handles candidate and session data access.
type CandidateSessionRepository struct {
	pool *pgxpool.Pool
}

// NewCandidateSessionRepository creates a new CandidateSessionRepository.
func NewCandidateSessionRepository(pool *pgxpool.Pool) *CandidateSessionRepository {
	return &CandidateSessionRepository{pool: pool}
}

// UpsertCandidate inserts a candidate by email, or returns the existing
// candidate's row updated with the latest display name.
func (r *CandidateSessionRepository) UpsertCandidate(ctx context.Context, name, email string) (*model.Candidate, error) {
	c := &model.Candidate{}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO candidates (name, email)
		 VALUES ($1, $2)
		 ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, name, email, created_at`,
		name, email,
	).Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateSession opens a new in-progress session row.
func (r *CandidateSessionRepository) CreateSession(ctx context.Context, s *model.CandidateSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO candidate_sessions (assessment_id, candidate_id, status)
		 VALUES ($1, $2, $3)
		 RETURNING id, started_at`,
		s.AssessmentID, s.CandidateID, s.Status,
	).Scan(&s.ID, &s.StartedAt)
}

// GetActiveSession returns the candidate's open session for an assessment,
// if any.
func (r *CandidateSessionRepository) GetActiveSession(ctx context.Context, assessmentID uuid.UUID, candidateID int) (*model.CandidateSession, error) {
	s := &model.CandidateSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, assessment_id, candidate_id, started_at, finished_at, status, termination_reason
		 FROM candidate_sessions
		 WHERE assessment_id = $1 AND candidate_id = $2 AND status = $3
		 ORDER BY started_at DESC
		 LIMIT 1`,
		assessmentID, candidateID, model.SessionStatusInProgress,
	).Scan(&s.ID, &s.AssessmentID, &s.CandidateID, &s.StartedAt, &s.FinishedAt, &s.Status, &s.TerminationReason)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FinishSession marks a session row terminal. Only in-progress rows are
// updated, so racing finishers settle on the first writer.
func (r *CandidateSessionRepository) FinishSession(ctx context.Context, sessionID uuid.UUID, status model.SessionStatus, reason *string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE candidate_sessions
		 SET status = $2, termination_reason = $3, finished_at = NOW()
		 WHERE id = $1 AND status = $4`,
		sessionID, status, reason, model.SessionStatusInProgress)
	return err
}

// ListByAssessment retrieves all sessions for an assessment, newest first.
func (r *CandidateSessionRepository) ListByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]model.CandidateSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, assessment_id, candidate_id, started_at, finished_at, status, termination_reason
		 FROM candidate_sessions
		 WHERE assessment_id = $1
		 ORDER BY started_at DESC`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CandidateSession
	for rows.Next() {
		var s model.CandidateSession
		if err := rows.Scan(&s.ID, &s.AssessmentID, &s.CandidateID, &s.StartedAt, &s.FinishedAt, &s.Status, &s.TerminationReason); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
