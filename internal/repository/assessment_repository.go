package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Iseelight/interview-backend/internal/model"
)

// AssessmentRepository handles assessment data access.
type AssessmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(pool *pgxpool.Pool) *AssessmentRepository {
	return &AssessmentRepository{pool: pool}
}

const assessmentColumns = `id, title, recruiter_id, duration_seconds, access_code_hash,
	max_violations, face_detection_required, question_count, status, created_at, updated_at`

func scanAssessment(row interface{ Scan(...any) error }) (*model.Assessment, error) {
	a := &model.Assessment{}
	err := row.Scan(&a.ID, &a.Title, &a.RecruiterID, &a.DurationSeconds, &a.AccessCodeHash,
		&a.MaxViolations, &a.FaceDetectionRequired, &a.QuestionCount, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts an assessment together with its ordered questions in one
// transaction. The question list is immutable after creation.
func (r *AssessmentRepository) Create(ctx context.Context, a *model.Assessment, questions []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO assessments (title, recruiter_id, duration_seconds, access_code_hash,
		        max_violations, face_detection_required, question_count, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		a.Title, a.RecruiterID, a.DurationSeconds, a.AccessCodeHash,
		a.MaxViolations, a.FaceDetectionRequired, len(questions), a.Status,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	a.QuestionCount = len(questions)

	for i, q := range questions {
		if _, err := tx.Exec(ctx,
			`INSERT INTO questions (assessment_id, question_text, order_num)
			 VALUES ($1, $2, $3)`,
			a.ID, q, i,
		); err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a single assessment.
func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	return scanAssessment(r.pool.QueryRow(ctx,
		`SELECT `+assessmentColumns+` FROM assessments WHERE id = $1`, id))
}

// ListByRecruiter retrieves all assessments owned by a recruiter.
func (r *AssessmentRepository) ListByRecruiter(ctx context.Context, recruiterID int) ([]model.Assessment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+assessmentColumns+`
		 FROM assessments
		 WHERE recruiter_id = $1
		 ORDER BY created_at DESC`, recruiterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ListPublishedIDs returns the IDs of all published assessments, used for
// cache prewarming at startup.
func (r *AssessmentRepository) ListPublishedIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM assessments WHERE status = $1`, model.AssessmentStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
