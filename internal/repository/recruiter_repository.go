package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Iseelight/interview-backend/internal/model"
)

// RecruiterRepository handles recruiter account data access.
type RecruiterRepository struct {
	pool *pgxpool.Pool
}

// NewRecruiterRepository creates a new RecruiterRepository.
func NewRecruiterRepository(pool *pgxpool.Pool) *RecruiterRepository {
	return &RecruiterRepository{pool: pool}
}

// GetByEmail retrieves a recruiter by email address.
func (r *RecruiterRepository) GetByEmail(ctx context.Context, email string) (*model.Recruiter, error) {
	rec := &model.Recruiter{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM recruiters
		 WHERE email = $1`, email,
	).Scan(&rec.ID, &rec.Name, &rec.Email, &rec.PasswordHash, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetByID retrieves a recruiter by ID.
func (r *RecruiterRepository) GetByID(ctx context.Context, id int) (*model.Recruiter, error) {
	rec := &model.Recruiter{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM recruiters
		 WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.Name, &rec.Email, &rec.PasswordHash, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Create inserts a new recruiter account.
func (r *RecruiterRepository) Create(ctx context.Context, rec *model.Recruiter) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO recruiters (name, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		rec.Name, rec.Email, rec.PasswordHash,
	).Scan(&rec.ID, &rec.CreatedAt)
}
