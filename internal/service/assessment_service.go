package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Iseelight/interview-backend/internal/config"
	"github.com/Iseelight/interview-backend/internal/model"
	"github.com/Iseelight/interview-backend/internal/repository"
)

// AssessmentService handles assessment business logic and the payload cache.
type AssessmentService struct {
	cfg            *config.Config
	assessmentRepo *repository.AssessmentRepository
	questionRepo   *repository.QuestionRepository
	rdb            *redis.Client
	log            zerolog.Logger
}

// NewAssessmentService creates a new AssessmentService.
func NewAssessmentService(
	cfg *config.Config,
	assessmentRepo *repository.AssessmentRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *AssessmentService {
	return &AssessmentService{
		cfg:            cfg,
		assessmentRepo: assessmentRepo,
		questionRepo:   questionRepo,
		rdb:            rdb,
		log:            log.With().Str("component", "assessment_service").Logger(),
	}
}

// Create persists a new assessment with its questions and warms its cache.
// The access code arrives in plaintext and is stored only as a bcrypt hash.
func (s *AssessmentService) Create(ctx context.Context, recruiterID int, req *model.CreateAssessmentRequest, accessCodeHash string) (*model.Assessment, error) {
	maxViolations := req.MaxViolations
	if maxViolations <= 0 {
		maxViolations = s.cfg.MaxViolations
	}

	faceRequired := true
	if req.FaceDetectionRequired != nil {
		faceRequired = *req.FaceDetectionRequired
	}

	assessment := &model.Assessment{
		Title:                 req.Title,
		RecruiterID:           recruiterID,
		DurationSeconds:       req.DurationSeconds,
		AccessCodeHash:        accessCodeHash,
		MaxViolations:         maxViolations,
		FaceDetectionRequired: faceRequired,
		Status:                model.AssessmentStatusPublished,
	}

	if err := s.assessmentRepo.Create(ctx, assessment, req.Questions); err != nil {
		return nil, fmt.Errorf("create assessment: %w", err)
	}

	if err := s.cachePayload(ctx, assessment, req.Questions); err != nil {
		// Cache failures are recoverable; GetPayload falls back to Postgres.
		s.log.Warn().Err(err).Str("assessment_id", assessment.ID.String()).Msg("failed to warm payload cache")
	}

	return assessment, nil
}

// GetByID retrieves a single assessment.
func (s *AssessmentService) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	return s.assessmentRepo.GetByID(ctx, id)
}

// ListByRecruiter retrieves all assessments owned by a recruiter.
func (s *AssessmentService) ListByRecruiter(ctx context.Context, recruiterID int) ([]model.Assessment, error) {
	return s.assessmentRepo.ListByRecruiter(ctx, recruiterID)
}

// GetPayload returns the session-start payload for an assessment: the exact
// question set and limits the live session runs with. It is served from
// Redis, falling back to Postgres with self-healing on a cache miss.
func (s *AssessmentService) GetPayload(ctx context.Context, assessmentID uuid.UUID) (*model.AssessmentPayload, error) {
	key := config.CacheKey.AssessmentPayloadKey(assessmentID.String())

	val, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		payload := &model.AssessmentPayload{}
		if jsonErr := json.Unmarshal([]byte(val), payload); jsonErr == nil {
			return payload, nil
		}
		// Corrupt cache entry; rebuild from the database below.
		s.log.Warn().Str("assessment_id", assessmentID.String()).Msg("corrupt payload cache entry, rebuilding")
	} else if err != redis.Nil {
		return nil, fmt.Errorf("get payload cache: %w", err)
	}

	assessment, err := s.assessmentRepo.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	questions, err := s.questionRepo.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	texts := make([]string, 0, len(questions))
	for _, q := range questions {
		texts = append(texts, q.QuestionText)
	}

	// Self-heal so the next session start is a cache hit.
	if err := s.cachePayload(ctx, assessment, texts); err != nil {
		s.log.Warn().Err(err).Str("assessment_id", assessmentID.String()).Msg("failed to self-heal payload cache")
	}

	return buildPayload(assessment, texts), nil
}

// PrewarmCaches loads every published assessment's payload into Redis.
// Called once at startup.
func (s *AssessmentService) PrewarmCaches(ctx context.Context) error {
	ids, err := s.assessmentRepo.ListPublishedIDs(ctx)
	if err != nil {
		return fmt.Errorf("list published assessments: %w", err)
	}

	for _, id := range ids {
		if _, err := s.GetPayload(ctx, id); err != nil {
			s.log.Warn().Err(err).Str("assessment_id", id.String()).Msg("failed to prewarm assessment")
		}
	}

	s.log.Info().Int("count", len(ids)).Msg("assessment payload caches prewarmed")
	return nil
}

func (s *AssessmentService) cachePayload(ctx context.Context, a *model.Assessment, questions []string) error {
	payload := buildPayload(a, questions)

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.AssessmentPayloadKey(a.ID.String()), raw, 0)
	pipe.Set(ctx, config.CacheKey.AssessmentDurationKey(a.ID.String()), a.DurationSeconds, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache payload: %w", err)
	}
	return nil
}

func buildPayload(a *model.Assessment, questions []string) *model.AssessmentPayload {
	return &model.AssessmentPayload{
		AssessmentID:          a.ID,
		Title:                 a.Title,
		DurationSeconds:       a.DurationSeconds,
		MaxViolations:         a.MaxViolations,
		FaceDetectionRequired: a.FaceDetectionRequired,
		Questions:             questions,
	}
}
