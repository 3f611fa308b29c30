package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Iseelight/interview-backend/internal/config"
	"github.com/Iseelight/interview-backend/internal/model"
	"github.com/Iseelight/interview-backend/internal/repository"
)

// Common session errors.
var (
	ErrAssessmentNotAvailable = errors.New("assessment is not available for joining")
	ErrInvalidAccessCode      = errors.New("invalid access code")
)

// MonitorEvent is published to the assessment's Redis channel and relayed
// to recruiter dashboards over SSE.
type MonitorEvent struct {
	Type          string `json:"type"`
	SessionID     string `json:"session_id,omitempty"`
	CandidateID   int    `json:"candidate_id,omitempty"`
	CandidateName string `json:"candidate_name,omitempty"`
	Detail        string `json:"detail,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// Monitor event types.
const (
	MonitorCandidateJoined = "candidate_joined"
	MonitorPhaseChange     = "phase_change"
	MonitorAlert           = "alert"
	MonitorSessionFinished = "session_finished"
)

// alertQueueItem matches the alert worker's queue contract.
type alertQueueItem struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// messageQueueItem matches the message worker's queue contract.
type messageQueueItem struct {
	SessionID    string `json:"session_id"`
	Sender       string `json:"sender"`
	Text         string `json:"text"`
	VoiceSourced bool   `json:"voice_sourced"`
	Timestamp    int64  `json:"timestamp"`
}

// SessionService handles candidate joins, session lifecycle and the live
// monitor channel.
type SessionService struct {
	cfg         *config.Config
	sessionRepo *repository.CandidateSessionRepository
	auth        *AuthService
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	cfg *config.Config,
	sessionRepo *repository.CandidateSessionRepository,
	auth *AuthService,
	rdb *redis.Client,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		cfg:         cfg,
		sessionRepo: sessionRepo,
		auth:        auth,
		rdb:         rdb,
		log:         log.With().Str("component", "session_service").Logger(),
	}
}

// Join validates the access code and opens a session for the candidate.
// Joining is idempotent: a candidate with an open session gets that session
// back instead of a duplicate row.
func (s *SessionService) Join(ctx context.Context, assessment *model.Assessment, req *model.JoinAssessmentRequest) (*model.CandidateSession, *model.Candidate, error) {
	if assessment.Status != model.AssessmentStatusPublished {
		return nil, nil, ErrAssessmentNotAvailable
	}

	if err := s.auth.CheckPassword(assessment.AccessCodeHash, req.AccessCode); err != nil {
		return nil, nil, ErrInvalidAccessCode
	}

	candidate, err := s.sessionRepo.UpsertCandidate(ctx, req.Name, req.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("upsert candidate: %w", err)
	}

	existing, err := s.sessionRepo.GetActiveSession(ctx, assessment.ID, candidate.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("check existing session: %w", err)
	}
	if existing != nil {
		// Re-sync the start time cache for refreshed or second-device joins.
		startKey := config.CacheKey.CandidateSessionStartKey(assessment.ID.String(), candidate.ID)
		_ = s.rdb.Set(ctx, startKey, existing.StartedAt.Unix(), 0).Err()
		return existing, candidate, nil
	}

	session := &model.CandidateSession{
		AssessmentID: assessment.ID,
		CandidateID:  candidate.ID,
		Status:       model.SessionStatusInProgress,
	}
	if err := s.sessionRepo.CreateSession(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}

	startKey := config.CacheKey.CandidateSessionStartKey(assessment.ID.String(), candidate.ID)
	if err := s.rdb.Set(ctx, startKey, session.StartedAt.Unix(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("failed to cache session start time")
	}

	s.PublishMonitorEvent(ctx, assessment.ID.String(), MonitorEvent{
		Type:          MonitorCandidateJoined,
		SessionID:     session.ID.String(),
		CandidateID:   candidate.ID,
		CandidateName: candidate.Name,
	})

	return session, candidate, nil
}

// Finish marks the session terminal in Postgres and clears the candidate's
// active assessment marker. Safe to call from racing finishers; the row
// update is guarded on IN_PROGRESS status.
func (s *SessionService) Finish(ctx context.Context, sessionID uuid.UUID, candidateID int, assessmentID uuid.UUID, status model.SessionStatus, reason *string) error {
	if err := s.sessionRepo.FinishSession(ctx, sessionID, status, reason); err != nil {
		return fmt.Errorf("finish session: %w", err)
	}

	if err := s.auth.ClearActiveAssessment(ctx, candidateID); err != nil {
		s.log.Warn().Err(err).Int("candidate_id", candidateID).Msg("failed to clear active assessment marker")
	}

	detail := string(status)
	if reason != nil {
		detail = fmt.Sprintf("%s:%s", status, *reason)
	}
	s.PublishMonitorEvent(ctx, assessmentID.String(), MonitorEvent{
		Type:        MonitorSessionFinished,
		SessionID:   sessionID.String(),
		CandidateID: candidateID,
		Detail:      detail,
	})

	return nil
}

// ListByAssessment retrieves all sessions of an assessment for the
// recruiter dashboard.
func (s *SessionService) ListByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]model.CandidateSession, error) {
	return s.sessionRepo.ListByAssessment(ctx, assessmentID)
}

// PublishMonitorEvent fans an event out to subscribed recruiter dashboards.
// Publishing is best-effort; a missed monitor event never affects the
// candidate's session.
func (s *SessionService) PublishMonitorEvent(ctx context.Context, assessmentID string, ev MonitorEvent) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().Unix()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.AssessmentMonitorChannel(assessmentID), raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("assessment_id", assessmentID).Msg("failed to publish monitor event")
	}
}

// SubscribeMonitor subscribes to an assessment's monitor channel.
func (s *SessionService) SubscribeMonitor(ctx context.Context, assessmentID string) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.AssessmentMonitorChannel(assessmentID))
}

// QueueAlert enqueues a security alert for asynchronous persistence.
func (s *SessionService) QueueAlert(ctx context.Context, sessionID uuid.UUID, alert model.SecurityAlert) {
	item := alertQueueItem{
		SessionID: sessionID.String(),
		Kind:      string(alert.Kind),
		Severity:  string(alert.Severity),
		Message:   alert.Message,
		Timestamp: alert.Timestamp.Unix(),
	}
	raw, _ := json.Marshal(item)
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAlertsQueue, raw).Err(); err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to queue alert")
	}
}

// QueueMessage enqueues a transcript message for asynchronous persistence.
func (s *SessionService) QueueMessage(ctx context.Context, sessionID uuid.UUID, msg model.Message) {
	item := messageQueueItem{
		SessionID:    sessionID.String(),
		Sender:       string(msg.Sender),
		Text:         msg.Text,
		VoiceSourced: msg.IsVoiceSourced,
		Timestamp:    msg.Timestamp.Unix(),
	}
	raw, _ := json.Marshal(item)
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistMessagesQueue, raw).Err(); err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to queue message")
	}
}
