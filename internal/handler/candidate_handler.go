package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Iseelight/interview-backend/internal/middleware"
	"github.com/Iseelight/interview-backend/internal/model"
	"github.com/Iseelight/interview-backend/internal/response"
	"github.com/Iseelight/interview-backend/internal/service"
	"github.com/Iseelight/interview-backend/internal/validator"
)

// CandidateHandler handles candidate-facing REST endpoints.
type CandidateHandler struct {
	assessmentService *service.AssessmentService
	sessionService    *service.SessionService
	authService       *service.AuthService
}

// NewCandidateHandler creates a new CandidateHandler.
func NewCandidateHandler(
	assessmentService *service.AssessmentService,
	sessionService *service.SessionService,
	authService *service.AuthService,
) *CandidateHandler {
	return &CandidateHandler{
		assessmentService: assessmentService,
		sessionService:    sessionService,
		authService:       authService,
	}
}

// Join godoc
// POST /api/v1/candidate/assessments/:id/join
// Validates the access code, opens a session and returns a session-scoped
// JWT together with the assessment payload for the waiting screen.
func (h *CandidateHandler) Join(c *gin.Context) {
	assessmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.JoinAssessmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	assessment, err := h.assessmentService.GetByID(c.Request.Context(), assessmentID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	session, candidate, err := h.sessionService.Join(c.Request.Context(), assessment, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAssessmentNotAvailable):
			response.Fail(c, http.StatusConflict, response.ErrAssessmentNotAvailable)
		case errors.Is(err, service.ErrInvalidAccessCode):
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidAccessCode)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	token, err := h.authService.GenerateCandidateToken(c.Request.Context(), candidate.ID, assessment.ID, session.ID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	payload, err := h.assessmentService.GetPayload(c.Request.Context(), assessment.ID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if len(payload.Questions) == 0 {
		response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token":   token,
		"session": session,
		"candidate": gin.H{
			"id":    candidate.ID,
			"name":  candidate.Name,
			"email": candidate.Email,
		},
		"assessment": gin.H{
			"id":                      payload.AssessmentID,
			"title":                   payload.Title,
			"duration_seconds":        payload.DurationSeconds,
			"max_violations":          payload.MaxViolations,
			"face_detection_required": payload.FaceDetectionRequired,
			"question_count":          len(payload.Questions),
		},
	})
}

// GetAssessment godoc
// GET /api/v1/candidate/assessments/:id
// Returns the waiting-screen summary for the assessment the caller's
// token is scoped to, so a reloaded page can rebuild its state without
// re-entering the access code.
func (h *CandidateHandler) GetAssessment(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	if claims.AssessmentID != assessmentID.String() {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	payload, err := h.assessmentService.GetPayload(c.Request.Context(), assessmentID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"id":                      payload.AssessmentID,
		"title":                   payload.Title,
		"duration_seconds":        payload.DurationSeconds,
		"max_violations":          payload.MaxViolations,
		"face_detection_required": payload.FaceDetectionRequired,
		"question_count":          len(payload.Questions),
		"session_id":              claims.SessionID,
	})
}
