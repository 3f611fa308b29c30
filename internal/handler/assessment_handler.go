package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Iseelight/interview-backend/internal/middleware"
	"github.com/Iseelight/interview-backend/internal/model"
	"github.com/Iseelight/interview-backend/internal/response"
	"github.com/Iseelight/interview-backend/internal/service"
	"github.com/Iseelight/interview-backend/internal/validator"
)

// AssessmentHandler handles recruiter-facing assessment endpoints.
type AssessmentHandler struct {
	assessmentService *service.AssessmentService
	sessionService    *service.SessionService
	authService       *service.AuthService
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(
	assessmentService *service.AssessmentService,
	sessionService *service.SessionService,
	authService *service.AuthService,
) *AssessmentHandler {
	return &AssessmentHandler{
		assessmentService: assessmentService,
		sessionService:    sessionService,
		authService:       authService,
	}
}

// Create godoc
// POST /api/v1/recruiter/assessments
// Creates a new assessment with its question list and access code.
func (h *AssessmentHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateAssessmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	accessCodeHash, err := h.authService.HashPassword(req.AccessCode)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	assessment, err := h.assessmentService.Create(c.Request.Context(), claims.UserID, &req, accessCodeHash)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"assessment": assessment})
}

// List godoc
// GET /api/v1/recruiter/assessments
// Lists the recruiter's assessments.
func (h *AssessmentHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessments, err := h.assessmentService.ListByRecruiter(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assessments": assessments})
}

// Get godoc
// GET /api/v1/recruiter/assessments/:id
// Returns one assessment with its session history.
func (h *AssessmentHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessment, ok := h.ownedAssessment(c, claims.UserID)
	if !ok {
		return
	}

	sessions, err := h.sessionService.ListByAssessment(c.Request.Context(), assessment.ID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"assessment": assessment,
		"sessions":   sessions,
	})
}

// ownedAssessment parses the :id param, loads the assessment and verifies
// ownership. Writes the failure response itself when returning ok=false.
func (h *AssessmentHandler) ownedAssessment(c *gin.Context, recruiterID int) (*model.Assessment, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, false
	}

	assessment, err := h.assessmentService.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return nil, false
	}

	if assessment.RecruiterID != recruiterID {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return nil, false
	}

	return assessment, true
}
