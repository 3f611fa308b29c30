package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Iseelight/interview-backend/internal/middleware"
	"github.com/Iseelight/interview-backend/internal/model"
	"github.com/Iseelight/interview-backend/internal/repository"
	"github.com/Iseelight/interview-backend/internal/response"
	"github.com/Iseelight/interview-backend/internal/service"
	"github.com/Iseelight/interview-backend/internal/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService   *service.AuthService
	recruiterRepo *repository.RecruiterRepository
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, recruiterRepo *repository.RecruiterRepository) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		recruiterRepo: recruiterRepo,
	}
}

// RecruiterLogin godoc
// POST /api/v1/auth/recruiter/login
// Validates email + password, returns JWT.
func (h *AuthHandler) RecruiterLogin(c *gin.Context) {
	var req model.RecruiterLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	recruiter, err := h.recruiterRepo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	if err := h.authService.CheckPassword(recruiter.PasswordHash, req.Password); err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	token, err := h.authService.GenerateRecruiterToken(recruiter.ID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"recruiter": gin.H{
			"id":    recruiter.ID,
			"email": recruiter.Email,
			"name":  recruiter.Name,
		},
	})
}

// GetRecruiterProfile godoc
// GET /api/v1/auth/recruiter/me
// Returns the profile of the currently authenticated recruiter.
func (h *AuthHandler) GetRecruiterProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	recruiter, err := h.recruiterRepo.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"recruiter": gin.H{
			"id":    recruiter.ID,
			"email": recruiter.Email,
			"name":  recruiter.Name,
		},
	})
}
