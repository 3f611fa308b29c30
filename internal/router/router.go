package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Iseelight/interview-backend/internal/config"
	"github.com/Iseelight/interview-backend/internal/handler"
	"github.com/Iseelight/interview-backend/internal/middleware"
	"github.com/Iseelight/interview-backend/internal/response"
	"github.com/Iseelight/interview-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Assessment *handler.AssessmentHandler
	Candidate  *handler.CandidateHandler
	Monitor    *handler.MonitorHandler
	WS         *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Auth Group (Public) ────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/recruiter/login", handlers.Auth.RecruiterLogin)
		auth.GET("/recruiter/me", middleware.RequireRecruiterJWT(authService), handlers.Auth.GetRecruiterProfile)
	}

	// ─── 2. Candidate Group ────────────────────────────────────────────
	// Joining is public (gated by access code); the join response carries
	// the session-scoped JWT used by the WebSocket stream.
	candidateAPI := router.Group("/api/v1/candidate")
	{
		candidateAPI.POST("/assessments/:id/join", handlers.Candidate.Join)
		candidateAPI.GET("/assessments/:id", middleware.RequireCandidateJWT(authService), handlers.Candidate.GetAssessment)
	}

	// ─── 3. WebSocket Group (Candidate WS Auth) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireCandidateWSAuth(authService))
	{
		ws.GET("/candidate/assessments/:id/stream", handlers.WS.AssessmentStream)
	}

	// ─── 4. Recruiter Group (JWT) ──────────────────────────────────────
	recruiterAPI := router.Group("/api/v1/recruiter")
	recruiterAPI.Use(middleware.RequireRecruiterJWT(authService))
	{
		recruiterAPI.GET("/assessments", handlers.Assessment.List)
		recruiterAPI.POST("/assessments", handlers.Assessment.Create)
		recruiterAPI.GET("/assessments/:id", handlers.Assessment.Get)
		recruiterAPI.GET("/assessments/:id/monitor", handlers.Monitor.MonitorAssessmentSSE)
	}

	return router
}
