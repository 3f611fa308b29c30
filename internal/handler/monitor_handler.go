package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Iseelight/interview-backend/internal/middleware"
	"github.com/Iseelight/interview-backend/internal/model"
	"github.com/Iseelight/interview-backend/internal/response"
	"github.com/Iseelight/interview-backend/internal/service"
)

const keepAliveInterval = 30 * time.Second

// MonitorHandler streams live assessment activity to recruiter dashboards
// over SSE, fed by the per-assessment Redis pub/sub channel.
type MonitorHandler struct {
	assessmentService *service.AssessmentService
	sessionService    *service.SessionService
	log               zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(
	assessmentService *service.AssessmentService,
	sessionService *service.SessionService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		assessmentService: assessmentService,
		sessionService:    sessionService,
		log:               log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorAssessmentSSE godoc
// GET /api/v1/recruiter/assessments/:id/monitor
func (h *MonitorHandler) MonitorAssessmentSSE(c *gin.Context) {
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

	assessment, err := h.assessmentService.GetByID(c.Request.Context(), assessmentID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if assessment.RecruiterID != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendInitialSnapshot(c, assessment)

	pubsub := h.sessionService.SubscribeMonitor(reqCtx, assessmentID.String())
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	h.log.Info().Str("assessment_id", assessmentID.String()).Msg("Recruiter attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("assessment_id", assessmentID.String()).Msg("Recruiter detached from live monitor SSE")
			return

		case msg := <-ch:
			// Monitor events are published as ready-to-send JSON.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendInitialSnapshot writes the first SSE event: the assessment's current
// session list so the dashboard renders without waiting for live events.
func (h *MonitorHandler) sendInitialSnapshot(c *gin.Context, assessment *model.Assessment) {
	sessions, err := h.sessionService.ListByAssessment(c.Request.Context(), assessment.ID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to build monitor snapshot")
		sessions = nil
	}

	totalInProgress := 0
	totalFinished := 0
	for _, s := range sessions {
		if s.Status == model.SessionStatusInProgress {
			totalInProgress++
		} else {
			totalFinished++
		}
	}

	c.SSEvent("message", map[string]interface{}{
		"type": "snapshot",
		"data": map[string]interface{}{
			"assessment": map[string]interface{}{
				"id":             assessment.ID.String(),
				"title":          assessment.Title,
				"duration":       assessment.DurationSeconds,
				"question_count": assessment.QuestionCount,
				"max_violations": assessment.MaxViolations,
				"face_detection": assessment.FaceDetectionRequired,
				"status":         assessment.Status,
			},
			"stats": map[string]interface{}{
				"total_joined":      len(sessions),
				"total_in_progress": totalInProgress,
				"total_finished":    totalFinished,
			},
			"sessions": sessions,
		},
	})
	c.Writer.Flush()
}
