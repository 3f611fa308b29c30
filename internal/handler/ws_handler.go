package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Iseelight/interview-backend/internal/config"
	"github.com/Iseelight/interview-backend/internal/middleware"
	"github.com/Iseelight/interview-backend/internal/model"
	"github.com/Iseelight/interview-backend/internal/service"
	"github.com/Iseelight/interview-backend/internal/session"
	"github.com/Iseelight/interview-backend/internal/speech"
	ws "github.com/Iseelight/interview-backend/internal/websocket"
)

// maxUtteranceWait caps how long the server waits for the client's
// speech_done acknowledgement before treating the utterance as finished.
const maxUtteranceWait = 60 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allow-list permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler runs candidate assessment sessions over WebSocket. Each
// connection owns one session state machine plus the speech adapters that
// bridge the browser's synthesis and recognition to it.
type WSHandler struct {
	assessmentService *service.AssessmentService
	sessionService    *service.SessionService
	cfg               *config.Config
	log               zerolog.Logger
	upgrader          websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	assessmentService *service.AssessmentService,
	sessionService *service.SessionService,
	cfg *config.Config,
	log zerolog.Logger,
) *WSHandler {
	return &WSHandler{
		assessmentService: assessmentService,
		sessionService:    sessionService,
		cfg:               cfg,
		log:               log.With().Str("component", "ws_handler").Logger(),
		upgrader:          buildUpgrader(cfg.AllowedOrigins),
	}
}

// AssessmentStream godoc
// WS /ws/v1/candidate/assessments/:id/stream
// Upgrades to WebSocket and runs the live assessment session.
func (h *WSHandler) AssessmentStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	assessmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assessment ID"})
		return
	}

	// The candidate token is scoped to exactly one assessment session.
	if claims.AssessmentID != assessmentID.String() {
		c.JSON(http.StatusForbidden, gin.H{"error": "token not valid for this assessment"})
		return
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "token carries no session"})
		return
	}

	payload, err := h.assessmentService.GetPayload(c.Request.Context(), assessmentID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "assessment not found"})
		return
	}

	rawConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(rawConn)
	defer conn.Close()

	wsLog := h.log.With().
		Int("candidate_id", claims.UserID).
		Str("assessment_id", assessmentID.String()).
		Str("session_id", sessionID.String()).
		Logger()

	wsLog.Info().Msg("Candidate connected")

	h.runSession(conn, wsLog, claims.UserID, assessmentID, sessionID, payload)

	wsLog.Info().Msg("Candidate disconnected")
}

// runSession wires the session state machine, speech adapters and monitor
// channel to one connection, then pumps client actions until it closes.
func (h *WSHandler) runSession(
	conn *ws.Conn,
	wsLog zerolog.Logger,
	candidateID int,
	assessmentID, sessionID uuid.UUID,
	payload *model.AssessmentPayload,
) {
	ctx := context.Background()

	synth := newWSSynthesizer(conn)
	speaker := speech.NewSpeaker(synth, wsLog)
	capture := newWSCapture(conn, wsLog)

	var sess *session.Session
	var listener *speech.Listener

	// Callbacks fire on the session event loop and must not block there;
	// every socket write and Redis call goes through the connection's
	// outbox so a stalled peer cannot delay violation or timeout handling.
	out := newOutbox(128, wsLog)

	cb := session.Callbacks{
		OnPhase: func(phase session.Phase, questionIndex int) {
			out.post(func() {
				conn.WriteTyped(ws.PhaseEvent{Event: ws.EventPhase, Phase: phase.String(), QuestionIndex: questionIndex})
				h.sessionService.PublishMonitorEvent(ctx, assessmentID.String(), service.MonitorEvent{
					Type:        service.MonitorPhaseChange,
					SessionID:   sessionID.String(),
					CandidateID: candidateID,
					Detail:      phase.String(),
				})
				if phase == session.PhaseAwaitingResponse {
					if err := listener.Start(); err != nil && !errors.Is(err, speech.ErrVoiceUnavailable) {
						wsLog.Debug().Err(err).Msg("Listener start skipped")
					}
				} else {
					listener.Stop()
				}
			})
		},
		OnMessage: func(msg model.Message) {
			out.post(func() {
				conn.WriteTyped(ws.MessageEvent{Event: ws.EventMessage, Message: msg})
				h.sessionService.QueueMessage(ctx, sessionID, msg)
			})
		},
		OnInterim: func(msg model.Message) {
			out.post(func() {
				conn.WriteTyped(ws.InterimEvent{Event: ws.EventInterim, Message: msg})
			})
		},
		OnTick: func(remaining int) {
			out.post(func() {
				conn.WriteTyped(ws.TimerEvent{Event: ws.EventTimer, RemainingSeconds: remaining})
			})
		},
		OnAlert: func(alert model.SecurityAlert, violations int) {
			out.post(func() {
				conn.WriteTyped(ws.AlertEvent{
					Event:         ws.EventAlert,
					Alert:         alert,
					Violations:    violations,
					MaxViolations: payload.MaxViolations,
				})
				h.sessionService.QueueAlert(ctx, sessionID, alert)
				h.sessionService.PublishMonitorEvent(ctx, assessmentID.String(), service.MonitorEvent{
					Type:        service.MonitorAlert,
					SessionID:   sessionID.String(),
					CandidateID: candidateID,
					Detail:      string(alert.Kind),
				})
			})
		},
		OnResult: func(res session.Result) {
			out.post(func() {
				conn.WriteTyped(ws.ResultEvent{Event: ws.EventResult, Result: res})
			})
			var reason *string
			if res.TerminationReason != "" {
				r := res.TerminationReason
				reason = &r
			}
			// Row update and Redis cleanup must not be dropped by a full
			// outbox, so they run on their own goroutine.
			go func() {
				if err := h.sessionService.Finish(ctx, sessionID, candidateID, assessmentID, res.Status, reason); err != nil {
					wsLog.Error().Err(err).Msg("Failed to persist session finish")
				}
			}()
		},
	}

	sess = session.New(session.Config{
		Duration:              time.Duration(payload.DurationSeconds) * time.Second,
		Questions:             payload.Questions,
		MaxViolations:         payload.MaxViolations,
		FaceDetectionRequired: payload.FaceDetectionRequired,
		QuestionTimeout:       h.cfg.QuestionTimeout,
		ThinkingDelay:         h.cfg.ThinkingDelay,
		PassThreshold:         h.cfg.PassThreshold,
	}, speaker, cb, wsLog)

	listener = speech.NewListener(capture, sess.CanListen, speech.Handlers{
		OnInterim: sess.SetInterimTranscript,
		OnFinal: func(text string) {
			if err := sess.SubmitResponse(text, true); err != nil {
				wsLog.Debug().Err(err).Msg("Voice response not accepted")
			}
		},
		OnVoiceUnavailable: func() {
			conn.WriteTyped(ws.MicEvent{Event: ws.EventVoiceUnavailable})
		},
	}, wsLog)

	h.readLoop(conn, wsLog, sess, synth, capture)

	// Connection gone. A live session terminates as disconnected; a
	// finished one already delivered its result.
	sess.Abort(session.ReasonDisconnected)
	listener.Stop()

	select {
	case <-sess.Done():
	case <-time.After(5 * time.Second):
		wsLog.Warn().Msg("Session did not settle after disconnect")
	}
	out.close()
}

func (h *WSHandler) readLoop(
	conn *ws.Conn,
	wsLog zerolog.Logger,
	sess *session.Session,
	synth *wsSynthesizer,
	capture *wsCapture,
) {
	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionStart:
			sess.Start()

		case ws.ActionRespond:
			if err := sess.SubmitResponse(msg.Text, msg.VoiceSourced); err != nil {
				switch {
				case errors.Is(err, session.ErrFaceNotVisible):
					conn.WriteError("face must be visible to respond")
				default:
					conn.WriteError("response not accepted right now")
				}
			}

		case ws.ActionSpeechDone:
			synth.ack(msg.UtteranceID)

		case ws.ActionTranscript:
			switch {
			case msg.ErrorCode != "":
				capture.push(speech.CaptureEvent{Err: speech.NewCaptureError(msg.ErrorCode)})
			case msg.Ended:
				capture.pushEnded()
			default:
				capture.push(speech.CaptureEvent{Text: msg.Transcript, Final: msg.Final})
			}

		case ws.ActionFaceUpdate:
			sess.UpdateFaceDetection(model.FaceDetectionUpdate{
				FaceDetected: msg.FaceDetected,
				FaceCount:    msg.FaceCount,
				Confidence:   msg.Confidence,
			})

		case ws.ActionViolation:
			kind, severity, ok := validateViolation(msg.Kind, msg.Severity)
			if !ok {
				conn.WriteError("invalid violation payload")
				continue
			}
			sess.ReportViolation(kind, severity, msg.Message)

		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})

		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

// validateViolation rejects unknown kinds and severities so a buggy or
// hostile client cannot inject arbitrary alert rows.
func validateViolation(kind model.AlertKind, severity model.AlertSeverity) (model.AlertKind, model.AlertSeverity, bool) {
	switch kind {
	case model.AlertFaceNotDetected, model.AlertLookingAway, model.AlertMultipleFaces, model.AlertTabSwitch:
	default:
		return "", "", false
	}
	switch severity {
	case model.SeverityLow, model.SeverityMedium, model.SeverityHigh:
	case "":
		severity = model.SeverityMedium
	default:
		return "", "", false
	}
	return kind, severity, true
}

// ─── Speech adapters over the WebSocket ─────────────────────────────

// wsSynthesizer asks the client to speak and blocks until the matching
// speech_done acknowledgement arrives.
type wsSynthesizer struct {
	conn *ws.Conn

	mu      sync.Mutex
	nextID  int
	pending map[int]chan struct{}
}

func newWSSynthesizer(conn *ws.Conn) *wsSynthesizer {
	return &wsSynthesizer{
		conn:    conn,
		pending: make(map[int]chan struct{}),
	}
}

// Synthesize implements speech.Backend.
func (s *wsSynthesizer) Synthesize(ctx context.Context, text string) error {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	done := make(chan struct{})
	s.pending[id] = done
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if err := s.conn.WriteTyped(ws.SpeakEvent{Event: ws.EventSpeak, UtteranceID: id, Text: text}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(maxUtteranceWait):
		return errors.New("speech acknowledgement timed out")
	}
}

// ack completes the pending utterance with the given ID. Unknown IDs are
// ignored; they belong to cancelled utterances.
func (s *wsSynthesizer) ack(id int) {
	s.mu.Lock()
	done, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()
	if ok {
		close(done)
	}
}

// wsCapture adapts the client's recognition relay to speech.Capture. The
// server commands the client's microphone with mic_start/mic_stop and the
// client streams transcript actions back.
type wsCapture struct {
	conn *ws.Conn
	log  zerolog.Logger

	events chan speech.CaptureEvent

	mu     sync.Mutex
	active bool
}

func newWSCapture(conn *ws.Conn, log zerolog.Logger) *wsCapture {
	return &wsCapture{
		conn:   conn,
		log:    log.With().Str("component", "ws_capture").Logger(),
		events: make(chan speech.CaptureEvent, 16),
	}
}

// Start implements speech.Capture.
func (c *wsCapture) Start(ctx context.Context) error {
	c.mu.Lock()
	c.active = true
	c.mu.Unlock()
	return c.conn.WriteTyped(ws.MicEvent{Event: ws.EventMicStart})
}

// Events implements speech.Capture.
func (c *wsCapture) Events() <-chan speech.CaptureEvent {
	return c.events
}

// Stop implements speech.Capture.
func (c *wsCapture) Stop() error {
	c.mu.Lock()
	wasActive := c.active
	c.active = false
	c.mu.Unlock()
	if !wasActive {
		return nil
	}
	return c.conn.WriteTyped(ws.MicEvent{Event: ws.EventMicStop})
}

// push delivers a transcript or error event from the read loop. Events
// arriving while the capture is stopped are dropped.
func (c *wsCapture) push(ev speech.CaptureEvent) {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()
	if !active {
		return
	}

	select {
	case c.events <- ev:
	default:
		c.log.Warn().Msg("Capture event buffer full, dropping event")
	}
}

// pushEnded marks the client-side recognition stream as ended on its own.
func (c *wsCapture) pushEnded() {
	c.mu.Lock()
	active := c.active
	c.active = false
	c.mu.Unlock()
	if !active {
		return
	}

	select {
	case c.events <- speech.CaptureEvent{Ended: true}:
	default:
		c.log.Warn().Msg("Capture event buffer full, dropping ended event")
	}
}
