package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Iseelight/interview-backend/internal/model"
)

// Errors surfaced to the presentation layer. Both are of the "invalid
// turn" class: the attempted action is ignored and never fatal.
var (
	ErrInvalidTurn    = errors.New("response not accepted in current phase")
	ErrFaceNotVisible = errors.New("face must be visible to respond")
)

const defaultWelcome = "Welcome to your interview assessment. I will ask you a series of questions, one at a time. Please answer each question after I finish speaking. Let's begin."

// Synthesizer speaks text to the candidate. Synthesize must block until
// playback finishes or ctx is cancelled; a synthesis error is treated as
// a soft completion, so the session always progresses.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) error
}

// Config carries the per-assessment policy. The two historical interface
// variants disagreed on thresholds, so every diverging policy is a field
// here rather than a constant.
type Config struct {
	Duration              time.Duration
	Questions             []string
	MaxViolations         int
	FaceDetectionRequired bool
	QuestionTimeout       time.Duration
	ThinkingDelay         time.Duration
	PassThreshold         int
	TickInterval          time.Duration
	WelcomeText           string
}

func (c *Config) applyDefaults() {
	if c.MaxViolations <= 0 {
		c.MaxViolations = 2
	}
	if c.QuestionTimeout <= 0 {
		c.QuestionTimeout = 30 * time.Second
	}
	if c.ThinkingDelay <= 0 {
		c.ThinkingDelay = 1500 * time.Millisecond
	}
	if c.PassThreshold <= 0 {
		c.PassThreshold = 60
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.WelcomeText == "" {
		c.WelcomeText = defaultWelcome
	}
}

// Callbacks are the session's outbound edge toward the presentation
// layer. Nil fields are skipped. Callbacks fire on the session's event
// loop; implementations must not block.
type Callbacks struct {
	OnPhase   func(phase Phase, questionIndex int)
	OnMessage func(msg model.Message)
	// OnInterim reports the single live interim message, always carrying
	// model.InterimMessageID so clients replace it in place. Empty Text
	// means the interim was cleared.
	OnInterim func(msg model.Message)
	OnTick    func(remainingSeconds int)
	OnAlert   func(alert model.SecurityAlert, violations int)
	OnResult  func(res Result)
}

type eventKind int

const (
	evStart eventKind = iota
	evSpeechDone
	evSubmit
	evInterim
	evViolation
	evFaceUpdate
	evTick
	evExpired
	evQuestionTimeout
	evThinkingDone
	evAbort
)

// event is the single envelope for everything that can move the state
// machine. All callbacks from the timer, speech adapters and transport
// funnel through here so transitions never race.
type event struct {
	kind      eventKind
	text      string
	voice     bool
	index     int
	remaining int
	alertKind model.AlertKind
	severity  model.AlertSeverity
	message   string
	face      model.FaceDetectionUpdate
	reason    Reason
}

// Session is the assessment session state machine. It owns question
// progression, AI/candidate turn-taking, violation accumulation, the
// countdown clock, and terminal result assembly.
type Session struct {
	cfg   Config
	synth Synthesizer
	cb    Callbacks
	log   zerolog.Logger

	events chan event
	done   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	timer *Countdown

	mu             sync.Mutex
	phase          Phase
	reason         Reason
	current        int
	answered       int
	violations     int
	canRespond     bool
	faceDetected   bool
	startRequested bool
	startedAt      time.Time
	interimText    string
	messages       []model.Message
	alerts         []model.SecurityAlert
	result         *Result

	speakSeq      int
	questionTimer *time.Timer
	thinkingTimer *time.Timer
}

// New creates a session and starts its event loop. The session stays in
// PhaseNotStarted until Start is called.
func New(cfg Config, synth Synthesizer, cb Callbacks, log zerolog.Logger) *Session {
	cfg.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:          cfg,
		synth:        synth,
		cb:           cb,
		log:          log.With().Str("component", "session").Logger(),
		events:       make(chan event, 64),
		done:         make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
		phase:        PhaseNotStarted,
		faceDetected: true,
	}
	s.timer = NewCountdown(
		int(cfg.Duration/time.Second),
		cfg.TickInterval,
		func(remaining int) { s.post(event{kind: evTick, remaining: remaining}) },
		func() { s.post(event{kind: evExpired}) },
	)

	go s.run()
	return s
}

// Start begins the assessment. Calling it more than once is a no-op.
func (s *Session) Start() {
	s.post(event{kind: evStart})
}

// SubmitResponse accepts the candidate's answer to the current question.
// Valid only while a response is expected; when face detection is
// required the candidate must currently be visible.
func (s *Session) SubmitResponse(text string, voiceSourced bool) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrInvalidTurn
	}

	s.mu.Lock()
	if s.phase != PhaseAwaitingResponse || !s.canRespond {
		s.mu.Unlock()
		return ErrInvalidTurn
	}
	if s.cfg.FaceDetectionRequired && !s.faceDetected {
		s.mu.Unlock()
		return ErrFaceNotVisible
	}
	s.mu.Unlock()

	s.post(event{kind: evSubmit, text: text, voice: voiceSourced})
	return nil
}

// SetInterimTranscript replaces the live interim transcript. Empty text
// clears it. Interim text is transient and never enters the message log.
func (s *Session) SetInterimTranscript(text string) {
	s.post(event{kind: evInterim, text: text})
}

// ReportViolation records a proctoring violation. High severity, or the
// violation count reaching the configured maximum, terminates the session
// immediately regardless of the current phase.
func (s *Session) ReportViolation(kind model.AlertKind, severity model.AlertSeverity, message string) {
	s.post(event{kind: evViolation, alertKind: kind, severity: severity, message: message})
}

// UpdateFaceDetection consumes the continuous face monitor signal. Only
// the FaceDetected flag gates responses; face count and confidence are
// display data carried for the presentation layer.
func (s *Session) UpdateFaceDetection(upd model.FaceDetectionUpdate) {
	s.post(event{kind: evFaceUpdate, face: upd})
}

// Abort terminates the session for an out-of-band reason, e.g. the
// candidate's connection dropped.
func (s *Session) Abort(reason Reason) {
	s.post(event{kind: evAbort, reason: reason})
}

// Done is closed once the session has reached a terminal phase and the
// result has been delivered.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// CanListen reports whether speech capture should be running: the session
// is awaiting a response and the AI is not speaking. The speech input
// adapter uses this as its auto-restart gate.
func (s *Session) CanListen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseAwaitingResponse
}

// Result returns the terminal result, or nil while the session is live.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Violations returns the running violation count.
func (s *Session) Violations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.violations
}

// RemainingSeconds returns the countdown clock's current value.
func (s *Session) RemainingSeconds() int {
	return s.timer.Remaining()
}

func (s *Session) post(ev event) {
	select {
	case <-s.done:
	case s.events <- ev:
	}
}

func (s *Session) run() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

// handle applies one event. It runs only on the event loop goroutine;
// the mutex exists for the read-side accessors above.
func (s *Session) handle(ev event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.Terminal() {
		return
	}

	switch ev.kind {
	case evStart:
		s.handleStart()
	case evSpeechDone:
		s.handleSpeechDone(ev.index)
	case evSubmit:
		s.handleSubmit(ev.text, ev.voice)
	case evInterim:
		s.handleInterim(ev.text)
	case evViolation:
		s.handleViolation(ev.alertKind, ev.severity, ev.message)
	case evFaceUpdate:
		s.faceDetected = ev.face.FaceDetected
	case evTick:
		if s.cb.OnTick != nil {
			s.cb.OnTick(ev.remaining)
		}
	case evExpired:
		s.enterTerminal(ReasonTimeout)
	case evQuestionTimeout:
		s.handleQuestionTimeout(ev.index)
	case evThinkingDone:
		s.handleThinkingDone(ev.index)
	case evAbort:
		s.enterTerminal(ev.reason)
	}
}

func (s *Session) handleStart() {
	if s.startRequested {
		return // duplicate Start from re-entrant setup code
	}
	s.startRequested = true
	s.startedAt = time.Now()

	if len(s.cfg.Questions) == 0 {
		s.enterTerminal("")
		return
	}

	s.appendAI(s.cfg.WelcomeText)
	question := s.appendAI(s.cfg.Questions[0])
	s.setPhase(PhaseSpeaking)
	s.speak(s.cfg.WelcomeText + " " + question.Text)
}

func (s *Session) handleSpeechDone(seq int) {
	// A cancelled or superseded utterance still posts a completion;
	// only the latest one in PhaseSpeaking may advance the machine.
	if s.phase != PhaseSpeaking || seq != s.speakSeq {
		return
	}

	s.setPhase(PhaseAwaitingResponse)
	s.canRespond = true

	// The assessment clock starts exactly once, gated on the first
	// question having been fully spoken.
	s.timer.Start()

	index := s.current
	s.questionTimer = time.AfterFunc(s.cfg.QuestionTimeout, func() {
		s.post(event{kind: evQuestionTimeout, index: index})
	})
}

func (s *Session) handleSubmit(text string, voiceSourced bool) {
	// Re-checked here: a terminal event may have won the race since the
	// public-method validation passed.
	if s.phase != PhaseAwaitingResponse || !s.canRespond {
		return
	}
	if s.cfg.FaceDetectionRequired && !s.faceDetected {
		return
	}

	s.stopQuestionTimer()
	s.clearInterim()

	msg := model.Message{
		ID:             uuid.New(),
		Sender:         model.SenderCandidate,
		Text:           text,
		Timestamp:      time.Now(),
		IsVoiceSourced: voiceSourced,
	}
	s.messages = append(s.messages, msg)
	if s.cb.OnMessage != nil {
		s.cb.OnMessage(msg)
	}

	s.answered++
	s.canRespond = false
	s.setPhase(PhaseProcessing)

	index := s.current
	s.thinkingTimer = time.AfterFunc(s.cfg.ThinkingDelay, func() {
		s.post(event{kind: evThinkingDone, index: index})
	})
}

func (s *Session) handleThinkingDone(index int) {
	if s.phase != PhaseProcessing || index != s.current {
		return // stale deferred callback
	}
	s.advance()
}

func (s *Session) handleQuestionTimeout(index int) {
	if s.phase != PhaseAwaitingResponse || index != s.current {
		return
	}
	// Unanswered skip: the per-question timeout moves on, it never
	// terminates the whole assessment.
	s.log.Debug().Int("question", index).Msg("response timeout, skipping question")
	s.canRespond = false
	s.clearInterim()
	s.advance()
}

// advance moves to the next question or completes the session when the
// question list is exhausted. Caller holds s.mu.
func (s *Session) advance() {
	s.current++
	if s.current >= len(s.cfg.Questions) {
		s.enterTerminal("")
		return
	}

	question := s.appendAI(s.cfg.Questions[s.current])
	s.setPhase(PhaseSpeaking)
	s.speak(question.Text)
}

func (s *Session) handleInterim(text string) {
	if s.phase != PhaseAwaitingResponse {
		return
	}
	s.interimText = text
	s.emitInterim(text)
}

// emitInterim publishes the live interim message under the sentinel ID.
// Interim text never enters the message log; finalization or clearing
// replaces it with empty text.
func (s *Session) emitInterim(text string) {
	if s.cb.OnInterim == nil {
		return
	}
	s.cb.OnInterim(model.Message{
		ID:             model.InterimMessageID,
		Sender:         model.SenderCandidate,
		Text:           text,
		Timestamp:      time.Now(),
		IsInterim:      true,
		IsVoiceSourced: true,
	})
}

func (s *Session) handleViolation(kind model.AlertKind, severity model.AlertSeverity, message string) {
	alert := model.SecurityAlert{
		ID:        uuid.New(),
		Kind:      kind,
		Message:   message,
		Severity:  severity,
		Timestamp: time.Now(),
	}
	s.alerts = append(s.alerts, alert)
	s.violations++

	if s.cb.OnAlert != nil {
		s.cb.OnAlert(alert, s.violations)
	}

	if severity == model.SeverityHigh || s.violations >= s.cfg.MaxViolations {
		s.enterTerminal(ReasonViolation)
	}
}

// enterTerminal performs the one-and-only terminal transition: stop the
// clock and timers, cancel in-flight synthesis, build the result, notify.
// An empty reason means Completed. Caller holds s.mu.
func (s *Session) enterTerminal(reason Reason) {
	if s.phase.Terminal() {
		return
	}

	s.canRespond = false
	s.clearInterim()
	s.stopQuestionTimer()
	if s.thinkingTimer != nil {
		s.thinkingTimer.Stop()
		s.thinkingTimer = nil
	}
	s.timer.Stop()
	s.cancel() // abort any in-flight synthesis

	duration := 0
	if !s.startedAt.IsZero() {
		duration = int(time.Since(s.startedAt) / time.Second)
	}

	res := buildResult(s.answered, len(s.cfg.Questions), duration, s.cfg.PassThreshold, s.alerts, s.messages, reason)
	s.result = &res
	s.reason = reason

	if reason == "" {
		s.setPhase(PhaseCompleted)
	} else {
		s.setPhase(PhaseTerminated)
	}

	s.log.Info().
		Str("status", string(res.Status)).
		Str("reason", string(reason)).
		Int("answered", res.QuestionsAnswered).
		Int("score", res.Score).
		Bool("passed", res.Passed).
		Msg("Session finished")

	if s.cb.OnResult != nil {
		s.cb.OnResult(res)
	}
	close(s.done)
}

// speak synthesizes text off the event loop and posts a completion event.
// Synthesis errors are soft completions. Caller holds s.mu.
func (s *Session) speak(text string) {
	s.speakSeq++
	seq := s.speakSeq

	go func() {
		if err := s.synth.Synthesize(s.ctx, text); err != nil && s.ctx.Err() == nil {
			s.log.Warn().Err(err).Msg("Synthesis failed, treating as completed")
		}
		s.post(event{kind: evSpeechDone, index: seq})
	}()
}

func (s *Session) appendAI(text string) model.Message {
	msg := model.Message{
		ID:        uuid.New(),
		Sender:    model.SenderAI,
		Text:      text,
		Timestamp: time.Now(),
	}
	s.messages = append(s.messages, msg)
	if s.cb.OnMessage != nil {
		s.cb.OnMessage(msg)
	}
	return msg
}

func (s *Session) setPhase(p Phase) {
	s.phase = p
	if s.cb.OnPhase != nil {
		s.cb.OnPhase(p, s.current)
	}
}

func (s *Session) clearInterim() {
	if s.interimText == "" {
		return
	}
	s.interimText = ""
	s.emitInterim("")
}

func (s *Session) stopQuestionTimer() {
	if s.questionTimer != nil {
		s.questionTimer.Stop()
		s.questionTimer = nil
	}
}
