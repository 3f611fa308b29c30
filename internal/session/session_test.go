package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Iseelight/interview-backend/internal/model"
)

// fakeSynth records spoken text. When block is set, Synthesize waits for
// it to be closed (or ctx cancellation) before completing.
type fakeSynth struct {
	mu     sync.Mutex
	spoken []string
	block  chan struct{}
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *fakeSynth) spokenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spoken)
}

// recorder collects every callback emission for assertions.
type recorder struct {
	mu       sync.Mutex
	phases   []Phase
	messages []model.Message
	interims []model.Message
	alerts   []model.SecurityAlert
	results  []Result
	ticks    []int
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnPhase: func(p Phase, _ int) {
			r.mu.Lock()
			r.phases = append(r.phases, p)
			r.mu.Unlock()
		},
		OnMessage: func(m model.Message) {
			r.mu.Lock()
			r.messages = append(r.messages, m)
			r.mu.Unlock()
		},
		OnInterim: func(m model.Message) {
			r.mu.Lock()
			r.interims = append(r.interims, m)
			r.mu.Unlock()
		},
		OnAlert: func(a model.SecurityAlert, _ int) {
			r.mu.Lock()
			r.alerts = append(r.alerts, a)
			r.mu.Unlock()
		},
		OnResult: func(res Result) {
			r.mu.Lock()
			r.results = append(r.results, res)
			r.mu.Unlock()
		},
		OnTick: func(remaining int) {
			r.mu.Lock()
			r.ticks = append(r.ticks, remaining)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) resultCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func (r *recorder) tickCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ticks)
}

func (r *recorder) interimCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.interims)
}

func (r *recorder) aiMessageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m.Sender == model.SenderAI {
			n++
		}
	}
	return n
}

func testConfig(questions ...string) Config {
	return Config{
		Duration:      time.Hour,
		Questions:     questions,
		MaxViolations: 2,
		ThinkingDelay: 10 * time.Millisecond,
		TickInterval:  10 * time.Millisecond,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitPhase(t *testing.T, s *Session, p Phase) {
	t.Helper()
	waitFor(t, "phase "+p.String(), func() bool { return s.Phase() == p })
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
}

func submitWhenAccepted(t *testing.T, s *Session, text string) {
	t.Helper()
	waitFor(t, "response accepted", func() bool {
		return s.SubmitResponse(text, false) == nil
	})
}

func TestSessionCompletesAllQuestions(t *testing.T) {
	synth := &fakeSynth{}
	rec := &recorder{}
	s := New(testConfig("First question?", "Second question?"), synth, rec.callbacks(), zerolog.Nop())

	s.Start()
	waitPhase(t, s, PhaseAwaitingResponse)
	if err := s.SubmitResponse("my first answer", false); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	submitWhenAccepted(t, s, "my second answer")
	waitDone(t, s)

	res := s.Result()
	if res == nil {
		t.Fatal("no result after completion")
	}
	if res.Status != model.SessionStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", res.Status)
	}
	if res.QuestionsAnswered != 2 || res.TotalQuestions != 2 {
		t.Errorf("answered %d/%d, want 2/2", res.QuestionsAnswered, res.TotalQuestions)
	}
	if res.Score != 100 || !res.Passed {
		t.Errorf("score=%d passed=%t, want 100/true", res.Score, res.Passed)
	}
	if res.TerminationReason != "" {
		t.Errorf("unexpected termination reason %q", res.TerminationReason)
	}

	// Welcome + 2 questions from the AI, 2 candidate answers.
	if got := rec.aiMessageCount(); got != 3 {
		t.Errorf("AI messages = %d, want 3", got)
	}
	if len(res.Messages) != 5 {
		t.Errorf("transcript length = %d, want 5", len(res.Messages))
	}
}

func TestStartTwiceSpeaksWelcomeOnce(t *testing.T) {
	synth := &fakeSynth{}
	rec := &recorder{}
	s := New(testConfig("Only question?"), synth, rec.callbacks(), zerolog.Nop())

	s.Start()
	s.Start()
	waitPhase(t, s, PhaseAwaitingResponse)

	if got := synth.spokenCount(); got != 1 {
		t.Errorf("utterances = %d, want 1", got)
	}
	// Welcome + question.
	if got := rec.aiMessageCount(); got != 2 {
		t.Errorf("AI messages = %d, want 2", got)
	}
}

func TestSubmitRejectedWhileSpeaking(t *testing.T) {
	synth := &fakeSynth{block: make(chan struct{})}
	rec := &recorder{}
	s := New(testConfig("Question?"), synth, rec.callbacks(), zerolog.Nop())

	s.Start()
	waitPhase(t, s, PhaseSpeaking)

	if err := s.SubmitResponse("too early", false); !errors.Is(err, ErrInvalidTurn) {
		t.Fatalf("submit during speaking: %v, want ErrInvalidTurn", err)
	}

	close(synth.block)
	waitPhase(t, s, PhaseAwaitingResponse)

	if err := s.SubmitResponse("on time", false); err != nil {
		t.Fatalf("submit while awaiting: %v", err)
	}
}

func TestSubmitEmptyRejected(t *testing.T) {
	s := New(testConfig("Question?"), &fakeSynth{}, Callbacks{}, zerolog.Nop())

	s.Start()
	waitPhase(t, s, PhaseAwaitingResponse)

	if err := s.SubmitResponse("   ", false); !errors.Is(err, ErrInvalidTurn) {
		t.Fatalf("empty submit: %v, want ErrInvalidTurn", err)
	}
}

func TestFaceGateBlocksSubmit(t *testing.T) {
	cfg := testConfig("Question?")
	cfg.FaceDetectionRequired = true
	s := New(cfg, &fakeSynth{}, Callbacks{}, zerolog.Nop())

	s.Start()
	waitPhase(t, s, PhaseAwaitingResponse)

	s.UpdateFaceDetection(model.FaceDetectionUpdate{FaceDetected: false, FaceCount: 0})
	waitFor(t, "face gate to close", func() bool {
		return errors.Is(s.SubmitResponse("hidden", false), ErrFaceNotVisible)
	})

	s.UpdateFaceDetection(model.FaceDetectionUpdate{FaceDetected: true, FaceCount: 1, Confidence: 0.97})
	submitWhenAccepted(t, s, "visible again")
	waitDone(t, s)
}

func TestInterimCarriesSentinelID(t *testing.T) {
	rec := &recorder{}
	s := New(testConfig("Q1?"), &fakeSynth{}, rec.callbacks(), zerolog.Nop())

	s.Start()
	waitPhase(t, s, PhaseAwaitingResponse)

	s.SetInterimTranscript("I am thin")
	waitFor(t, "interim delivery", func() bool { return rec.interimCount() == 1 })

	rec.mu.Lock()
	first := rec.interims[0]
	rec.mu.Unlock()
	if first.ID != model.InterimMessageID || !first.IsInterim {
		t.Errorf("interim = id %s, is_interim %t; want sentinel ID and true", first.ID, first.IsInterim)
	}
	if first.Text != "I am thin" {
		t.Errorf("interim text = %q", first.Text)
	}

	// Submitting clears the interim under the same sentinel ID, and no
	// interim ever reaches the final transcript.
	submitWhenAccepted(t, s, "I am thinking out loud")
	waitDone(t, s)

	rec.mu.Lock()
	last := rec.interims[len(rec.interims)-1]
	rec.mu.Unlock()
	if last.ID != model.InterimMessageID || last.Text != "" {
		t.Errorf("clear = id %s text %q, want sentinel ID and empty text", last.ID, last.Text)
	}
	for _, m := range s.Result().Messages {
		if m.IsInterim {
			t.Error("interim message leaked into the transcript")
		}
	}
}

func TestViolationLimitTerminates(t *testing.T) {
	rec := &recorder{}
	s := New(testConfig("Q1?", "Q2?"), &fakeSynth{}, rec.callbacks(), zerolog.Nop())

	s.Start()
	waitPhase(t, s, PhaseAwaitingResponse)

	s.ReportViolation(model.AlertTabSwitch, model.SeverityMedium, "tab switch detected")
	s.ReportViolation(model.AlertLookingAway, model.SeverityMedium, "looking away")
	waitDone(t, s)

	res := s.Result()
	if res.Status != model.SessionStatusTerminated {
		t.Errorf("status = %s, want TERMINATED", res.Status)
	}
	if res.TerminationReason != string(ReasonViolation) {
		t.Errorf("reason = %q, want violation", res.TerminationReason)
	}
	if len(res.SecurityAlerts) != 2 {
		t.Errorf("alerts = %d, want 2", len(res.SecurityAlerts))
	}

	// A violation after termination must be a no-op.
	s.ReportViolation(model.AlertTabSwitch, model.SeverityMedium, "late")
	time.Sleep(20 * time.Millisecond)
	if got := rec.resultCount(); got != 1 {
		t.Errorf("results delivered = %d, want 1", got)
	}
	if s.Violations() != 2 {
		t.Errorf("violations = %d, want 2", s.Violations())
	}
}

func TestHighSeverityTerminatesImmediately(t *testing.T) {
	s := New(testConfig("Q1?"), &fakeSynth{}, Callbacks{}, zerolog.Nop())

	s.Start()
	waitPhase(t, s, PhaseAwaitingResponse)

	s.ReportViolation(model.AlertMultipleFaces, model.SeverityHigh, "second person visible")
	waitDone(t, s)

	res := s.Result()
	if res.Status != model.SessionStatusTerminated || res.TerminationReason != string(ReasonViolation) {
		t.Errorf("got %s/%q, want TERMINATED/violation", res.Status, res.TerminationReason)
	}
}

func TestQuestionTimeoutSkipsNotTerminates(t *testing.T) {
	cfg := testConfig("Q1?", "Q2?")
	cfg.QuestionTimeout = 40 * time.Millisecond
	s := New(cfg, &fakeSynth{}, Callbacks{}, zerolog.Nop())

	s.Start()
	waitDone(t, s)

	res := s.Result()
	if res.Status != model.SessionStatusCompleted {
		t.Errorf("status = %s, want COMPLETED (timeouts skip, not terminate)", res.Status)
	}
	if res.QuestionsAnswered != 0 || res.Score != 0 {
		t.Errorf("answered=%d score=%d, want 0/0", res.QuestionsAnswered, res.Score)
	}
	// Completing the flow passes even with nothing answered.
	if !res.Passed {
		t.Error("completed session should pass")
	}
}

func TestClockExpiryTerminates(t *testing.T) {
	cfg := testConfig("Q1?")
	cfg.Duration = 3 * time.Second // 3 ticks at the shrunken interval
	s := New(cfg, &fakeSynth{}, Callbacks{}, zerolog.Nop())

	s.Start()
	waitDone(t, s)

	res := s.Result()
	if res.Status != model.SessionStatusTerminated {
		t.Errorf("status = %s, want TERMINATED", res.Status)
	}
	if res.TerminationReason != string(ReasonTimeout) {
		t.Errorf("reason = %q, want timeout", res.TerminationReason)
	}
	if res.Passed {
		t.Error("timed-out session with score 0 should not pass")
	}
}

func TestClockStartsAfterFirstQuestionSpoken(t *testing.T) {
	synth := &fakeSynth{block: make(chan struct{})}
	rec := &recorder{}
	s := New(testConfig("Q1?"), synth, rec.callbacks(), zerolog.Nop())

	s.Start()
	waitPhase(t, s, PhaseSpeaking)

	// Clock must hold while the welcome is still being spoken.
	time.Sleep(50 * time.Millisecond)
	if got := rec.tickCount(); got != 0 {
		t.Fatalf("ticks before speech completed = %d, want 0", got)
	}

	close(synth.block)
	waitPhase(t, s, PhaseAwaitingResponse)
	waitFor(t, "first tick", func() bool { return rec.tickCount() > 0 })
}

func TestAbortOnDisconnect(t *testing.T) {
	rec := &recorder{}
	s := New(testConfig("Q1?"), &fakeSynth{}, rec.callbacks(), zerolog.Nop())

	s.Start()
	waitPhase(t, s, PhaseAwaitingResponse)

	s.Abort(ReasonDisconnected)
	waitDone(t, s)

	res := s.Result()
	if res.TerminationReason != string(ReasonDisconnected) {
		t.Errorf("reason = %q, want disconnected", res.TerminationReason)
	}

	// Racing finishers settle on a single result.
	s.Abort(ReasonDisconnected)
	time.Sleep(20 * time.Millisecond)
	if got := rec.resultCount(); got != 1 {
		t.Errorf("results delivered = %d, want 1", got)
	}
}

func TestPartialScoreClearsThreshold(t *testing.T) {
	s := New(testConfig("Q1?", "Q2?", "Q3?"), &fakeSynth{}, Callbacks{}, zerolog.Nop())

	s.Start()
	submitWhenAccepted(t, s, "answer one")
	submitWhenAccepted(t, s, "answer two")

	// Two violations on the last question terminate the session.
	s.ReportViolation(model.AlertTabSwitch, model.SeverityMedium, "tab switch")
	s.ReportViolation(model.AlertTabSwitch, model.SeverityMedium, "tab switch")
	waitDone(t, s)

	res := s.Result()
	if res.Status != model.SessionStatusTerminated {
		t.Fatalf("status = %s, want TERMINATED", res.Status)
	}
	if res.Score != 67 {
		t.Errorf("score = %d, want 67", res.Score)
	}
	if !res.Passed {
		t.Error("score 67 should clear the default threshold")
	}
}

func TestNoQuestionsCompletesImmediately(t *testing.T) {
	s := New(testConfig(), &fakeSynth{}, Callbacks{}, zerolog.Nop())

	s.Start()
	waitDone(t, s)

	res := s.Result()
	if res.Status != model.SessionStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", res.Status)
	}
	if res.Score != 0 {
		t.Errorf("score = %d, want 0", res.Score)
	}
}
