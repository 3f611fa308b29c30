package session

import (
	"math"

	"github.com/Iseelight/interview-backend/internal/model"
)

// Result is the immutable outcome snapshot of one assessment session.
// It is constructed exactly once, at the moment the session enters a
// terminal phase, and never mutated afterward.
type Result struct {
	QuestionsAnswered int                   `json:"questions_answered"`
	TotalQuestions    int                   `json:"total_questions"`
	DurationSeconds   int                   `json:"duration_seconds"`
	SecurityAlerts    []model.SecurityAlert `json:"security_alerts"`
	Messages          []model.Message       `json:"messages"`
	Status            model.SessionStatus   `json:"status"`
	TerminationReason string                `json:"termination_reason,omitempty"`
	Score             int                   `json:"score"`
	Passed            bool                  `json:"passed"`
}

// scoreOf computes the answered-ratio percentage, rounded to the nearest
// whole percent.
func scoreOf(answered, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(answered) / float64(total)))
}

// buildResult assembles the terminal Result. A completed session always
// passes; a terminated one passes only if the score clears the threshold.
func buildResult(answered, total, durationSeconds, passThreshold int, alerts []model.SecurityAlert, messages []model.Message, reason Reason) Result {
	res := Result{
		QuestionsAnswered: answered,
		TotalQuestions:    total,
		DurationSeconds:   durationSeconds,
		SecurityAlerts:    alerts,
		Messages:          messages,
		Score:             scoreOf(answered, total),
	}

	if reason == "" {
		res.Status = model.SessionStatusCompleted
		res.Passed = true
		return res
	}

	res.Status = model.SessionStatusTerminated
	res.TerminationReason = string(reason)
	res.Passed = res.Score >= passThreshold
	return res
}
