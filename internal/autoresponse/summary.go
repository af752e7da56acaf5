package autoresponse

import (
	"time"

	"github.com/nhle/mailtriage/internal/model"
)

// Outcome is the result recorded for one message in a run.
type Outcome string

const (
	OutcomeSent                 Outcome = "sent"
	OutcomeDrafted              Outcome = "drafted"
	OutcomeSkippedDisabled      Outcome = "skipped-disabled"
	OutcomeSkippedLowConfidence Outcome = "skipped-low-confidence"
	OutcomeSkippedOutOfCategory Outcome = "skipped-out-of-category"
	OutcomeGenerationFailed     Outcome = "generation-failed"
	OutcomeSendFailed           Outcome = "send-failed"
	OutcomeCancelled            Outcome = "cancelled"
)

// Failed reports whether o counts as a failure in the run totals.
func (o Outcome) Failed() bool {
	return o == OutcomeGenerationFailed || o == OutcomeSendFailed
}

// MessageOutcome records what happened to a single message.
type MessageOutcome struct {
	MessageID    string         `json:"message_id"`
	Category     model.Category `json:"category"`
	Subject      string         `json:"subject"`
	Outcome      Outcome        `json:"outcome"`
	Error        string         `json:"error,omitempty"`
	UsedFallback bool           `json:"used_fallback,omitempty"`
}

// RunSummary reports one orchestration pass. Outcomes are in processing
// order, so two passes over the same input yield identical lists.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Account    string    `json:"account"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	MessagesSeen  int                    `json:"messages_seen"`
	PerCategory   map[model.Category]int `json:"per_category"`
	AutoResponded int                    `json:"auto_responded"`
	Failed        int                    `json:"failed"`
	Fallbacks     int                    `json:"fallbacks"`

	Outcomes []MessageOutcome `json:"outcomes"`
}

// Count returns how many messages ended with outcome o.
func (s RunSummary) Count(o Outcome) int {
	n := 0
	for _, mo := range s.Outcomes {
		if mo.Outcome == o {
			n++
		}
	}
	return n
}

// Duration is the wall time the run took.
func (s RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *RunSummary) record(mo MessageOutcome) {
	s.Outcomes = append(s.Outcomes, mo)
	switch {
	case mo.Outcome == OutcomeSent || mo.Outcome == OutcomeDrafted:
		s.AutoResponded++
	case mo.Outcome.Failed():
		s.Failed++
	}
	if mo.UsedFallback {
		s.Fallbacks++
	}
}
