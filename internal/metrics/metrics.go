package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesClassified counts sorted messages per assigned category.
	MessagesClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtriage_messages_classified_total",
			Help: "Total number of messages classified",
		},
		[]string{"account", "category"},
	)

	// AutoResponseOutcomes counts per-message orchestration outcomes.
	AutoResponseOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtriage_auto_response_outcomes_total",
			Help: "Total number of auto-response outcomes by kind",
		},
		[]string{"account", "outcome"},
	)

	// ResponderFallbacks counts replies that used the fallback template.
	ResponderFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtriage_responder_fallbacks_total",
			Help: "Total number of replies that fell back to the template",
		},
		[]string{"account"},
	)

	// RunDuration tracks how long a full sort+respond pass takes.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailtriage_run_duration_seconds",
			Help:    "Duration of a triage pass in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27m
		},
		[]string{"account"},
	)
)

// IncrementClassified records one classified message.
func IncrementClassified(account, category string) {
	MessagesClassified.WithLabelValues(account, category).Inc()
}

// IncrementOutcome records one orchestration outcome.
func IncrementOutcome(account, outcome string) {
	AutoResponseOutcomes.WithLabelValues(account, outcome).Inc()
}

// IncrementFallback records one fallback reply.
func IncrementFallback(account string) {
	ResponderFallbacks.WithLabelValues(account).Inc()
}

// RecordRunDuration records the duration of one pass.
func RecordRunDuration(account string, d time.Duration) {
	RunDuration.WithLabelValues(account).Observe(d.Seconds())
}
