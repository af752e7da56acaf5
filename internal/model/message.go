package model

import "time"

// Message is a read-only snapshot of a mailbox message.
type Message struct {
	// ID is the mailbox's opaque identifier, unique within one run.
	ID string `json:"id"`

	// Subject is the raw subject line.
	Subject string `json:"subject"`

	// Sender is the From header, either "Name <addr>" or a bare address.
	Sender string `json:"sender"`

	// Body is the plain-text body; may be empty.
	Body string `json:"body"`

	// ReceivedAt is the message date. Mailbox adapters substitute the
	// fetch time when the header is missing or unparseable.
	ReceivedAt time.Time `json:"received_at"`
}

// ReceivedAtOr returns ReceivedAt, or fallback when it is the zero time.
func (m Message) ReceivedAtOr(fallback time.Time) time.Time {
	if m.ReceivedAt.IsZero() {
		return fallback
	}
	return m.ReceivedAt
}

// Classification is a confidence-scored category assignment.
type Classification struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`

	// Demoted is set when the winning candidate fell below the
	// classifier threshold and the assignment was forced to needs_review.
	Demoted bool `json:"demoted,omitempty"`
}

// TriagedMessage pairs a message with the classification it was sorted by.
type TriagedMessage struct {
	Message        Message        `json:"message"`
	Classification Classification `json:"classification"`
}
