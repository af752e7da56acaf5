package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailtriage/internal/autoresponse"
	"github.com/nhle/mailtriage/internal/model"
)

func TestInbox(t *testing.T) {
	categorized := model.NewCategorized()
	categorized[model.CategoryBillingFinance] = []model.TriagedMessage{{
		Message: model.Message{
			ID: "1", Subject: "Quarterly Invoice #4521", Sender: "Jane <jane@example.com>",
			ReceivedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		},
		Classification: model.Classification{Category: model.CategoryBillingFinance, Confidence: 0.8},
	}}

	var buf bytes.Buffer
	require.NoError(t, Inbox(&buf, "work", categorized))

	out := buf.String()
	assert.Contains(t, out, "work: 1 unread")
	assert.Contains(t, out, "Billing & Finance")
	assert.Contains(t, out, "Training")
	assert.Contains(t, out, "Quarterly Invoice #4521")
	assert.Contains(t, out, "0.80")
	assert.Contains(t, out, "2026-03-01 09:30")
}

func TestInboxMissingDateShowsNow(t *testing.T) {
	orig := now
	now = func() time.Time { return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = orig })

	categorized := model.NewCategorized()
	categorized[model.CategoryMainInbox] = []model.TriagedMessage{{
		Message:        model.Message{ID: "1", Subject: "Hi there"},
		Classification: model.Classification{Category: model.CategoryMainInbox, Confidence: 0.8},
	}}

	var buf bytes.Buffer
	require.NoError(t, Inbox(&buf, "work", categorized))
	assert.Contains(t, buf.String(), "2026-10-19 08:00")
}

func TestSummary(t *testing.T) {
	s := autoresponse.RunSummary{
		RunID:         "0123456789abcdef",
		Account:       "work",
		MessagesSeen:  2,
		AutoResponded: 1,
		Failed:        1,
		Outcomes: []autoresponse.MessageOutcome{
			{MessageID: "1", Category: model.CategoryBillingFinance, Subject: "Invoice", Outcome: autoresponse.OutcomeSent, UsedFallback: true},
			{MessageID: "2", Category: model.CategoryPriorityInbox, Subject: "Need approval", Outcome: autoresponse.OutcomeSendFailed},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Summary(&buf, s))

	out := buf.String()
	assert.Contains(t, out, "Run 01234567")
	assert.Contains(t, out, "responded: 1")
	assert.Contains(t, out, "sent (fallback)")
	assert.Contains(t, out, "send-failed")
	assert.Contains(t, out, "Priority")
}

func TestSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Summary(&buf, autoresponse.RunSummary{RunID: "r"}))
	assert.Contains(t, buf.String(), "No messages processed.")
}

func TestHistory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, History(&buf, nil))
	assert.Contains(t, buf.String(), "No runs recorded yet.")

	buf.Reset()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, History(&buf, []autoresponse.RunSummary{{
		RunID:         "abcdef0123",
		Account:       "home",
		StartedAt:     start,
		FinishedAt:    start.Add(90 * time.Second),
		MessagesSeen:  4,
		AutoResponded: 2,
	}}))
	out := buf.String()
	assert.Contains(t, out, "abcdef01")
	assert.Contains(t, out, "home")
	assert.Contains(t, out, "1m30s")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
