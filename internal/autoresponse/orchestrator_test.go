package autoresponse

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/mailtriage/internal/mailbox"
	"github.com/nhle/mailtriage/internal/model"
	"github.com/nhle/mailtriage/internal/responder"
	"github.com/nhle/mailtriage/internal/triage"
)

type fakeResponder struct {
	mu    sync.Mutex
	text  string
	err   error
	calls []responder.Request
}

func (f *fakeResponder) Generate(_ context.Context, req responder.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.text, f.err
}

type recordingWaiter struct {
	waits []time.Duration
	// onWait runs before each wait returns; it may cancel the run.
	onWait func(n int)
}

func (w *recordingWaiter) Wait(ctx context.Context, d time.Duration) error {
	w.waits = append(w.waits, d)
	if w.onWait != nil {
		w.onWait(len(w.waits))
	}
	return ctx.Err()
}

func triaged(cat model.Category, conf float64, msgs ...model.Message) []model.TriagedMessage {
	out := make([]model.TriagedMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, model.TriagedMessage{
			Message:        m,
			Classification: model.Classification{Category: cat, Confidence: conf},
		})
	}
	return out
}

func enabledConfig(categories ...string) model.AutoResponseConfig {
	return model.AutoResponseConfig{
		Enabled:       true,
		Categories:    categories,
		SignatureName: "Emmy",
		Mode:          model.ModeSend,
		BodyTruncate:  200,
	}
}

func newTestOrchestrator(store mailbox.Writer, r responder.Responder, w Waiter) *Orchestrator {
	return NewOrchestrator(store, r, w, "test", zap.NewNop())
}

func TestScenarioInvoiceAutoResponse(t *testing.T) {
	ctx := context.Background()
	msg := model.Message{
		ID:      "m1",
		Subject: "Quarterly Invoice #4521",
		Sender:  "Jane Doe <jane@example.com>",
		Body:    "Please find the invoice attached.",
	}
	store := mailbox.NewMemoryStore(msg)

	sorted, err := triage.NewSorter(store, triage.NewClassifier(nil), "test", zap.NewNop()).SortMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sorted[model.CategoryBillingFinance], 1)

	r := &fakeResponder{text: "Hi Jane,\n\nReceived, thanks.\n\nEmmy"}
	w := &recordingWaiter{}
	summary := newTestOrchestrator(store, r, w).RunAutoResponses(ctx, sorted, enabledConfig("billing_finance"))

	sent := store.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Re: Quarterly Invoice #4521", sent[0].Subject)
	assert.Equal(t, "jane@example.com", sent[0].To)
	assert.Equal(t, r.text, sent[0].Body)
	assert.False(t, sent[0].Draft)
	assert.True(t, store.IsRead("m1"))

	assert.Equal(t, 1, summary.MessagesSeen)
	assert.Equal(t, 1, summary.AutoResponded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, summary.PerCategory[model.CategoryBillingFinance])
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, OutcomeSent, summary.Outcomes[0].Outcome)
	assert.Equal(t, []time.Duration{0}, w.waits)

	require.Len(t, r.calls, 1)
	assert.Equal(t, responder.Request{
		RecipientName: "Jane Doe",
		Subject:       "Quarterly Invoice #4521",
		TruncatedBody: "Please find the invoice attached.",
		SignatureName: "Emmy",
	}, r.calls[0])
}

func TestDisabledSkipsEverything(t *testing.T) {
	categorized := model.NewCategorized()
	categorized[model.CategoryPriorityInbox] = triaged(model.CategoryPriorityInbox, 0.8,
		model.Message{ID: "1", Subject: "Need approval", Sender: "a@example.com"},
	)
	categorized[model.CategoryBillingFinance] = triaged(model.CategoryBillingFinance, 0.8,
		model.Message{ID: "2", Subject: "Invoice", Sender: "b@example.com"},
		model.Message{ID: "3", Subject: "Receipt", Sender: "c@example.com"},
	)

	cfg := enabledConfig(model.TargetAll)
	cfg.Enabled = false

	store := mailbox.NewMemoryStore()
	r := &fakeResponder{text: "unused"}
	summary := newTestOrchestrator(store, r, &recordingWaiter{}).RunAutoResponses(context.Background(), categorized, cfg)

	assert.Equal(t, 0, summary.AutoResponded)
	assert.Equal(t, 3, summary.MessagesSeen)
	require.Len(t, summary.Outcomes, 3)
	for _, mo := range summary.Outcomes {
		assert.Equal(t, OutcomeSkippedDisabled, mo.Outcome, mo.MessageID)
	}
	assert.Empty(t, store.Sent())
	assert.Empty(t, r.calls)
}

func TestOutOfCategoryMessagesAreSkipped(t *testing.T) {
	categorized := model.NewCategorized()
	categorized[model.CategoryMainInbox] = triaged(model.CategoryMainInbox, 0.8,
		model.Message{ID: "1", Subject: "Hi there", Sender: "a@example.com"},
	)
	categorized[model.CategoryPriorityInbox] = triaged(model.CategoryPriorityInbox, 0.8,
		model.Message{ID: "2", Subject: "Need approval", Sender: "Bo <bo@example.com>"},
	)

	store := mailbox.NewMemoryStore(categorized[model.CategoryPriorityInbox][0].Message)
	summary := newTestOrchestrator(store, &fakeResponder{text: "ok"}, &recordingWaiter{}).
		RunAutoResponses(context.Background(), categorized, enabledConfig("priority_inbox"))

	require.Len(t, summary.Outcomes, 2)
	assert.Equal(t, "2", summary.Outcomes[0].MessageID)
	assert.Equal(t, OutcomeSent, summary.Outcomes[0].Outcome)
	assert.Equal(t, "1", summary.Outcomes[1].MessageID)
	assert.Equal(t, OutcomeSkippedOutOfCategory, summary.Outcomes[1].Outcome)
	assert.Equal(t, 1, summary.Count(OutcomeSkippedOutOfCategory))
	require.Len(t, store.Sent(), 1)
	assert.Equal(t, "bo@example.com", store.Sent()[0].To)
}

func TestRunIsRepeatable(t *testing.T) {
	categorized := model.NewCategorized()
	categorized[model.CategoryPriorityInbox] = triaged(model.CategoryPriorityInbox, 0.8,
		model.Message{ID: "1", Subject: "Need approval", Sender: "a@example.com"},
		model.Message{ID: "2", Subject: "Deadline moved", Sender: "b@example.com"},
	)
	categorized[model.CategoryMainInbox] = triaged(model.CategoryMainInbox, 0.8,
		model.Message{ID: "3", Subject: "Hi there", Sender: "c@example.com"},
	)
	cfg := enabledConfig("priority_inbox")

	o := newTestOrchestrator(mailbox.NewMemoryStore(), &fakeResponder{text: "ok"}, &recordingWaiter{})
	first := o.RunAutoResponses(context.Background(), categorized, cfg)
	second := o.RunAutoResponses(context.Background(), categorized, cfg)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.MessagesSeen, second.MessagesSeen)
	assert.Equal(t, first.AutoResponded, second.AutoResponded)
	assert.Equal(t, first.Failed, second.Failed)
	assert.Equal(t, first.PerCategory, second.PerCategory)
	assert.Equal(t, first.Outcomes, second.Outcomes)
}

func TestSendFailureLeavesMessageUnread(t *testing.T) {
	msgs := []model.Message{
		{ID: "1", Subject: "Invoice", Sender: "a@example.com"},
		{ID: "2", Subject: "Receipt", Sender: "b@example.com"},
	}
	store := mailbox.NewMemoryStore(msgs...)
	store.SendErr = func(to, _ string) error {
		if to == "a@example.com" {
			return errors.New("smtp 554")
		}
		return nil
	}

	categorized := model.NewCategorized()
	categorized[model.CategoryBillingFinance] = triaged(model.CategoryBillingFinance, 0.8, msgs...)

	summary := newTestOrchestrator(store, &fakeResponder{text: "ok"}, &recordingWaiter{}).
		RunAutoResponses(context.Background(), categorized, enabledConfig("billing_finance"))

	require.Len(t, summary.Outcomes, 2)
	assert.Equal(t, OutcomeSendFailed, summary.Outcomes[0].Outcome)
	assert.Equal(t, "smtp 554", summary.Outcomes[0].Error)
	assert.Equal(t, OutcomeSent, summary.Outcomes[1].Outcome)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.AutoResponded)

	assert.False(t, store.IsRead("1"))
	assert.True(t, store.IsRead("2"))
}

func TestMarkReadFailureKeepsSentOutcome(t *testing.T) {
	msg := model.Message{ID: "1", Subject: "Invoice", Sender: "a@example.com"}
	store := mailbox.NewMemoryStore(msg)
	store.MarkReadErr = func(string) error { return errors.New("imap gone") }

	categorized := model.NewCategorized()
	categorized[model.CategoryBillingFinance] = triaged(model.CategoryBillingFinance, 0.8, msg)

	summary := newTestOrchestrator(store, &fakeResponder{text: "ok"}, &recordingWaiter{}).
		RunAutoResponses(context.Background(), categorized, enabledConfig("billing_finance"))

	assert.Equal(t, OutcomeSent, summary.Outcomes[0].Outcome)
	assert.Equal(t, 1, summary.AutoResponded)
	assert.False(t, store.IsRead("1"))
}

func TestGenerationFailureFallsBack(t *testing.T) {
	tests := []struct {
		name string
		r    *fakeResponder
	}{
		{name: "error", r: &fakeResponder{err: errors.New("model overloaded")}},
		{name: "blank", r: &fakeResponder{text: "  \n "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := model.Message{ID: "1", Subject: "Need approval", Sender: "Jane <jane@example.com>"}
			store := mailbox.NewMemoryStore(msg)
			categorized := model.NewCategorized()
			categorized[model.CategoryPriorityInbox] = triaged(model.CategoryPriorityInbox, 0.8, msg)

			summary := newTestOrchestrator(store, tt.r, &recordingWaiter{}).
				RunAutoResponses(context.Background(), categorized, enabledConfig("priority_inbox"))

			require.Len(t, store.Sent(), 1)
			assert.Equal(t, responder.FallbackReply("Jane", "Emmy"), store.Sent()[0].Body)
			assert.Equal(t, OutcomeSent, summary.Outcomes[0].Outcome)
			assert.True(t, summary.Outcomes[0].UsedFallback)
			assert.Equal(t, 1, summary.Fallbacks)
			assert.True(t, store.IsRead("1"))
		})
	}
}

func TestGenerationFailureFallsBackWithMinimalConfig(t *testing.T) {
	msg := model.Message{ID: "7", Subject: "Invoice overdue", Sender: "Jane <jane@example.com>"}
	store := mailbox.NewMemoryStore(msg)
	categorized := model.NewCategorized()
	categorized[model.CategoryBillingFinance] = triaged(model.CategoryBillingFinance, 0.8, msg)

	cfg := model.AutoResponseConfig{
		Enabled:       true,
		Categories:    []string{"billing_finance"},
		SignatureName: "Emmy",
	}

	summary := newTestOrchestrator(store, &fakeResponder{err: errors.New("llm down")}, &recordingWaiter{}).
		RunAutoResponses(context.Background(), categorized, cfg)

	require.Len(t, store.Sent(), 1)
	assert.Equal(t, "jane@example.com", store.Sent()[0].To)
	assert.Equal(t, responder.FallbackReply("Jane", "Emmy"), store.Sent()[0].Body)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, OutcomeSent, summary.Outcomes[0].Outcome)
	assert.True(t, summary.Outcomes[0].UsedFallback)
	assert.Equal(t, 1, summary.AutoResponded)
	assert.Equal(t, 0, summary.Failed)
	assert.True(t, store.IsRead("7"))
}

func TestGenerationFailureWithoutFallback(t *testing.T) {
	msg := model.Message{ID: "1", Subject: "Need approval", Sender: "jane@example.com"}
	store := mailbox.NewMemoryStore(msg)
	categorized := model.NewCategorized()
	categorized[model.CategoryPriorityInbox] = triaged(model.CategoryPriorityInbox, 0.8, msg)

	cfg := enabledConfig("priority_inbox")
	cfg.SkipOnGenerationFailure = true

	summary := newTestOrchestrator(store, &fakeResponder{err: errors.New("boom")}, &recordingWaiter{}).
		RunAutoResponses(context.Background(), categorized, cfg)

	assert.Equal(t, OutcomeGenerationFailed, summary.Outcomes[0].Outcome)
	assert.Contains(t, summary.Outcomes[0].Error, "boom")
	assert.Equal(t, 1, summary.Failed)
	assert.Empty(t, store.Sent())
	assert.False(t, store.IsRead("1"))
}

func TestBareSenderUsesFallbackName(t *testing.T) {
	msg := model.Message{ID: "1", Subject: "Need approval", Sender: "jane@example.com"}
	store := mailbox.NewMemoryStore(msg)
	categorized := model.NewCategorized()
	categorized[model.CategoryPriorityInbox] = triaged(model.CategoryPriorityInbox, 0.8, msg)

	r := &fakeResponder{text: "ok"}
	newTestOrchestrator(store, r, &recordingWaiter{}).
		RunAutoResponses(context.Background(), categorized, enabledConfig("priority_inbox"))

	require.Len(t, r.calls, 1)
	assert.Equal(t, "there", r.calls[0].RecipientName)
	assert.Equal(t, "jane@example.com", store.Sent()[0].To)
}

func TestDraftMode(t *testing.T) {
	msg := model.Message{ID: "1", Subject: "Invoice", Sender: "a@example.com"}
	store := mailbox.NewMemoryStore(msg)
	categorized := model.NewCategorized()
	categorized[model.CategoryBillingFinance] = triaged(model.CategoryBillingFinance, 0.8, msg)

	cfg := enabledConfig(model.TargetAll)
	cfg.Mode = model.ModeDraft

	summary := newTestOrchestrator(store, &fakeResponder{text: "ok"}, &recordingWaiter{}).
		RunAutoResponses(context.Background(), categorized, cfg)

	require.Len(t, store.Sent(), 1)
	assert.True(t, store.Sent()[0].Draft)
	assert.Equal(t, "Re: Invoice", store.Sent()[0].Subject)
	assert.Equal(t, OutcomeDrafted, summary.Outcomes[0].Outcome)
	assert.Equal(t, 1, summary.AutoResponded)
	assert.True(t, store.IsRead("1"))
}

func TestLowConfidenceIsSkipped(t *testing.T) {
	categorized := model.NewCategorized()
	categorized[model.CategoryNeedsReview] = []model.TriagedMessage{{
		Message: model.Message{ID: "1", Subject: "meh", Sender: "a@example.com"},
		Classification: model.Classification{
			Category: model.CategoryNeedsReview, Confidence: 0.5, Demoted: true,
		},
	}}
	categorized[model.CategoryBillingFinance] = triaged(model.CategoryBillingFinance, 0.65,
		model.Message{ID: "2", Subject: "Invoice", Sender: "b@example.com"},
	)

	cfg := enabledConfig(model.TargetAll)
	cfg.MinConfidence = 0.7

	store := mailbox.NewMemoryStore()
	w := &recordingWaiter{}
	summary := newTestOrchestrator(store, &fakeResponder{text: "ok"}, w).
		RunAutoResponses(context.Background(), categorized, cfg)

	assert.Equal(t, 2, summary.Count(OutcomeSkippedLowConfidence))
	assert.Empty(t, store.Sent())
	assert.Empty(t, w.waits)
}

func TestWaitAppliedBeforeEachReply(t *testing.T) {
	categorized := model.NewCategorized()
	categorized[model.CategoryPriorityInbox] = triaged(model.CategoryPriorityInbox, 0.8,
		model.Message{ID: "1", Subject: "Need approval", Sender: "a@example.com"},
		model.Message{ID: "2", Subject: "Deadline", Sender: "b@example.com"},
	)
	cfg := enabledConfig("priority_inbox")
	cfg.WaitMinutes = 3

	w := &recordingWaiter{}
	newTestOrchestrator(mailbox.NewMemoryStore(), &fakeResponder{text: "ok"}, w).
		RunAutoResponses(context.Background(), categorized, cfg)

	assert.Equal(t, []time.Duration{3 * time.Minute, 3 * time.Minute}, w.waits)
}

func TestCancellationMarksRemainingCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs := []model.Message{
		{ID: "1", Subject: "Need approval", Sender: "a@example.com"},
		{ID: "2", Subject: "Deadline", Sender: "b@example.com"},
		{ID: "3", Subject: "Question", Sender: "c@example.com"},
	}
	categorized := model.NewCategorized()
	categorized[model.CategoryPriorityInbox] = triaged(model.CategoryPriorityInbox, 0.8, msgs...)
	categorized[model.CategoryMainInbox] = triaged(model.CategoryMainInbox, 0.8,
		model.Message{ID: "4", Subject: "Hi", Sender: "d@example.com"},
	)

	w := &recordingWaiter{onWait: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	store := mailbox.NewMemoryStore(msgs...)
	summary := newTestOrchestrator(store, &fakeResponder{text: "ok"}, w).
		RunAutoResponses(ctx, categorized, enabledConfig("priority_inbox"))

	require.Len(t, summary.Outcomes, 4)
	assert.Equal(t, OutcomeSent, summary.Outcomes[0].Outcome)
	assert.Equal(t, OutcomeCancelled, summary.Outcomes[1].Outcome)
	assert.Equal(t, OutcomeCancelled, summary.Outcomes[2].Outcome)
	assert.Equal(t, OutcomeSkippedOutOfCategory, summary.Outcomes[3].Outcome)
	assert.Len(t, store.Sent(), 1)
	assert.Len(t, w.waits, 2)
	assert.False(t, summary.FinishedAt.IsZero())
}
