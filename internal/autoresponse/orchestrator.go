package autoresponse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/mailtriage/internal/mailbox"
	"github.com/nhle/mailtriage/internal/metrics"
	"github.com/nhle/mailtriage/internal/model"
	"github.com/nhle/mailtriage/internal/responder"
)

const replyPrefix = "Re: "

// Orchestrator drafts and delivers auto-responses for a sorted batch.
// It runs sequentially; callers wanting parallel accounts run one
// Orchestrator per account.
type Orchestrator struct {
	store     mailbox.Writer
	responder responder.Responder
	waiter    Waiter
	account   string
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrchestrator creates an Orchestrator. A nil waiter means TimerWaiter.
func NewOrchestrator(store mailbox.Writer, r responder.Responder, waiter Waiter, account string, logger *zap.Logger) *Orchestrator {
	if waiter == nil {
		waiter = TimerWaiter{}
	}
	return &Orchestrator{
		store:     store,
		responder: r,
		waiter:    waiter,
		account:   account,
		logger:    logger.With(zap.String("account", account)),
		now:       time.Now,
	}
}

// RunAutoResponses processes categorized in category order and returns
// the run summary. It never fails: per-message problems are recorded as
// outcomes, and a cancelled ctx marks the remaining messages cancelled.
func (o *Orchestrator) RunAutoResponses(ctx context.Context, categorized model.Categorized, cfg model.AutoResponseConfig) RunSummary {
	summary := RunSummary{
		RunID:       uuid.New().String(),
		Account:     o.account,
		StartedAt:   o.now(),
		PerCategory: make(map[model.Category]int, len(categorized)),
	}
	log := o.logger.With(zap.String("run_id", summary.RunID))

	for _, cat := range categorized.OrderedKeys() {
		msgs := categorized[cat]
		summary.PerCategory[cat] = len(msgs)
		summary.MessagesSeen += len(msgs)

		var skip Outcome
		switch {
		case !cfg.Enabled:
			skip = OutcomeSkippedDisabled
		case !IsEligible(cat, cfg):
			skip = OutcomeSkippedOutOfCategory
		}

		for _, tm := range msgs {
			var mo MessageOutcome
			if skip != "" {
				mo = newOutcome(tm, skip)
			} else {
				mo = o.respond(ctx, tm, cfg, log)
			}
			summary.record(mo)
			metrics.IncrementOutcome(o.account, string(mo.Outcome))
			if mo.UsedFallback {
				metrics.IncrementFallback(o.account)
			}
		}
	}

	summary.FinishedAt = o.now()
	log.Info("auto-response run finished",
		zap.Int("messages_seen", summary.MessagesSeen),
		zap.Int("auto_responded", summary.AutoResponded),
		zap.Int("failed", summary.Failed),
		zap.Int("fallbacks", summary.Fallbacks),
	)
	return summary
}

// respond handles one eligible message.
func (o *Orchestrator) respond(ctx context.Context, tm model.TriagedMessage, cfg model.AutoResponseConfig, log *zap.Logger) MessageOutcome {
	msg := tm.Message
	log = log.With(zap.String("message_id", msg.ID), zap.String("category", string(tm.Classification.Category)))

	if ctx.Err() != nil {
		return withError(newOutcome(tm, OutcomeCancelled), ctx.Err())
	}
	if tm.Classification.Demoted || tm.Classification.Confidence < cfg.MinConfidence {
		log.Debug("skipping low-confidence message", zap.Float64("confidence", tm.Classification.Confidence))
		return newOutcome(tm, OutcomeSkippedLowConfidence)
	}

	if err := o.waiter.Wait(ctx, WaitDuration(cfg)); err != nil {
		return withError(newOutcome(tm, OutcomeCancelled), err)
	}

	sender := mailbox.ParseSender(msg.Sender)
	mo := newOutcome(tm, OutcomeSent)

	body, err := o.draft(ctx, sender, msg, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return withError(newOutcome(tm, OutcomeCancelled), ctx.Err())
		}
		if cfg.SkipOnGenerationFailure {
			log.Warn("reply generation failed", zap.Error(err))
			return withError(newOutcome(tm, OutcomeGenerationFailed), err)
		}
		log.Info("reply generation failed, using fallback", zap.Error(err))
		body = responder.FallbackReply(sender.GreetingName(), cfg.SignatureName)
		mo.UsedFallback = true
	}

	subject := replyPrefix + msg.Subject
	if cfg.Mode == model.ModeDraft {
		mo.Outcome = OutcomeDrafted
		_, err = o.store.SaveDraft(ctx, sender.Address, subject, body)
	} else {
		_, err = o.store.Send(ctx, sender.Address, subject, body)
	}
	if err != nil {
		log.Warn("reply delivery failed", zap.String("to", sender.Address), zap.Error(err))
		mo.Outcome = OutcomeSendFailed
		return withError(mo, err)
	}

	if err := o.store.MarkRead(ctx, msg.ID); err != nil {
		log.Warn("marking message read failed", zap.Error(err))
	}

	log.Info("auto-response delivered", zap.String("outcome", string(mo.Outcome)), zap.Bool("fallback", mo.UsedFallback))
	return mo
}

// draft asks the responder for a reply body. Blank output is an error.
func (o *Orchestrator) draft(ctx context.Context, sender mailbox.Sender, msg model.Message, cfg model.AutoResponseConfig) (string, error) {
	if o.responder == nil {
		return "", errors.New("no responder configured")
	}
	text, err := o.responder.Generate(ctx, responder.Request{
		RecipientName:     sender.GreetingName(),
		Subject:           msg.Subject,
		TruncatedBody:     responder.TruncateBody(msg.Body, cfg.BodyTruncate),
		StyleInstructions: cfg.StyleInstructions,
		SignatureName:     cfg.SignatureName,
	})
	if err != nil {
		return "", fmt.Errorf("generating reply to %s: %w", msg.ID, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", responder.ErrEmptyReply
	}
	return text, nil
}

func newOutcome(tm model.TriagedMessage, o Outcome) MessageOutcome {
	return MessageOutcome{
		MessageID: tm.Message.ID,
		Category:  tm.Classification.Category,
		Subject:   tm.Message.Subject,
		Outcome:   o,
	}
}

func withError(mo MessageOutcome, err error) MessageOutcome {
	mo.Error = err.Error()
	return mo
}
