// Package runner wires one account's sort and auto-respond steps into a
// single triage pass.
package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailtriage/internal/autoresponse"
	"github.com/nhle/mailtriage/internal/mailbox"
	"github.com/nhle/mailtriage/internal/metrics"
	"github.com/nhle/mailtriage/internal/model"
	"github.com/nhle/mailtriage/internal/store"
	"github.com/nhle/mailtriage/internal/triage"
)

// Runner performs triage passes for one account.
type Runner struct {
	account      string
	sorter       *triage.Sorter
	orchestrator *autoresponse.Orchestrator
	runs         store.RunStore
	maxResults   int
	session      mailbox.Session
	logger       *zap.Logger

	// cfgFn is read at the start of every pass so edits between passes
	// take effect while a pass keeps one snapshot.
	cfgFn func() model.AutoResponseConfig
}

// Option configures a Runner.
type Option func(*Runner)

// WithSession ends the mailbox session after every pass.
func WithSession(s mailbox.Session) Option {
	return func(r *Runner) { r.session = s }
}

// New creates a Runner. runs may be nil to skip history recording.
func New(
	account string,
	sorter *triage.Sorter,
	orchestrator *autoresponse.Orchestrator,
	runs store.RunStore,
	maxResults int,
	cfgFn func() model.AutoResponseConfig,
	logger *zap.Logger,
	opts ...Option,
) *Runner {
	r := &Runner{
		account:      account,
		sorter:       sorter,
		orchestrator: orchestrator,
		runs:         runs,
		maxResults:   maxResults,
		cfgFn:        cfgFn,
		logger:       logger.With(zap.String("account", account)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Account returns the account label.
func (r *Runner) Account() string {
	return r.account
}

// Sort fetches and classifies unread mail without responding.
func (r *Runner) Sort(ctx context.Context) (model.Categorized, error) {
	defer r.endSession()
	return r.sort(ctx)
}

func (r *Runner) sort(ctx context.Context) (model.Categorized, error) {
	categorized, err := r.sorter.SortMessages(ctx, r.maxResults)
	if err != nil {
		return categorized, fmt.Errorf("sorting %s: %w", r.account, err)
	}
	return categorized, nil
}

// Run sorts unread mail, runs auto-responses over the result and records
// the summary. Only a failed listing is returned as an error.
func (r *Runner) Run(ctx context.Context) (autoresponse.RunSummary, error) {
	start := time.Now()
	defer r.endSession()

	categorized, err := r.sort(ctx)
	if err != nil {
		return autoresponse.RunSummary{}, err
	}

	cfg := r.cfgFn()
	summary := r.orchestrator.RunAutoResponses(ctx, categorized, cfg)
	metrics.RecordRunDuration(r.account, time.Since(start))

	if r.runs != nil {
		// Recording must outlive a cancelled pass.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := r.runs.SaveRun(saveCtx, summary); err != nil {
			r.logger.Warn("recording run failed", zap.String("run_id", summary.RunID), zap.Error(err))
		}
	}

	return summary, nil
}

func (r *Runner) endSession() {
	if r.session == nil {
		return
	}
	if err := r.session.EndSession(); err != nil {
		r.logger.Debug("ending mailbox session failed", zap.Error(err))
	}
}
