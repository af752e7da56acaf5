package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailtriage/internal/autoresponse"
	"github.com/nhle/mailtriage/internal/mailbox"
)

// PassState represents the current state of an account's triage pass.
type PassState int

const (
	PassIdle PassState = iota
	PassRunning
	PassError
)

func (s PassState) String() string {
	switch s {
	case PassRunning:
		return "running"
	case PassError:
		return "error"
	default:
		return "idle"
	}
}

// PassStatus holds the pass state for a single account.
type PassStatus struct {
	Account string
	State   PassState
	LastRun time.Time
	Error   error
}

// PassResult is published when a pass completes.
type PassResult struct {
	Account   string
	Summary   autoresponse.RunSummary
	Error     error
	AuthError bool
}

// Runner performs one triage pass for an account.
type Runner interface {
	Account() string
	Run(ctx context.Context) (autoresponse.RunSummary, error)
}

const defaultInterval = 300 * time.Second

// accountEntry holds a registered runner and its polling interval.
type accountEntry struct {
	runner   Runner
	interval time.Duration
	trigger  chan struct{}
}

// Poller runs periodic triage passes, one goroutine per account. Passes
// for the same account never overlap.
type Poller struct {
	accounts []accountEntry
	statuses map[string]*PassStatus
	resultCh chan PassResult
	cancel   context.CancelFunc
	wg       gosync.WaitGroup
	mu       gosync.Mutex
	running  bool
	logger   *zap.Logger
}

// New creates a new Poller.
func New(logger *zap.Logger) *Poller {
	return &Poller{
		statuses: make(map[string]*PassStatus),
		resultCh: make(chan PassResult, 16),
		logger:   logger,
	}
}

// Register adds an account runner. A non-positive interval means the
// default of five minutes.
func (p *Poller) Register(r Runner, interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if interval <= 0 {
		interval = defaultInterval
	}
	p.accounts = append(p.accounts, accountEntry{
		runner:   r,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	})
	p.statuses[r.Account()] = &PassStatus{
		Account: r.Account(),
		State:   PassIdle,
	}
}

// Start launches a polling goroutine per account. Each account runs a
// pass immediately and then on every tick. Cancelling ctx or calling
// Stop ends polling and aborts in-flight waits.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true

	ctx, p.cancel = context.WithCancel(ctx)
	for _, entry := range p.accounts {
		p.wg.Add(1)
		go func(entry accountEntry) {
			defer p.wg.Done()
			p.pollAccount(ctx, entry)
		}(entry)
	}
}

// Stop halts all polling goroutines and waits for them to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
}

// Results delivers completed passes. Results are dropped when the
// channel is full.
func (p *Poller) Results() <-chan PassResult {
	return p.resultCh
}

// TriggerAll requests an immediate pass for every account.
func (p *Poller) TriggerAll() {
	p.mu.Lock()
	accounts := make([]accountEntry, len(p.accounts))
	copy(accounts, p.accounts)
	p.mu.Unlock()

	for _, entry := range accounts {
		select {
		case entry.trigger <- struct{}{}:
		default:
			// Already pending.
		}
	}
}

// Trigger requests an immediate pass for one account.
func (p *Poller) Trigger(account string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, entry := range p.accounts {
		if entry.runner.Account() != account {
			continue
		}
		select {
		case entry.trigger <- struct{}{}:
		default:
		}
		return nil
	}
	return fmt.Errorf("unknown account %q", account)
}

// Statuses returns the current pass status of all accounts in
// registration order.
func (p *Poller) Statuses() []PassStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]PassStatus, 0, len(p.accounts))
	for _, entry := range p.accounts {
		statuses = append(statuses, *p.statuses[entry.runner.Account()])
	}
	return statuses
}

// pollAccount runs the polling loop for a single account.
func (p *Poller) pollAccount(ctx context.Context, entry accountEntry) {
	ticker := time.NewTicker(entry.interval)
	defer ticker.Stop()

	p.runPass(ctx, entry)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runPass(ctx, entry)
		case <-entry.trigger:
			p.runPass(ctx, entry)
		}
	}
}

// runPass performs one pass and publishes its result.
func (p *Poller) runPass(ctx context.Context, entry accountEntry) {
	account := entry.runner.Account()
	p.setStatus(account, PassRunning, nil)

	summary, err := entry.runner.Run(ctx)
	if err != nil {
		p.setStatus(account, PassError, err)

		authErr := mailbox.IsAuthError(err)
		if authErr {
			p.logger.Error("authentication failed, check the stored password",
				zap.String("account", account), zap.Error(err))
		} else {
			p.logger.Warn("triage pass failed", zap.String("account", account), zap.Error(err))
		}
		p.sendResult(PassResult{Account: account, Error: err, AuthError: authErr})
		return
	}

	p.setStatus(account, PassIdle, nil)
	p.sendResult(PassResult{Account: account, Summary: summary})
}

// setStatus updates the pass status for an account.
func (p *Poller) setStatus(account string, state PassState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[account]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == PassIdle && err == nil {
		status.LastRun = time.Now()
	}
}

// sendResult sends a PassResult without blocking.
func (p *Poller) sendResult(res PassResult) {
	select {
	case p.resultCh <- res:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}
