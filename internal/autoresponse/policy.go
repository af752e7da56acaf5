// Package autoresponse decides which triaged messages receive an
// automatic reply and runs the reply pass against a mailbox.
package autoresponse

import (
	"context"
	"time"

	"github.com/nhle/mailtriage/internal/model"
)

// IsEligible reports whether messages in cat may be auto-responded to.
// It is false for every category when auto-response is disabled.
func IsEligible(cat model.Category, cfg model.AutoResponseConfig) bool {
	return cfg.Enabled && cfg.Targets(cat)
}

// WaitDuration is the delay applied before each eligible reply in a run.
func WaitDuration(cfg model.AutoResponseConfig) time.Duration {
	return cfg.Wait()
}

// Waiter blocks for a delay. Wait returns ctx.Err() when the context is
// cancelled before the delay elapses.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

// TimerWaiter waits on a real timer.
type TimerWaiter struct{}

// Wait implements Waiter.
func (TimerWaiter) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NoWait returns immediately. Used by dry runs.
type NoWait struct{}

// Wait implements Waiter.
func (NoWait) Wait(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
