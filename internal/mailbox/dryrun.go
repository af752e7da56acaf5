package mailbox

import (
	"context"

	"go.uber.org/zap"

	"github.com/nhle/mailtriage/internal/model"
)

// DryRun wraps a MailStore, passing reads through and logging writes
// without performing them.
type DryRun struct {
	inner  MailStore
	logger *zap.Logger
}

// NewDryRun creates a dry-run decorator around inner.
func NewDryRun(inner MailStore, logger *zap.Logger) *DryRun {
	return &DryRun{inner: inner, logger: logger}
}

func (d *DryRun) ListUnread(ctx context.Context, limit int) ([]MessageRef, error) {
	return d.inner.ListUnread(ctx, limit)
}

func (d *DryRun) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	return d.inner.GetMessage(ctx, id)
}

func (d *DryRun) Send(_ context.Context, to, subject, body string) (*SendResult, error) {
	d.logger.Info("dry run: would send reply",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_len", len(body)),
	)
	return &SendResult{}, nil
}

func (d *DryRun) SaveDraft(_ context.Context, to, subject, body string) (*SendResult, error) {
	d.logger.Info("dry run: would save draft",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_len", len(body)),
	)
	return &SendResult{}, nil
}

func (d *DryRun) MarkRead(_ context.Context, id string) error {
	d.logger.Info("dry run: would mark read", zap.String("message_id", id))
	return nil
}
