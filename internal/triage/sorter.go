package triage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nhle/mailtriage/internal/mailbox"
	"github.com/nhle/mailtriage/internal/metrics"
	"github.com/nhle/mailtriage/internal/model"
)

// Sorter fetches unread messages and groups them by assigned category.
type Sorter struct {
	reader     mailbox.Reader
	classifier *Classifier
	account    string
	logger     *zap.Logger
}

// NewSorter creates a sorter for one mailbox account.
func NewSorter(reader mailbox.Reader, classifier *Classifier, account string, logger *zap.Logger) *Sorter {
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	return &Sorter{
		reader:     reader,
		classifier: classifier,
		account:    account,
		logger:     logger,
	}
}

// SortMessages fetches up to maxResults unread messages and classifies
// each one. A maxResults of zero or less means no limit. Every known
// category is present in the result, possibly with an empty list.
// Messages keep mailbox order within a category. Messages that fail to
// load are logged and skipped; a listing failure returns the empty map
// together with the error.
func (s *Sorter) SortMessages(ctx context.Context, maxResults int) (model.Categorized, error) {
	out := model.NewCategorized()

	refs, err := s.reader.ListUnread(ctx, maxResults)
	if err != nil {
		return out, fmt.Errorf("listing unread messages: %w", err)
	}

	for _, ref := range refs {
		msg, err := s.reader.GetMessage(ctx, ref.ID)
		if err != nil {
			s.logger.Warn("skipping message that failed to load",
				zap.String("account", s.account),
				zap.String("message_id", ref.ID),
				zap.Error(err),
			)
			continue
		}

		cls := s.classifier.Classify(msg.Subject)
		out[cls.Category] = append(out[cls.Category], model.TriagedMessage{
			Message:        *msg,
			Classification: cls,
		})
		metrics.IncrementClassified(s.account, string(cls.Category))

		s.logger.Debug("classified message",
			zap.String("account", s.account),
			zap.String("message_id", msg.ID),
			zap.String("category", string(cls.Category)),
			zap.Float64("confidence", cls.Confidence),
			zap.Bool("demoted", cls.Demoted),
		)
	}

	s.logger.Info("sorted unread messages",
		zap.String("account", s.account),
		zap.Int("fetched", len(refs)),
		zap.Int("sorted", out.Total()),
	)

	return out, nil
}
