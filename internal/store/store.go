// Package store persists auto-response run history in a local SQLite
// database. The history is an audit log only; orchestration never reads
// it to decide whether a message was already handled.
package store

import (
	"context"
	"errors"

	"github.com/nhle/mailtriage/internal/autoresponse"
)

// ErrRunNotFound is returned by GetRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// RunFilter controls filtering and pagination for run queries.
type RunFilter struct {
	Account *string
	Limit   int
	Offset  int
}

// RunStore records and lists orchestration passes.
type RunStore interface {
	SaveRun(ctx context.Context, run autoresponse.RunSummary) error

	// ListRuns returns run headers, newest first, without outcomes.
	ListRuns(ctx context.Context, filter RunFilter) ([]autoresponse.RunSummary, error)

	// GetRun returns a run with its outcomes in processing order.
	GetRun(ctx context.Context, id string) (*autoresponse.RunSummary, error)
}
