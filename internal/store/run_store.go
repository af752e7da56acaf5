package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/mailtriage/internal/autoresponse"
	"github.com/nhle/mailtriage/internal/model"
)

const defaultRunLimit = 20

// SaveRun inserts a run and its outcomes in one transaction. A run
// without an id is assigned one.
func (s *SQLiteStore) SaveRun(ctx context.Context, run autoresponse.RunSummary) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}

	perCategory, err := json.Marshal(run.PerCategory)
	if err != nil {
		return fmt.Errorf("encoding per-category counts: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, account, started_at, finished_at,
			messages_seen, auto_responded, failed, fallbacks, per_category
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Account, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.MessagesSeen, run.AutoResponded, run.Failed, run.Fallbacks, string(perCategory),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.RunID, err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO run_outcomes (
			run_id, seq, message_id, category, subject, outcome, error, used_fallback
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing outcome statement: %w", err)
	}
	defer stmt.Close()

	for i, mo := range run.Outcomes {
		_, err := stmt.ExecContext(ctx,
			run.RunID, i, mo.MessageID, string(mo.Category), mo.Subject,
			string(mo.Outcome), mo.Error, boolToInt(mo.UsedFallback),
		)
		if err != nil {
			return fmt.Errorf("inserting outcome %d of run %s: %w", i, run.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run %s: %w", run.RunID, err)
	}
	return nil
}

// ListRuns returns run headers matching filter, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]autoresponse.RunSummary, error) {
	var (
		where []string
		args  []any
	)
	if filter.Account != nil {
		where = append(where, "account = ?")
		args = append(args, *filter.Account)
	}

	query := "SELECT * FROM runs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id"

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultRunLimit
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []autoresponse.RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun retrieves a single run with its outcomes.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*autoresponse.RunSummary, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM runs WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("getting run %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("getting run %s: %w", id, err)
		}
		return nil, fmt.Errorf("getting run %s: %w", id, ErrRunNotFound)
	}
	run, err := scanRun(rows)
	if err != nil {
		return nil, err
	}
	rows.Close()

	var outcomes []outcomeRow
	err = s.db.SelectContext(ctx, &outcomes,
		"SELECT * FROM run_outcomes WHERE run_id = ? ORDER BY seq", id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting outcomes of run %s: %w", id, err)
	}
	for _, o := range outcomes {
		run.Outcomes = append(run.Outcomes, o.toOutcome())
	}
	return &run, nil
}

// outcomeRow mirrors the run_outcomes table.
type outcomeRow struct {
	RunID        string `db:"run_id"`
	Seq          int    `db:"seq"`
	MessageID    string `db:"message_id"`
	Category     string `db:"category"`
	Subject      string `db:"subject"`
	Outcome      string `db:"outcome"`
	Error        string `db:"error"`
	UsedFallback int    `db:"used_fallback"`
}

func (r outcomeRow) toOutcome() autoresponse.MessageOutcome {
	return autoresponse.MessageOutcome{
		MessageID:    r.MessageID,
		Category:     model.Category(r.Category),
		Subject:      r.Subject,
		Outcome:      autoresponse.Outcome(r.Outcome),
		Error:        r.Error,
		UsedFallback: r.UsedFallback != 0,
	}
}

// scanRun scans a run row from a sqlx.Rows result set.
func scanRun(rows *sqlx.Rows) (autoresponse.RunSummary, error) {
	var (
		run         autoresponse.RunSummary
		startedAt   time.Time
		finishedAt  time.Time
		perCategory string
	)

	err := rows.Scan(
		&run.RunID, &run.Account, &startedAt, &finishedAt,
		&run.MessagesSeen, &run.AutoResponded, &run.Failed, &run.Fallbacks,
		&perCategory,
	)
	if err != nil {
		return autoresponse.RunSummary{}, fmt.Errorf("scanning run row: %w", err)
	}

	run.StartedAt = startedAt
	run.FinishedAt = finishedAt
	if err := json.Unmarshal([]byte(perCategory), &run.PerCategory); err != nil {
		return autoresponse.RunSummary{}, fmt.Errorf("decoding per-category counts of run %s: %w", run.RunID, err)
	}
	return run, nil
}
