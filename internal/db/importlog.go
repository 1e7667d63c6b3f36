package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ImportRunStore is the subset of *sql.DB the run log needs, so callers can
// pass either a bare connection or a transaction.
type ImportRunStore interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ImportRun describes one completed import invocation. Runs are recorded
// after the engine returns, outside the engine's own transaction, so a
// rolled-back import still leaves a trace.
type ImportRun struct {
	CenterID   int64
	Filename   string
	Committed  bool
	ErrorCount int
	Summary    any
	Duration   time.Duration
}

func RecordImportRun(ctx context.Context, store ImportRunStore, run ImportRun) error {
	summaryJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("marshal import summary: %w", err)
	}

	_, err = store.ExecContext(ctx, `
		INSERT INTO import_runs (
			center_id,
			filename,
			committed,
			error_count,
			summary,
			duration_ms,
			created_at
		) VALUES ($1, $2, $3, $4, $5::jsonb, $6, NOW())
	`, run.CenterID, run.Filename, run.Committed, run.ErrorCount, string(summaryJSON), run.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}

	return nil
}
