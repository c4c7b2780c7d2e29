package database

import (
	"context"
	"fmt"
)

var _ RunRepository = (*RunRepo)(nil)

// RunRepo records collection run outcomes for operational visibility.
type RunRepo struct {
	db *DB
}

func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) RecordRun(ctx context.Context, run CollectionRun) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO collection_runs (
			run_id, source_kind, status, items_found, items_new, items_duplicate, error_message
		) VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, NULLIF($7, ''))
	`, run.RunID, run.SourceKind, run.Status, run.ItemsFound, run.ItemsNew, run.ItemsDuplicate, run.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to record collection run: %w", err)
	}
	return nil
}
