package database

import (
	"context"
	"encoding/json"
	"fmt"
)

var _ StateRepository = (*StateRepo)(nil)

// StateRepo persists scheduler state in the system_state table. One row keyed
// 'scheduler' survives process restarts.
type StateRepo struct {
	db *DB
}

func NewStateRepo(db *DB) *StateRepo {
	return &StateRepo{db: db}
}

type schedulerState struct {
	PendingDigestID *int64 `json:"pending_digest_id"`
}

func (r *StateRepo) LoadSchedulerState(ctx context.Context) (*int64, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM system_state WHERE key = 'scheduler'`).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduler state: %w", err)
	}

	var state schedulerState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to parse scheduler state: %w", err)
	}

	return state.PendingDigestID, nil
}

func (r *StateRepo) SaveSchedulerState(ctx context.Context, pendingDigestID *int64) error {
	raw, err := json.Marshal(schedulerState{PendingDigestID: pendingDigestID})
	if err != nil {
		return fmt.Errorf("failed to encode scheduler state: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO system_state (key, value, updated_at)
		VALUES ('scheduler', $1, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, raw)
	if err != nil {
		return fmt.Errorf("failed to save scheduler state: %w", err)
	}
	return nil
}
