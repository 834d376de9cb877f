package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CursorRepository persists the poller's checkpoint: the id of the
// last inbound mention that was successfully replied to. Keeping it
// in the database means a restart resumes where the process left off
// instead of reprocessing or losing a window of mentions.
type CursorRepository struct {
	pool *pgxpool.Pool
}

// NewCursorRepository creates a new CursorRepository instance.
func NewCursorRepository(pool *pgxpool.Pool) *CursorRepository {
	return &CursorRepository{pool: pool}
}

// Load returns the saved cursor, or empty string when none has been
// saved yet (first run).
func (r *CursorRepository) Load(ctx context.Context) (string, error) {
	const query = `SELECT last_mention_id FROM poll_cursor WHERE id = 1`

	var cursor string
	err := r.pool.QueryRow(ctx, query).Scan(&cursor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load cursor: %w", err)
	}
	return cursor, nil
}

// Save stores the cursor, overwriting any previous value.
func (r *CursorRepository) Save(ctx context.Context, mentionID string) error {
	const query = `
		INSERT INTO poll_cursor (id, last_mention_id, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET last_mention_id = $1, updated_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, query, mentionID); err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}
