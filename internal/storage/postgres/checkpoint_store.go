package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"midgard-metrics/internal/storage"
)

// CheckpointStore is a PostgreSQL implementation of storage.CheckpointStore.
// One row per stream in ingestion_checkpoints, keyed by (family, pool).
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new PostgreSQL checkpoint store.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

// Get returns the checkpoint of a stream.
func (s *CheckpointStore) Get(ctx context.Context, family, pool string) (*storage.Checkpoint, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT family, pool, position, updated_at
		FROM ingestion_checkpoints
		WHERE family = $1 AND pool = $2
	`, family, pool)

	var cp storage.Checkpoint
	err := row.Scan(&cp.Family, &cp.Pool, &cp.Position, &cp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}

	return &cp, nil
}

// Save stores the checkpoint.
// Uses upsert to handle initial insert and subsequent updates.
func (s *CheckpointStore) Save(ctx context.Context, cp *storage.Checkpoint) error {
	if cp == nil || cp.Family == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingestion_checkpoints (family, pool, position, updated_at)
		VALUES ($1, $2, $3, COALESCE(NULLIF($4::BIGINT, 0), EXTRACT(EPOCH FROM NOW())::BIGINT))
		ON CONFLICT (family, pool) DO UPDATE
		SET position = EXCLUDED.position,
		    updated_at = EXCLUDED.updated_at
	`, cp.Family, cp.Pool, cp.Position, cp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	return nil
}

// List returns all checkpoints ordered by family and pool.
func (s *CheckpointStore) List(ctx context.Context) ([]*storage.Checkpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT family, pool, position, updated_at
		FROM ingestion_checkpoints
		ORDER BY family, pool
	`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var result []*storage.Checkpoint
	for rows.Next() {
		var cp storage.Checkpoint
		if err := rows.Scan(&cp.Family, &cp.Pool, &cp.Position, &cp.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &cp)
	}

	return result, rows.Err()
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)
