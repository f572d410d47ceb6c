package storage

import "context"

// Checkpoint is the saved position of one ingestion stream.
type Checkpoint struct {
	Family    string // record family the stream ingests
	Pool      string // pool for pooled families, "" otherwise
	Position  int64  // next "from" timestamp (Unix seconds)
	UpdatedAt int64  // Unix seconds of the last save
}

// CheckpointStore persists ingestion stream positions so a backfill can
// resume after a restart. It is the only mutable state in storage.
type CheckpointStore interface {
	// Get returns the checkpoint of a stream.
	// Returns ErrNotFound if no checkpoint has been saved yet.
	Get(ctx context.Context, family, pool string) (*Checkpoint, error)

	// Save stores the checkpoint, replacing any previous one for the stream.
	Save(ctx context.Context, cp *Checkpoint) error

	// List returns all saved checkpoints ordered by family and pool.
	List(ctx context.Context) ([]*Checkpoint, error)
}
