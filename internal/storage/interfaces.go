package storage

import (
	"context"

	"midgard-metrics/internal/domain"
)

// SeriesStore provides append-only access to one record family.
type SeriesStore[R any] interface {
	// Insert appends a record and returns its identifier. A record without an
	// identifier gets a fresh one. Returns ErrInvalidInput when the record's
	// interval is empty. Overlapping intervals are stored again, not merged.
	Insert(ctx context.Context, rec *R) (string, error)

	// Find returns records matching q.Filter, sorted and paginated.
	// Ties on the sort field are broken by insertion order.
	Find(ctx context.Context, q Query) ([]*R, error)

	// Aggregate resamples records matching q.Filter into calendar buckets of
	// the given interval, keeping the last record of each bucket with its
	// interval replaced by the bucket bounds. Sorting and pagination apply to
	// buckets. Returns ErrInvalidInterval for hour or unknown intervals.
	Aggregate(ctx context.Context, q Query, interval domain.BucketInterval) ([]*R, error)
}

// DepthStore provides access to depth_history storage.
type DepthStore interface {
	SeriesStore[domain.DepthPrice]
}

// SwapStore provides access to swap_history storage.
type SwapStore interface {
	SeriesStore[domain.Swap]
}

// EarningsSummaryStore provides access to earnings_summary storage.
type EarningsSummaryStore interface {
	SeriesStore[domain.EarningsSummary]

	// GetByID retrieves a summary by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.EarningsSummary, error)
}

// PoolEarningsStore provides access to pool_earnings storage.
type PoolEarningsStore interface {
	SeriesStore[domain.PoolEarnings]
}

// RunePoolStore provides access to rune_pool_history storage.
type RunePoolStore interface {
	SeriesStore[domain.RunePool]
}

// Stores groups every store the service needs.
type Stores struct {
	Depths          DepthStore
	Swaps           SwapStore
	EarningsSummary EarningsSummaryStore
	PoolEarnings    PoolEarningsStore
	RunePool        RunePoolStore
	Checkpoints     CheckpointStore
}
