package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"midgard-metrics/internal/domain"
	"midgard-metrics/internal/storage"
)

// DepthStore is a PostgreSQL implementation of storage.DepthStore.
type DepthStore struct {
	*seriesStore[domain.DepthPrice, *domain.DepthPrice]
}

// NewDepthStore creates a new PostgreSQL depth store.
func NewDepthStore(pool *Pool) *DepthStore {
	return &DepthStore{newSeriesStore[domain.DepthPrice, *domain.DepthPrice](pool, domain.DepthFamily)}
}

// SwapStore is a PostgreSQL implementation of storage.SwapStore.
type SwapStore struct {
	*seriesStore[domain.Swap, *domain.Swap]
}

// NewSwapStore creates a new PostgreSQL swap store.
func NewSwapStore(pool *Pool) *SwapStore {
	return &SwapStore{newSeriesStore[domain.Swap, *domain.Swap](pool, domain.SwapFamily)}
}

// EarningsSummaryStore is a PostgreSQL implementation of storage.EarningsSummaryStore.
type EarningsSummaryStore struct {
	*seriesStore[domain.EarningsSummary, *domain.EarningsSummary]
}

// NewEarningsSummaryStore creates a new PostgreSQL earnings summary store.
func NewEarningsSummaryStore(pool *Pool) *EarningsSummaryStore {
	return &EarningsSummaryStore{newSeriesStore[domain.EarningsSummary, *domain.EarningsSummary](pool, domain.EarningsSummaryFamily)}
}

const selectEarningsSummaryByID = `
	SELECT id, start_time, end_time, avg_node_count, block_rewards, bonding_earnings,
	       earnings, liquidity_earnings, liquidity_fees, rune_price_usd
	FROM earnings_summary
	WHERE id = $1
`

// GetByID retrieves a summary by its ID.
func (s *EarningsSummaryStore) GetByID(ctx context.Context, id string) (*domain.EarningsSummary, error) {
	var summary domain.EarningsSummary
	err := s.pool.QueryRow(ctx, selectEarningsSummaryByID, id).Scan(summary.ScanTargets()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get earnings summary: %w", err)
	}
	return &summary, nil
}

// PoolEarningsStore is a PostgreSQL implementation of storage.PoolEarningsStore.
type PoolEarningsStore struct {
	*seriesStore[domain.PoolEarnings, *domain.PoolEarnings]
}

// NewPoolEarningsStore creates a new PostgreSQL pool earnings store.
func NewPoolEarningsStore(pool *Pool) *PoolEarningsStore {
	return &PoolEarningsStore{newSeriesStore[domain.PoolEarnings, *domain.PoolEarnings](pool, domain.PoolEarningsFamily)}
}

// Insert rejects rows without a summary reference.
func (s *PoolEarningsStore) Insert(ctx context.Context, rec *domain.PoolEarnings) (string, error) {
	if rec == nil || rec.EarningsSummaryID == "" {
		return "", storage.ErrInvalidInput
	}
	return s.seriesStore.Insert(ctx, rec)
}

// RunePoolStore is a PostgreSQL implementation of storage.RunePoolStore.
type RunePoolStore struct {
	*seriesStore[domain.RunePool, *domain.RunePool]
}

// NewRunePoolStore creates a new PostgreSQL rune pool store.
func NewRunePoolStore(pool *Pool) *RunePoolStore {
	return &RunePoolStore{newSeriesStore[domain.RunePool, *domain.RunePool](pool, domain.RunePoolFamily)}
}

// NewStores returns a full set of PostgreSQL stores sharing pool.
func NewStores(pool *Pool) *storage.Stores {
	return &storage.Stores{
		Depths:          NewDepthStore(pool),
		Swaps:           NewSwapStore(pool),
		EarningsSummary: NewEarningsSummaryStore(pool),
		PoolEarnings:    NewPoolEarningsStore(pool),
		RunePool:        NewRunePoolStore(pool),
		Checkpoints:     NewCheckpointStore(pool),
	}
}

var (
	_ storage.DepthStore           = (*DepthStore)(nil)
	_ storage.SwapStore            = (*SwapStore)(nil)
	_ storage.EarningsSummaryStore = (*EarningsSummaryStore)(nil)
	_ storage.PoolEarningsStore    = (*PoolEarningsStore)(nil)
	_ storage.RunePoolStore        = (*RunePoolStore)(nil)
)
