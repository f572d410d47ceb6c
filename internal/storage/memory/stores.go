package memory

import (
	"context"

	"midgard-metrics/internal/domain"
	"midgard-metrics/internal/storage"
)

// DepthStore is an in-memory implementation of storage.DepthStore.
type DepthStore struct {
	*seriesStore[domain.DepthPrice, *domain.DepthPrice]
}

// NewDepthStore creates a new in-memory depth store.
func NewDepthStore() *DepthStore {
	return &DepthStore{newSeriesStore[domain.DepthPrice, *domain.DepthPrice](domain.DepthFamily)}
}

// SwapStore is an in-memory implementation of storage.SwapStore.
type SwapStore struct {
	*seriesStore[domain.Swap, *domain.Swap]
}

// NewSwapStore creates a new in-memory swap store.
func NewSwapStore() *SwapStore {
	return &SwapStore{newSeriesStore[domain.Swap, *domain.Swap](domain.SwapFamily)}
}

// EarningsSummaryStore is an in-memory implementation of storage.EarningsSummaryStore.
type EarningsSummaryStore struct {
	*seriesStore[domain.EarningsSummary, *domain.EarningsSummary]
}

// NewEarningsSummaryStore creates a new in-memory earnings summary store.
func NewEarningsSummaryStore() *EarningsSummaryStore {
	return &EarningsSummaryStore{newSeriesStore[domain.EarningsSummary, *domain.EarningsSummary](domain.EarningsSummaryFamily)}
}

// GetByID retrieves a summary by its ID.
func (s *EarningsSummaryStore) GetByID(_ context.Context, id string) (*domain.EarningsSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, row := range s.rows {
		if row.ID == id {
			c := *row
			return &c, nil
		}
	}
	return nil, storage.ErrNotFound
}

// PoolEarningsStore is an in-memory implementation of storage.PoolEarningsStore.
type PoolEarningsStore struct {
	*seriesStore[domain.PoolEarnings, *domain.PoolEarnings]
}

// NewPoolEarningsStore creates a new in-memory pool earnings store.
func NewPoolEarningsStore() *PoolEarningsStore {
	return &PoolEarningsStore{newSeriesStore[domain.PoolEarnings, *domain.PoolEarnings](domain.PoolEarningsFamily)}
}

// Insert rejects rows without a summary reference.
func (s *PoolEarningsStore) Insert(ctx context.Context, rec *domain.PoolEarnings) (string, error) {
	if rec == nil || rec.EarningsSummaryID == "" {
		return "", storage.ErrInvalidInput
	}
	return s.seriesStore.Insert(ctx, rec)
}

// RunePoolStore is an in-memory implementation of storage.RunePoolStore.
type RunePoolStore struct {
	*seriesStore[domain.RunePool, *domain.RunePool]
}

// NewRunePoolStore creates a new in-memory rune pool store.
func NewRunePoolStore() *RunePoolStore {
	return &RunePoolStore{newSeriesStore[domain.RunePool, *domain.RunePool](domain.RunePoolFamily)}
}

// NewStores returns a full set of in-memory stores.
func NewStores() *storage.Stores {
	return &storage.Stores{
		Depths:          NewDepthStore(),
		Swaps:           NewSwapStore(),
		EarningsSummary: NewEarningsSummaryStore(),
		PoolEarnings:    NewPoolEarningsStore(),
		RunePool:        NewRunePoolStore(),
		Checkpoints:     NewCheckpointStore(),
	}
}

var (
	_ storage.DepthStore           = (*DepthStore)(nil)
	_ storage.SwapStore            = (*SwapStore)(nil)
	_ storage.EarningsSummaryStore = (*EarningsSummaryStore)(nil)
	_ storage.PoolEarningsStore    = (*PoolEarningsStore)(nil)
	_ storage.RunePoolStore        = (*RunePoolStore)(nil)
)
