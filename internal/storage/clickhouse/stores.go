package clickhouse

import (
	"midgard-metrics/internal/domain"
	"midgard-metrics/internal/storage"
)

// DepthStore implements storage.DepthStore using ClickHouse.
type DepthStore struct {
	*seriesStore[domain.DepthPrice, *domain.DepthPrice]
}

// NewDepthStore creates a new DepthStore.
func NewDepthStore(conn *Conn) *DepthStore {
	return &DepthStore{newSeriesStore[domain.DepthPrice, *domain.DepthPrice](conn, domain.DepthFamily)}
}

// SwapStore implements storage.SwapStore using ClickHouse.
type SwapStore struct {
	*seriesStore[domain.Swap, *domain.Swap]
}

// NewSwapStore creates a new SwapStore.
func NewSwapStore(conn *Conn) *SwapStore {
	return &SwapStore{newSeriesStore[domain.Swap, *domain.Swap](conn, domain.SwapFamily)}
}

// RunePoolStore implements storage.RunePoolStore using ClickHouse.
type RunePoolStore struct {
	*seriesStore[domain.RunePool, *domain.RunePool]
}

// NewRunePoolStore creates a new RunePoolStore.
func NewRunePoolStore(conn *Conn) *RunePoolStore {
	return &RunePoolStore{newSeriesStore[domain.RunePool, *domain.RunePool](conn, domain.RunePoolFamily)}
}

// Compile-time interface checks.
var (
	_ storage.DepthStore    = (*DepthStore)(nil)
	_ storage.SwapStore     = (*SwapStore)(nil)
	_ storage.RunePoolStore = (*RunePoolStore)(nil)
)
