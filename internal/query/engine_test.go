package query

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midgard-metrics/internal/domain"
	"midgard-metrics/internal/storage"
	"midgard-metrics/internal/storage/memory"
)

const hour = int64(3600)

func i64(v int64) *int64 { return &v }

func at(s string) int64 {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.Unix()
}

func newEngine(t *testing.T, stores *storage.Stores) *Engine {
	t.Helper()
	e, err := New(Options{Stores: *stores, SummaryCacheSize: 16})
	require.NoError(t, err)
	return e
}

func TestParams_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Params
		want Params
	}{
		{
			name: "defaults",
			in:   Params{},
			want: Params{Page: 1, Limit: 10, SortBy: "end_time", Order: "asc", Interval: domain.IntervalHour},
		},
		{
			name: "clamp high",
			in:   Params{Page: 3, Limit: 500, SortBy: "units", Order: "desc", Interval: domain.IntervalDay},
			want: Params{Page: 3, Limit: 100, SortBy: "units", Order: "desc", Interval: domain.IntervalDay},
		},
		{
			name: "clamp low",
			in:   Params{Page: -2, Limit: -5},
			want: Params{Page: 1, Limit: 1, SortBy: "end_time", Order: "asc", Interval: domain.IntervalHour},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, Params{StartTime: i64(1), EndTime: i64(2)}.Validate())
	assert.ErrorIs(t, Params{StartTime: i64(2), EndTime: i64(2)}.Validate(), ErrInvalidTimeRange)
	assert.ErrorIs(t, Params{Order: "sideways"}.Validate(), ErrInvalidOrder)
	assert.ErrorIs(t, Params{Interval: "fortnight"}.Validate(), storage.ErrInvalidInterval)
}

func TestEngine_RawModePagination(t *testing.T) {
	stores := memory.NewStores()
	ctx := context.Background()
	for i := int64(0); i < 25; i++ {
		for _, pool := range []string{"BTC.BTC", "ETH.ETH"} {
			_, err := stores.Depths.Insert(ctx, &domain.DepthPrice{
				Pool: pool, StartTime: i * hour, EndTime: (i + 1) * hour, AssetPrice: float64(i),
			})
			require.NoError(t, err)
		}
	}
	e := newEngine(t, stores)

	all, err := e.Depths(ctx, Params{Pool: "BTC.BTC", Limit: 100, Order: "desc"})
	require.NoError(t, err)
	require.Len(t, all, 25)
	assert.Equal(t, 24.0, all[0].AssetPrice)

	var paged []*domain.DepthPrice
	for page := 1; page <= 3; page++ {
		got, err := e.Depths(ctx, Params{Pool: "BTC.BTC", Page: page, Order: "desc"})
		require.NoError(t, err)
		paged = append(paged, got...)
	}
	require.Len(t, paged, 25)
	for i := range all {
		assert.Equal(t, all[i].ID, paged[i].ID)
	}

	ranged, err := e.Depths(ctx, Params{Pool: "ETH.ETH", StartTime: i64(5 * hour), EndTime: i64(10 * hour)})
	require.NoError(t, err)
	require.Len(t, ranged, 5)
	for _, rec := range ranged {
		assert.Equal(t, "ETH.ETH", rec.Pool)
		assert.GreaterOrEqual(t, rec.StartTime, 5*hour)
		assert.LessOrEqual(t, rec.EndTime, 10*hour)
	}
}

func TestEngine_ResampledLastObservation(t *testing.T) {
	stores := memory.NewStores()
	ctx := context.Background()

	ends := []string{
		"2024-03-01T10:00:00Z",
		"2024-03-01T10:30:00Z",
		"2024-03-01T10:59:00Z",
		"2024-03-02T11:05:00Z",
	}
	for i, end := range ends {
		e := at(end)
		_, err := stores.Swaps.Insert(ctx, &domain.Swap{
			Pool: "BTC.BTC", StartTime: e - 600, EndTime: e, TotalCount: int64(i + 1),
		})
		require.NoError(t, err)
	}
	e := newEngine(t, stores)

	got, err := e.Swaps(ctx, Params{Pool: "BTC.BTC", Interval: domain.IntervalDay})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(3), got[0].TotalCount)
	assert.Equal(t, at("2024-03-01T00:00:00Z"), got[0].StartTime)
	assert.Equal(t, at("2024-03-02T00:00:00Z"), got[0].EndTime)

	assert.Equal(t, int64(4), got[1].TotalCount)
	assert.Equal(t, at("2024-03-02T00:00:00Z"), got[1].StartTime)

	// pagination applies to buckets
	second, err := e.Swaps(ctx, Params{Pool: "BTC.BTC", Interval: domain.IntervalDay, Page: 2, Limit: 1})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, int64(4), second[0].TotalCount)
}

func TestEngine_RunePoolIgnoresPool(t *testing.T) {
	stores := memory.NewStores()
	ctx := context.Background()
	_, err := stores.RunePool.Insert(ctx, &domain.RunePool{StartTime: 0, EndTime: hour, Count: 1, Units: 2})
	require.NoError(t, err)

	got, err := newEngine(t, stores).RunePool(ctx, Params{Pool: "BTC.BTC"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestEngine_InvalidSortField(t *testing.T) {
	_, err := newEngine(t, memory.NewStores()).Depths(context.Background(), Params{SortBy: "drop table"})
	assert.ErrorIs(t, err, storage.ErrInvalidSortField)
	assert.True(t, IsClientError(err))
}

// countingSummaryStore counts GetByID calls.
type countingSummaryStore struct {
	*memory.EarningsSummaryStore
	lookups atomic.Int32
}

func (s *countingSummaryStore) GetByID(ctx context.Context, id string) (*domain.EarningsSummary, error) {
	s.lookups.Add(1)
	return s.EarningsSummaryStore.GetByID(ctx, id)
}

func TestEngine_EarningsSummaryJoin(t *testing.T) {
	stores := memory.NewStores()
	summaries := &countingSummaryStore{EarningsSummaryStore: memory.NewEarningsSummaryStore()}
	stores.EarningsSummary = summaries
	ctx := context.Background()

	id, err := summaries.Insert(ctx, &domain.EarningsSummary{
		StartTime: 0, EndTime: hour, BlockRewards: 7, Earnings: 100, RunePriceUSD: 4.2,
	})
	require.NoError(t, err)

	for _, pool := range []string{"BTC.BTC", "ETH.ETH"} {
		_, err := stores.PoolEarnings.Insert(ctx, &domain.PoolEarnings{
			Pool: pool, EarningsSummaryID: id, StartTime: 0, EndTime: hour, Rewards: 1, Earnings: 3,
		})
		require.NoError(t, err)
	}
	_, err = stores.PoolEarnings.Insert(ctx, &domain.PoolEarnings{
		Pool: "DOGE.DOGE", EarningsSummaryID: "missing", StartTime: hour, EndTime: 2 * hour,
	})
	require.NoError(t, err)

	e := newEngine(t, stores)
	docs, err := e.Earnings(ctx, Params{IncludeSummary: true, Limit: 100})
	require.NoError(t, err)
	require.Len(t, docs, 3)

	joined := docs[0]
	assert.NotContains(t, joined, "earnings_summary_id")
	assert.Equal(t, 7.0, joined["block_rewards"])
	assert.Equal(t, 4.2, joined["rune_price_usd"])
	assert.Equal(t, 3.0, joined["earnings"])
	assert.Equal(t, 100.0, joined["summary_earnings"])
	assert.Equal(t, int64(0), joined["start_time"])

	orphan := docs[2]
	assert.Equal(t, "DOGE.DOGE", orphan["pool"])
	assert.NotContains(t, orphan, "block_rewards")
	assert.NotContains(t, orphan, "earnings_summary_id")

	// one lookup for the shared summary, one for the missing one
	assert.Equal(t, int32(2), summaries.lookups.Load())

	plain, err := e.Earnings(ctx, Params{Pool: "BTC.BTC"})
	require.NoError(t, err)
	require.Len(t, plain, 1)
	assert.NotContains(t, plain[0], "block_rewards")
	assert.NotContains(t, plain[0], "earnings_summary_id")
}

func TestEngine_ResampledKeepsEveryPool(t *testing.T) {
	stores := memory.NewStores()
	ctx := context.Background()

	id, err := stores.EarningsSummary.Insert(ctx, &domain.EarningsSummary{StartTime: 0, EndTime: hour, Earnings: 10})
	require.NoError(t, err)
	for i, pool := range []string{"BTC.BTC", "ETH.ETH"} {
		_, err := stores.PoolEarnings.Insert(ctx, &domain.PoolEarnings{
			Pool: pool, EarningsSummaryID: id, StartTime: 0, EndTime: hour, Earnings: float64(i + 1),
		})
		require.NoError(t, err)
		_, err = stores.Depths.Insert(ctx, &domain.DepthPrice{
			Pool: pool, StartTime: 0, EndTime: hour, AssetPrice: float64(i + 1),
		})
		require.NoError(t, err)
	}
	e := newEngine(t, stores)

	earnings, err := e.Earnings(ctx, Params{Interval: domain.IntervalDay})
	require.NoError(t, err)
	require.Len(t, earnings, 2)
	assert.Equal(t, "BTC.BTC", earnings[0]["pool"])
	assert.Equal(t, "ETH.ETH", earnings[1]["pool"])

	depths, err := e.Depths(ctx, Params{Interval: domain.IntervalDay})
	require.NoError(t, err)
	require.Len(t, depths, 2)
	assert.Equal(t, 1.0, depths[0].AssetPrice)
	assert.Equal(t, 2.0, depths[1].AssetPrice)
	assert.Equal(t, int64(0), depths[1].StartTime)
	assert.Equal(t, 24*hour, depths[1].EndTime)

	filtered, err := e.Depths(ctx, Params{Pool: "ETH.ETH", Interval: domain.IntervalDay})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "ETH.ETH", filtered[0].Pool)
}
