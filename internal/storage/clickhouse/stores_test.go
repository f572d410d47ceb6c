package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midgard-metrics/internal/domain"
	"midgard-metrics/internal/storage"
)

const hour = int64(3600)

func at(s string) int64 {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.Unix()
}

func TestDepthStore_InsertAndFind(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDepthStore(conn)

	rec := &domain.DepthPrice{
		Pool:          "BTC.BTC",
		StartTime:     1000,
		EndTime:       4600,
		AssetDepth:    123.5,
		AssetPrice:    30000.25,
		AssetPriceUSD: 65000,
		MembersCount:  9000,
		RuneDepth:     4.5e12,
	}
	id, err := store.Insert(ctx, rec)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := store.Find(ctx, storage.Query{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, *rec, *got[0])
}

func TestDepthStore_FindFilterSortPaginate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDepthStore(conn)

	for i := int64(0); i < 12; i++ {
		for _, p := range []string{"BTC.BTC", "ETH.ETH"} {
			_, err := store.Insert(ctx, &domain.DepthPrice{
				Pool: p, StartTime: i * hour, EndTime: (i + 1) * hour, AssetPrice: float64(i),
			})
			require.NoError(t, err)
		}
	}

	got, err := store.Find(ctx, storage.Query{
		Filter: storage.Filter{Pool: "ETH.ETH", StartTime: i64(2 * hour), EndTime: i64(8 * hour)},
		SortBy: "asset_price",
		Desc:   true,
		Skip:   1,
		Limit:  3,
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []float64{6, 5, 4}, []float64{got[0].AssetPrice, got[1].AssetPrice, got[2].AssetPrice})
	for _, rec := range got {
		assert.Equal(t, "ETH.ETH", rec.Pool)
	}

	// skip without limit
	tail, err := store.Find(ctx, storage.Query{Filter: storage.Filter{Pool: "BTC.BTC"}, Skip: 10})
	require.NoError(t, err)
	assert.Len(t, tail, 2)

	_, err = store.Find(ctx, storage.Query{SortBy: "inserted_at"})
	assert.ErrorIs(t, err, storage.ErrInvalidSortField)
}

func TestDepthStore_AggregatePerPool(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDepthStore(conn)

	day := at("2024-03-01T00:00:00Z")
	for i, pool := range []string{"ETH.ETH", "BTC.BTC", "ETH.ETH"} {
		start := day + int64(i)*hour
		_, err := store.Insert(ctx, &domain.DepthPrice{
			Pool: pool, StartTime: start, EndTime: start + hour, AssetPrice: float64(i + 1),
		})
		require.NoError(t, err)
	}

	got, err := store.Aggregate(ctx, storage.Query{SortBy: "start_time"}, domain.IntervalDay)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "BTC.BTC", got[0].Pool)
	assert.Equal(t, 2.0, got[0].AssetPrice)
	assert.Equal(t, "ETH.ETH", got[1].Pool)
	assert.Equal(t, 3.0, got[1].AssetPrice)
	assert.Equal(t, day, got[1].StartTime)
}

func TestDepthStore_AggregateMonth(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDepthStore(conn)

	jan := at("2024-01-31T23:00:00Z")
	feb := at("2024-02-01T00:00:00Z")
	for i, start := range []int64{jan - hour, jan, feb} {
		_, err := store.Insert(ctx, &domain.DepthPrice{
			Pool: "BTC.BTC", StartTime: start, EndTime: start + hour, AssetPrice: float64(i + 1),
		})
		require.NoError(t, err)
	}

	got, err := store.Aggregate(ctx, storage.Query{}, domain.IntervalMonth)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, at("2024-01-01T00:00:00Z"), got[0].StartTime)
	assert.Equal(t, feb, got[0].EndTime)
	assert.Equal(t, 2.0, got[0].AssetPrice)

	assert.Equal(t, feb, got[1].StartTime)
	assert.Equal(t, at("2024-03-01T00:00:00Z"), got[1].EndTime)
	assert.Equal(t, 3.0, got[1].AssetPrice)
}

func TestDepthStore_AggregateWeekStartsMonday(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDepthStore(conn)

	// 2024-01-07 is a Sunday, 2024-01-08 a Monday
	for i, start := range []int64{at("2024-01-07T10:00:00Z"), at("2024-01-08T10:00:00Z")} {
		_, err := store.Insert(ctx, &domain.DepthPrice{
			Pool: "BTC.BTC", StartTime: start, EndTime: start + hour, AssetPrice: float64(i),
		})
		require.NoError(t, err)
	}

	got, err := store.Aggregate(ctx, storage.Query{Desc: true}, domain.IntervalWeek)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, at("2024-01-08T00:00:00Z"), got[0].StartTime)
	assert.Equal(t, at("2024-01-01T00:00:00Z"), got[1].StartTime)
}

func TestSwapStore_DuplicateIntervalLatestWins(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSwapStore(conn)

	for _, n := range []int64{1, 2} {
		_, err := store.Insert(ctx, &domain.Swap{Pool: "BTC.BTC", StartTime: 0, EndTime: hour, TotalCount: n})
		require.NoError(t, err)
	}

	all, err := store.Find(ctx, storage.Query{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].TotalCount)

	got, err := store.Aggregate(ctx, storage.Query{}, domain.IntervalDay)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].TotalCount)
}

func TestRunePoolStore_IgnoresPoolFilter(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunePoolStore(conn)

	_, err := store.Insert(ctx, &domain.RunePool{StartTime: 0, EndTime: hour, Count: 5, Units: 10})
	require.NoError(t, err)

	got, err := store.Find(ctx, storage.Query{Filter: storage.Filter{Pool: "BTC.BTC"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(10), got[0].Units)

	_, err = store.Aggregate(ctx, storage.Query{}, domain.IntervalHour)
	assert.ErrorIs(t, err, storage.ErrInvalidInterval)
}
