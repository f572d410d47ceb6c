package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/raulk/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midgard-metrics/internal/domain"
	"midgard-metrics/internal/ingestion"
	"midgard-metrics/internal/ingestion/stub"
	"midgard-metrics/internal/midgard"
	"midgard-metrics/internal/storage"
	"midgard-metrics/internal/storage/memory"
)

const testNow = int64(1_700_000_000)

func newMockClock() *clock.Mock {
	clk := clock.NewMock()
	clk.Set(time.Unix(testNow, 0))
	return clk
}

// recordingRunner records every request and fails the families in fail.
type recordingRunner struct {
	mu   sync.Mutex
	reqs []ingestion.Request
	fail map[string]error
}

func (r *recordingRunner) Run(_ context.Context, req ingestion.Request) (*ingestion.RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	if err := r.fail[req.Family]; err != nil {
		return &ingestion.RunResult{Family: req.Family, Pool: req.Pool}, err
	}
	return &ingestion.RunResult{Family: req.Family, Pool: req.Pool, Pages: 1}, nil
}

func (r *recordingRunner) requests() []ingestion.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ingestion.Request(nil), r.reqs...)
}

func TestStreams(t *testing.T) {
	got := Streams([]string{"BTC.BTC", "ETH.ETH"})
	want := []Stream{
		{Family: domain.FamilyDepths, Pool: "BTC.BTC"},
		{Family: domain.FamilySwaps, Pool: "BTC.BTC"},
		{Family: domain.FamilyDepths, Pool: "ETH.ETH"},
		{Family: domain.FamilySwaps, Pool: "ETH.ETH"},
		{Family: domain.FamilyEarnings},
		{Family: domain.FamilyRunePool},
	}
	assert.Equal(t, want, got)
	assert.Len(t, Streams(nil), 2)
}

func TestScheduler_TickRunsEveryStreamFromOnePeriodAgo(t *testing.T) {
	runner := &recordingRunner{}
	s := New(Options{Runner: runner, Pools: []string{"BTC.BTC"}, Clock: newMockClock()})

	require.NoError(t, s.Tick(context.Background()))

	reqs := runner.requests()
	require.Len(t, reqs, 4)
	for _, req := range reqs {
		assert.Equal(t, testNow-3600, req.From)
		assert.Equal(t, domain.IntervalHour, req.Interval)
	}

	st := s.Status()
	assert.Equal(t, 1, st.Ticks)
	assert.Equal(t, 0, st.FailedTicks)
	assert.False(t, st.Running)
	assert.Equal(t, time.Unix(testNow, 0), st.LastSuccess)
}

func TestScheduler_TickAggregatesFailures(t *testing.T) {
	runner := &recordingRunner{fail: map[string]error{
		domain.FamilySwaps:    errors.New("swaps upstream down"),
		domain.FamilyRunePool: errors.New("runepool upstream down"),
	}}
	s := New(Options{Runner: runner, Pools: []string{"BTC.BTC"}, Clock: newMockClock()})

	err := s.Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "swaps/BTC.BTC: swaps upstream down")
	assert.Contains(t, err.Error(), "runepool: runepool upstream down")

	// failing streams do not stop the others
	assert.Len(t, runner.requests(), 4)

	st := s.Status()
	assert.Equal(t, 1, st.FailedTicks)
	assert.True(t, st.LastSuccess.IsZero())
	assert.Len(t, st.LastErrors, 2)
}

func TestScheduler_PartialFailureKeepsOtherStreams(t *testing.T) {
	src := stub.Func(func(ctx context.Context, req midgard.PageRequest) (*midgard.Page, error) {
		start := req.From
		switch req.Family {
		case domain.FamilySwaps:
			return nil, &midgard.StatusError{StatusCode: 503, Body: "unavailable"}
		case domain.FamilyDepths:
			return stub.Page(testNow, map[string]any{
				"startTime": start, "endTime": start + 3600,
				"assetDepth": "1", "assetPrice": "2", "assetPriceUSD": "3",
				"liquidityUnits": "4", "luvi": "5", "membersCount": "6",
				"runeDepth": "7", "synthSupply": "8", "synthUnits": "9", "units": "10",
			}), nil
		case domain.FamilyRunePool:
			return stub.Page(testNow, map[string]any{
				"startTime": start, "endTime": start + 3600, "count": "3", "units": "4",
			}), nil
		default:
			return stub.Page(testNow), nil
		}
	})

	stores := memory.NewStores()
	clk := newMockClock()
	in := ingestion.New(ingestion.Options{Source: src, Stores: *stores, Clock: clk})
	s := New(Options{Runner: in, Pools: []string{"BTC.BTC"}, Clock: clk})

	err := s.Tick(context.Background())
	require.Error(t, err)
	var statusErr *midgard.StatusError
	assert.ErrorAs(t, err, &statusErr)

	ctx := context.Background()
	depths, err := stores.Depths.Find(ctx, storage.Query{})
	require.NoError(t, err)
	require.Len(t, depths, 1)
	assert.Equal(t, testNow-3600, depths[0].StartTime)

	pools, err := stores.RunePool.Find(ctx, storage.Query{})
	require.NoError(t, err)
	assert.Len(t, pools, 1)

	swaps, err := stores.Swaps.Find(ctx, storage.Query{})
	require.NoError(t, err)
	assert.Empty(t, swaps)
}

func TestScheduler_RunAllWithExplicitStreams(t *testing.T) {
	runner := &recordingRunner{}
	s := New(Options{Runner: runner, Pools: []string{"BTC.BTC"}, Clock: newMockClock()})

	batch, err := s.RunAll(context.Background(), 42, Streams([]string{"ETH.ETH"}))
	require.NoError(t, err)
	require.Len(t, batch.Streams, 4)
	assert.Equal(t, "ETH.ETH", batch.Streams[0].Pool)
	assert.Equal(t, int64(42), batch.From)

	// explicit batches are not ticks
	assert.Equal(t, 0, s.Status().Ticks)
}

func TestScheduler_RunTicksOnStartAndEveryPeriod(t *testing.T) {
	runner := &recordingRunner{}
	clk := newMockClock()
	s := New(Options{Runner: runner, Clock: clk, Period: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitForTicks(t, s, 1)
	clk.Add(time.Hour)
	waitForTicks(t, s, 2)

	reqs := runner.requests()
	require.Len(t, reqs, 4)
	assert.Equal(t, testNow, reqs[len(reqs)-1].From)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func waitForTicks(t *testing.T, s *Scheduler, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Status().Ticks < n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d ticks, got %d", n, s.Status().Ticks)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
