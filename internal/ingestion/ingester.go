// Package ingestion pages hourly history from Midgard into storage.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/raulk/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"midgard-metrics/internal/domain"
	"midgard-metrics/internal/midgard"
	"midgard-metrics/internal/observability"
	"midgard-metrics/internal/storage"
)

var (
	// ErrStalledWatermark is returned when a page's watermark does not move
	// past the checkpoint it was requested from while still behind now.
	ErrStalledWatermark = errors.New("upstream watermark did not advance")
	ErrUnknownFamily    = errors.New("unknown family")
	ErrPoolRequired     = errors.New("pool is required for this family")
	// ErrUnsupportedInterval is returned for any trigger interval but hour,
	// the only granularity that is stored.
	ErrUnsupportedInterval = errors.New("only hourly ingestion is supported")
)

// Families lists the ingestible families in scheduling order.
var Families = []string{
	domain.FamilyDepths,
	domain.FamilySwaps,
	domain.FamilyEarnings,
	domain.FamilyRunePool,
}

var parsers = map[string]parser{
	domain.FamilyDepths:   parseDepth,
	domain.FamilySwaps:    parseSwap,
	domain.FamilyEarnings: parseEarnings,
	domain.FamilyRunePool: parseRunePool,
}

// Pooled reports whether family is ingested per pool.
func Pooled(family string) bool {
	return family == domain.FamilyDepths || family == domain.FamilySwaps
}

// Request describes one ingestion run.
type Request struct {
	Family   string
	Pool     string                // required for depths and swaps, ignored otherwise
	Interval domain.BucketInterval // "" or hour
	From     int64                 // Unix seconds
	Resume   bool                  // start from the stored checkpoint when one exists
}

// RunResult contains statistics from one ingestion run.
type RunResult struct {
	Family     string        `json:"family"`
	Pool       string        `json:"pool,omitempty"`
	Pages      int           `json:"pages"`
	Persisted  int           `json:"persisted"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Checkpoint int64         `json:"checkpoint"`
	Duration   time.Duration `json:"duration"`
}

// Options contains configuration for creating an Ingester.
type Options struct {
	Source   Source
	Stores   storage.Stores
	Clock    clock.Clock // Default: wall clock
	PageSize int         // Default: midgard.MaxPageSize
	Workers  int         // Default: 8 concurrent inserts per page
	Logger   *zap.Logger
}

// Ingester runs checkpointed backfill-then-follow loops for every family.
// Runs of the same stream are serialized; different streams run freely.
type Ingester struct {
	source   Source
	stores   storage.Stores
	clock    clock.Clock
	pageSize int
	workers  int
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[streamKey]*streamLock
}

// streamLock serializes runs of one stream. refs counts runs holding or
// waiting for it; the entry is dropped when the last one leaves.
type streamLock struct {
	sem  *semaphore.Weighted
	refs int
}

type streamKey struct {
	family string
	pool   string
}

// New creates a new Ingester.
func New(opts Options) *Ingester {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > midgard.MaxPageSize {
		pageSize = midgard.MaxPageSize
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 8
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Ingester{
		source:   opts.Source,
		stores:   opts.Stores,
		clock:    clk,
		pageSize: pageSize,
		workers:  workers,
		logger:   logger.Named("ingestion"),
		locks:    make(map[streamKey]*streamLock),
	}
}

// Run pages through the upstream history of one stream from req.From (or
// its checkpoint) until the watermark reaches the current time.
//
// Per-record parse and store failures are counted and logged; any request
// failure aborts the run and is returned together with the partial result.
func (in *Ingester) Run(ctx context.Context, req Request) (*RunResult, error) {
	parse, ok := parsers[req.Family]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, req.Family)
	}
	if req.Interval != "" && req.Interval != domain.IntervalHour {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedInterval, req.Interval)
	}
	if Pooled(req.Family) {
		if req.Pool == "" {
			return nil, fmt.Errorf("%w: %s", ErrPoolRequired, req.Family)
		}
	} else {
		req.Pool = ""
	}

	key := streamKey{req.Family, req.Pool}
	sem := in.acquireRef(key)
	defer in.releaseRef(key)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for running %s ingestion: %w", req.Family, err)
	}
	defer sem.Release(1)

	start := in.clock.Now()
	result, err := in.run(ctx, req, parse)
	result.Duration = in.clock.Now().Sub(start)

	logger := in.logger.With(zap.String("family", req.Family), zap.String("pool", req.Pool))
	if err != nil {
		observability.RecordIngestionRun(req.Family, "failed", result.Duration.Seconds())
		logger.Error("ingestion run failed",
			zap.Int("pages", result.Pages),
			zap.Int64("checkpoint", result.Checkpoint),
			zap.Error(err))
		return result, err
	}

	observability.RecordIngestionRun(req.Family, "success", result.Duration.Seconds())
	logger.Info("ingestion run complete",
		zap.Int("pages", result.Pages),
		zap.Int("persisted", result.Persisted),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Int64("checkpoint", result.Checkpoint),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (in *Ingester) run(ctx context.Context, req Request, parse parser) (*RunResult, error) {
	result := &RunResult{Family: req.Family, Pool: req.Pool}

	checkpoint := req.From
	if req.Resume {
		pos, err := in.storedCheckpoint(ctx, req.Family, req.Pool)
		if err != nil {
			return result, err
		}
		if pos > 0 {
			checkpoint = pos
		}
	}
	result.Checkpoint = checkpoint

	for {
		page, err := in.source.FetchPage(ctx, midgard.PageRequest{
			Family: req.Family,
			Pool:   req.Pool,
			From:   checkpoint,
			Count:  in.pageSize,
		})
		if err != nil {
			return result, fmt.Errorf("fetch %s page from %d: %w", req.Family, checkpoint, err)
		}
		if page == nil {
			return result, fmt.Errorf("fetch %s page from %d: empty response", req.Family, checkpoint)
		}
		result.Pages++
		observability.RecordPage(req.Family)

		out := in.persistPage(ctx, req.Family, req.Pool, parse, page)
		result.Persisted += out.persisted
		result.Skipped += out.skipped
		result.Failed += out.failed

		in.logger.Debug("page persisted",
			zap.String("family", req.Family),
			zap.String("pool", req.Pool),
			zap.Int64("from", checkpoint),
			zap.Int64("watermark", page.EndTime),
			zap.Int("intervals", len(page.Intervals)),
			zap.Int("persisted", out.persisted))

		now := in.clock.Now().Unix()
		if page.EndTime < now && page.EndTime <= checkpoint {
			return result, fmt.Errorf("%w: %s from %d returned watermark %d",
				ErrStalledWatermark, req.Family, checkpoint, page.EndTime)
		}

		checkpoint = page.EndTime
		result.Checkpoint = checkpoint
		in.saveCheckpoint(ctx, req.Family, req.Pool, checkpoint)

		if checkpoint >= now {
			return result, nil
		}
	}
}

// persistPage parses every interval of page and stores the results on a
// bounded worker pool. Each unit runs inside one task, so an earnings
// summary is always written before its pool rows.
func (in *Ingester) persistPage(ctx context.Context, family, pool string, parse parser, page *midgard.Page) outcome {
	var total outcome

	units := make([]unit, 0, len(page.Intervals))
	for i, raw := range page.Intervals {
		u, err := parse(raw, pool)
		if err != nil {
			total.skipped++
			observability.RecordFailed(family, "parse")
			in.logger.Warn("skipping unparseable interval",
				zap.String("family", family),
				zap.String("pool", pool),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		if eu, ok := u.(*earningsUnit); ok {
			for _, r := range eu.rejected {
				observability.RecordFailed(family, "parse")
				in.logger.Warn("skipping unparseable pool earnings",
					zap.String("family", family),
					zap.String("pool", r.pool),
					zap.Int("index", i),
					zap.Error(r.err))
			}
		}
		units = append(units, u)
	}

	var mu sync.Mutex
	wp := workerpool.New(in.workers)
	for _, u := range units {
		u := u
		wp.Submit(func() {
			out := u.persist(ctx, in.stores)
			if out.err != nil {
				observability.RecordFailed(family, "store")
				span := u.span()
				in.logger.Warn("failed to store interval",
					zap.String("family", family),
					zap.String("pool", pool),
					zap.Int64("start_time", span.StartTime),
					zap.Int64("end_time", span.EndTime),
					zap.Int("rows_failed", out.failed),
					zap.Error(out.err))
			}

			mu.Lock()
			total.add(out)
			mu.Unlock()
		})
	}
	wp.StopWait()

	observability.RecordPersisted(family, total.persisted)
	observability.RecordSkipped(family, total.skipped)
	return total
}

func (in *Ingester) storedCheckpoint(ctx context.Context, family, pool string) (int64, error) {
	if in.stores.Checkpoints == nil {
		return 0, nil
	}
	cp, err := in.stores.Checkpoints.Get(ctx, family, pool)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load %s checkpoint: %w", family, err)
	}
	return cp.Position, nil
}

// saveCheckpoint records progress. A failed save is logged and does not
// fail the run.
func (in *Ingester) saveCheckpoint(ctx context.Context, family, pool string, position int64) {
	observability.UpdateCheckpoint(family, pool, position)
	if in.stores.Checkpoints == nil {
		return
	}
	err := in.stores.Checkpoints.Save(ctx, &storage.Checkpoint{
		Family:    family,
		Pool:      pool,
		Position:  position,
		UpdatedAt: in.clock.Now().Unix(),
	})
	if err != nil {
		in.logger.Warn("failed to save checkpoint",
			zap.String("family", family),
			zap.String("pool", pool),
			zap.Int64("position", position),
			zap.Error(err))
	}
}

func (in *Ingester) acquireRef(key streamKey) *semaphore.Weighted {
	in.mu.Lock()
	defer in.mu.Unlock()

	l, ok := in.locks[key]
	if !ok {
		l = &streamLock{sem: semaphore.NewWeighted(1)}
		in.locks[key] = l
	}
	l.refs++
	return l.sem
}

func (in *Ingester) releaseRef(key streamKey) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if l := in.locks[key]; l != nil {
		l.refs--
		if l.refs == 0 {
			delete(in.locks, key)
		}
	}
}

// activeStreams reports how many streams are running or queued.
func (in *Ingester) activeStreams() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.locks)
}
