package query

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"midgard-metrics/internal/domain"
	"midgard-metrics/internal/observability"
	"midgard-metrics/internal/storage"
)

// DefaultSummaryCacheSize is the number of earnings summaries kept for joins.
const DefaultSummaryCacheSize = 4096

// summaryOnlyFields are summary columns never merged into an earnings row.
var summaryOnlyFields = map[string]bool{"id": true, "start_time": true, "end_time": true}

// Document is one earnings result with optional summary fields merged in.
type Document map[string]any

// Options contains configuration for creating an Engine.
type Options struct {
	Stores           storage.Stores
	SummaryCacheSize int // Default: DefaultSummaryCacheSize
	Logger           *zap.Logger
}

// Engine answers history reads in raw or resampled mode.
type Engine struct {
	stores    storage.Stores
	summaries *lru.Cache
	logger    *zap.Logger
}

// New creates a new Engine.
func New(opts Options) (*Engine, error) {
	size := opts.SummaryCacheSize
	if size <= 0 {
		size = DefaultSummaryCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		stores:    opts.Stores,
		summaries: cache,
		logger:    logger.Named("query"),
	}, nil
}

// Depths returns depth and price history.
func (e *Engine) Depths(ctx context.Context, p Params) ([]*domain.DepthPrice, error) {
	return run[domain.DepthPrice](ctx, e.stores.Depths, domain.DepthFamily, p)
}

// Swaps returns swap history.
func (e *Engine) Swaps(ctx context.Context, p Params) ([]*domain.Swap, error) {
	return run[domain.Swap](ctx, e.stores.Swaps, domain.SwapFamily, p)
}

// RunePool returns rune pool membership history. The pool filter is ignored.
func (e *Engine) RunePool(ctx context.Context, p Params) ([]*domain.RunePool, error) {
	return run[domain.RunePool](ctx, e.stores.RunePool, domain.RunePoolFamily, p)
}

// Earnings returns per-pool earnings. With p.IncludeSummary each row is
// joined with its interval's summary; a summary that cannot be found adds
// nothing. The summary reference itself is never part of the output.
func (e *Engine) Earnings(ctx context.Context, p Params) ([]Document, error) {
	rows, err := run[domain.PoolEarnings](ctx, e.stores.PoolEarnings, domain.PoolEarningsFamily, p)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, len(rows))
	for i, row := range rows {
		doc := toDocument(domain.PoolEarningsFamily, row)
		delete(doc, "earnings_summary_id")
		if p.IncludeSummary {
			if summary := e.summary(ctx, row.EarningsSummaryID); summary != nil {
				mergeSummary(doc, summary)
			}
		}
		docs[i] = doc
	}
	return docs, nil
}

// summary returns the referenced summary or nil.
func (e *Engine) summary(ctx context.Context, id string) *domain.EarningsSummary {
	if id == "" {
		return nil
	}
	if cached, ok := e.summaries.Get(id); ok {
		return cached.(*domain.EarningsSummary)
	}

	summary, err := e.stores.EarningsSummary.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.logger.Warn("earnings summary lookup failed", zap.String("id", id), zap.Error(err))
		}
		return nil
	}
	e.summaries.Add(id, summary)
	return summary
}

// mergeSummary copies summary fields into doc. A summary field whose name
// the row already uses is added with a summary_ prefix.
func mergeSummary(doc Document, summary *domain.EarningsSummary) {
	for k, v := range toDocument(domain.EarningsSummaryFamily, summary) {
		if summaryOnlyFields[k] {
			continue
		}
		if _, taken := doc[k]; taken {
			k = "summary_" + k
		}
		doc[k] = v
	}
}

func toDocument(family domain.Family, rec domain.Record) Document {
	values := rec.Values()
	doc := make(Document, len(values))
	for i, col := range family.Columns {
		doc[col] = values[i]
	}
	return doc
}

// run executes one read against store. Hour reads are a direct find;
// coarser intervals go through the store's bucketed aggregate.
func run[R any](ctx context.Context, store storage.SeriesStore[R], family domain.Family, p Params) ([]*R, error) {
	start := time.Now()
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		observability.RecordQuery(family.Name, "invalid", time.Since(start).Seconds(), err)
		return nil, err
	}

	var (
		result []*R
		err    error
	)
	q := p.storageQuery(family)
	if p.Interval.Resampled() {
		result, err = store.Aggregate(ctx, q, p.Interval)
	} else {
		result, err = store.Find(ctx, q)
	}

	observability.RecordQuery(family.Name, string(p.Interval), time.Since(start).Seconds(), err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// IsClientError reports whether err was caused by invalid parameters.
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrInvalidTimeRange,
		ErrInvalidOrder,
		storage.ErrInvalidSortField,
		storage.ErrInvalidInterval,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
