package memory

import (
	"context"
	"sort"
	"sync"

	"midgard-metrics/internal/domain"
	"midgard-metrics/internal/resample"
	"midgard-metrics/internal/storage"
)

type recordPtr[R any] interface {
	*R
	domain.Record
}

// seriesStore is an in-memory append-only table for one record family.
// Rows are kept in insertion order, which breaks sort ties.
type seriesStore[R any, P recordPtr[R]] struct {
	mu     sync.RWMutex
	family domain.Family
	rows   []P
}

func newSeriesStore[R any, P recordPtr[R]](family domain.Family) *seriesStore[R, P] {
	return &seriesStore[R, P]{family: family}
}

func clone[R any, P recordPtr[R]](p P) P {
	c := *p
	return P(&c)
}

// Insert appends a copy of rec.
func (s *seriesStore[R, P]) Insert(_ context.Context, rec *R) (string, error) {
	if rec == nil {
		return "", storage.ErrInvalidInput
	}
	p := P(rec)
	if err := storage.ValidateRecord(p); err != nil {
		return "", err
	}
	if p.RecordID() == "" {
		p.SetRecordID(domain.NewRecordID())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows = append(s.rows, clone[R, P](p))
	return p.RecordID(), nil
}

// Find returns matching records sorted by q.SortBy and paginated.
func (s *seriesStore[R, P]) Find(_ context.Context, q storage.Query) ([]*R, error) {
	field, err := q.SortField(s.family)
	if err != nil {
		return nil, err
	}

	matched := s.matching(q.Filter)
	s.sortRows(matched, field, q.Desc)
	return toSlice[R, P](paginate(matched, q.Skip, q.Limit)), nil
}

// Aggregate buckets matching records and sorts and paginates the buckets.
func (s *seriesStore[R, P]) Aggregate(_ context.Context, q storage.Query, interval domain.BucketInterval) ([]*R, error) {
	if !interval.Resampled() {
		return nil, storage.ErrInvalidInterval
	}
	if _, err := domain.ParseInterval(string(interval)); err != nil {
		return nil, storage.ErrInvalidInterval
	}
	field, err := q.SortField(s.family)
	if err != nil {
		return nil, err
	}

	buckets := resample.Downsample(s.matching(q.Filter), interval, clone[R, P])
	s.sortRows(buckets, field, q.Desc)
	return toSlice[R, P](paginate(buckets, q.Skip, q.Limit)), nil
}

// matching returns copies of rows satisfying f, in insertion order.
func (s *seriesStore[R, P]) matching(f storage.Filter) []P {
	if !s.family.Pooled {
		f.Pool = ""
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []P
	for _, row := range s.rows {
		if f.Matches(row) {
			result = append(result, clone[R, P](row))
		}
	}
	return result
}

func (s *seriesStore[R, P]) sortRows(rows []P, field string, desc bool) {
	idx := s.family.ColumnIndex(field)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Values()[idx], rows[j].Values()[idx]
		if desc {
			return compareValues(b, a) < 0
		}
		return compareValues(a, b) < 0
	})
}

// compareValues orders two column values of the same kind.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case int64:
		bv := b.(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	}
	return 0
}

func paginate[T any](rows []T, skip, limit int) []T {
	if skip >= len(rows) {
		return nil
	}
	if skip > 0 {
		rows = rows[skip:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func toSlice[R any, P recordPtr[R]](rows []P) []*R {
	out := make([]*R, len(rows))
	for i, row := range rows {
		out[i] = (*R)(row)
	}
	return out
}
