package storage

import (
	"fmt"

	"midgard-metrics/internal/domain"
)

// Filter selects records by pool and time range. Zero values match everything.
type Filter struct {
	Pool      string
	StartTime *int64 // start_time >= StartTime
	EndTime   *int64 // end_time <= EndTime
}

// Query is a filtered, sorted and paginated read.
type Query struct {
	Filter
	SortBy string // column name; defaults to end_time
	Desc   bool
	Skip   int
	Limit  int // 0 means unlimited
}

// DefaultSortField is the column used when Query.SortBy is empty.
const DefaultSortField = "end_time"

// SortField returns the validated sort column for family.
func (q Query) SortField(family domain.Family) (string, error) {
	field := q.SortBy
	if field == "" {
		field = DefaultSortField
	}
	if !family.Sortable(field) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSortField, field)
	}
	return field, nil
}

// Matches reports whether rec satisfies the filter.
func (f Filter) Matches(rec domain.Record) bool {
	if f.Pool != "" && rec.PoolName() != f.Pool {
		return false
	}
	span := rec.Interval()
	if f.StartTime != nil && span.StartTime < *f.StartTime {
		return false
	}
	if f.EndTime != nil && span.EndTime > *f.EndTime {
		return false
	}
	return true
}

// ValidateRecord checks the invariants every stored record must satisfy.
func ValidateRecord(rec domain.Record) error {
	if rec == nil || !rec.Interval().Valid() {
		return ErrInvalidInput
	}
	return nil
}
