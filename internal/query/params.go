// Package query serves filtered, sorted, paginated and optionally
// downsampled reads over stored history.
package query

import (
	"errors"
	"fmt"

	"midgard-metrics/internal/domain"
	"midgard-metrics/internal/storage"
)

// Pagination defaults.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Sort orders.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

var (
	ErrInvalidTimeRange = errors.New("start_time must be less than end_time")
	ErrInvalidOrder     = errors.New("order must be asc or desc")
)

// Params describes one read.
type Params struct {
	StartTime      *int64
	EndTime        *int64
	Pool           string
	Page           int
	Limit          int
	SortBy         string
	Order          string
	Interval       domain.BucketInterval
	IncludeSummary bool // earnings only
}

// Normalize fills defaults and clamps page and limit into range.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	switch {
	case p.Limit == 0:
		p.Limit = DefaultLimit
	case p.Limit < 1:
		p.Limit = 1
	case p.Limit > MaxLimit:
		p.Limit = MaxLimit
	}
	if p.SortBy == "" {
		p.SortBy = storage.DefaultSortField
	}
	if p.Order == "" {
		p.Order = OrderAsc
	}
	if p.Interval == "" {
		p.Interval = domain.IntervalHour
	}
	return p
}

// Validate checks the parameters that do not depend on a family.
// Sort fields are checked by the store against the family's columns.
func (p Params) Validate() error {
	if p.StartTime != nil && p.EndTime != nil && *p.StartTime >= *p.EndTime {
		return ErrInvalidTimeRange
	}
	if p.Order != "" && p.Order != OrderAsc && p.Order != OrderDesc {
		return fmt.Errorf("%w: %q", ErrInvalidOrder, p.Order)
	}
	if _, err := domain.ParseInterval(string(p.Interval)); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInterval, err)
	}
	return nil
}

// storageQuery converts normalized params into a store query for family.
// The pool filter is dropped for network-wide families.
func (p Params) storageQuery(family domain.Family) storage.Query {
	q := storage.Query{
		Filter: storage.Filter{StartTime: p.StartTime, EndTime: p.EndTime},
		SortBy: p.SortBy,
		Desc:   p.Order == OrderDesc,
		Skip:   (p.Page - 1) * p.Limit,
		Limit:  p.Limit,
	}
	if family.Pooled {
		q.Pool = p.Pool
	}
	return q
}
