package domain

import (
	"fmt"
	"time"
)

// BucketInterval is the granularity a query is resampled to.
type BucketInterval string

// Supported bucket intervals. Hour is the native granularity of stored records.
const (
	IntervalHour    BucketInterval = "hour"
	IntervalDay     BucketInterval = "day"
	IntervalWeek    BucketInterval = "week"
	IntervalMonth   BucketInterval = "month"
	IntervalQuarter BucketInterval = "quarter"
	IntervalYear    BucketInterval = "year"
)

// Intervals lists all supported bucket intervals from finest to coarsest.
var Intervals = []BucketInterval{
	IntervalHour, IntervalDay, IntervalWeek, IntervalMonth, IntervalQuarter, IntervalYear,
}

// ParseInterval converts s into a BucketInterval. Empty input means hour.
func ParseInterval(s string) (BucketInterval, error) {
	if s == "" {
		return IntervalHour, nil
	}
	for _, iv := range Intervals {
		if string(iv) == s {
			return iv, nil
		}
	}
	return "", fmt.Errorf("unknown interval %q", s)
}

// Resampled reports whether queries at this interval require bucketing.
func (b BucketInterval) Resampled() bool {
	return b != IntervalHour
}

// Truncate returns the start of the calendar unit containing t, in UTC.
// Weeks start on Monday, quarters on January, April, July and October.
func (b BucketInterval) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch b {
	case IntervalHour:
		return t.Truncate(time.Hour)
	case IntervalDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case IntervalWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case IntervalMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case IntervalQuarter:
		m := ((int(t.Month())-1)/3)*3 + 1
		return time.Date(t.Year(), time.Month(m), 1, 0, 0, 0, 0, time.UTC)
	case IntervalYear:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// Next returns the start of the unit following the one that begins at start.
func (b BucketInterval) Next(start time.Time) time.Time {
	switch b {
	case IntervalHour:
		return start.Add(time.Hour)
	case IntervalDay:
		return start.AddDate(0, 0, 1)
	case IntervalWeek:
		return start.AddDate(0, 0, 7)
	case IntervalMonth:
		return start.AddDate(0, 1, 0)
	case IntervalQuarter:
		return start.AddDate(0, 3, 0)
	case IntervalYear:
		return start.AddDate(1, 0, 0)
	}
	return start
}

// Bucket returns the bucket containing the last instant of an interval that
// ends at endTime. Using endTime-1 keeps an interval ending exactly on a
// boundary in the bucket it belongs to, so re-bucketing a bucket is a no-op.
func (b BucketInterval) Bucket(endTime int64) Span {
	start := b.Truncate(time.Unix(endTime-1, 0))
	return Span{StartTime: start.Unix(), EndTime: b.Next(start).Unix()}
}
