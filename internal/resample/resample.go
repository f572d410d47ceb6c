// Package resample downsamples interval records into calendar buckets by
// keeping the last observation of each bucket.
package resample

import (
	"sort"

	"midgard-metrics/internal/domain"
)

// Downsample groups records by pool and by the bucket containing their end
// time and keeps, per group, the record with the greatest end time. Ties go
// to the record appearing later in the input, which callers pass in
// insertion order. The kept record is cloned and its interval replaced by
// the bucket bounds. Output is ordered by bucket start, then pool.
//
// Records are gauges; the last value is kept, never summed.
func Downsample[R domain.Record](records []R, unit domain.BucketInterval, clone func(R) R) []R {
	if len(records) == 0 {
		return nil
	}

	last := make(map[groupKey]int)
	for i, rec := range records {
		key := groupKey{start: unit.Bucket(rec.Interval().EndTime).StartTime, pool: rec.PoolName()}
		j, ok := last[key]
		if !ok || rec.Interval().EndTime >= records[j].Interval().EndTime {
			last[key] = i
		}
	}

	keys := make([]groupKey, 0, len(last))
	for key := range last {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].start != keys[j].start {
			return keys[i].start < keys[j].start
		}
		return keys[i].pool < keys[j].pool
	})

	out := make([]R, 0, len(keys))
	for _, key := range keys {
		rep := clone(records[last[key]])
		rep.SetInterval(unit.Bucket(rep.Interval().EndTime))
		out = append(out, rep)
	}
	return out
}

// groupKey identifies one output row. Network-wide families have an empty
// pool, so they group by bucket alone.
type groupKey struct {
	start int64
	pool  string
}
