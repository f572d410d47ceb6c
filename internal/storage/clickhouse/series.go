package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"midgard-metrics/internal/domain"
	"midgard-metrics/internal/observability"
	"midgard-metrics/internal/storage"
)

type recordPtr[R any] interface {
	*R
	domain.Record
}

// bucketExprs maps a bucket interval to the expression computing a row's
// bucket start from its last instant, and the bucket width.
var bucketExprs = map[domain.BucketInterval]struct {
	start string
	width string
}{
	domain.IntervalDay:     {"toStartOfDay(toDateTime(end_time - 1, 'UTC'))", "INTERVAL 1 DAY"},
	domain.IntervalWeek:    {"toDateTime(toMonday(toDateTime(end_time - 1, 'UTC')), 'UTC')", "INTERVAL 1 WEEK"},
	domain.IntervalMonth:   {"toDateTime(toStartOfMonth(toDateTime(end_time - 1, 'UTC')), 'UTC')", "INTERVAL 1 MONTH"},
	domain.IntervalQuarter: {"toDateTime(toStartOfQuarter(toDateTime(end_time - 1, 'UTC')), 'UTC')", "INTERVAL 3 MONTH"},
	domain.IntervalYear:    {"toDateTime(toStartOfYear(toDateTime(end_time - 1, 'UTC')), 'UTC')", "INTERVAL 1 YEAR"},
}

// seriesStore is a MergeTree table holding one gauge family.
// inserted_at breaks sort ties between duplicate intervals.
type seriesStore[R any, P recordPtr[R]] struct {
	conn   *Conn
	family domain.Family
}

func newSeriesStore[R any, P recordPtr[R]](conn *Conn, family domain.Family) *seriesStore[R, P] {
	return &seriesStore[R, P]{conn: conn, family: family}
}

// Insert appends rec. Generates an id when rec has none.
func (s *seriesStore[R, P]) Insert(ctx context.Context, rec *R) (string, error) {
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

	start := time.Now()
	err := s.insert(ctx, p)
	observability.RecordDBQuery("clickhouse", "insert_"+s.family.Table, time.Since(start).Seconds(), err)
	if err != nil {
		return "", err
	}
	return p.RecordID(), nil
}

func (s *seriesStore[R, P]) insert(ctx context.Context, p P) error {
	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s (%s)",
		s.family.Table, strings.Join(s.family.Columns, ", ")))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	if err := batch.Append(p.Values()...); err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// Find returns matching rows ordered by the sort column, then insertion time.
func (s *seriesStore[R, P]) Find(ctx context.Context, q storage.Query) ([]*R, error) {
	field, err := q.SortField(s.family)
	if err != nil {
		return nil, err
	}

	where, args := s.where(q.Filter)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s %s, inserted_at ASC",
		strings.Join(s.family.Columns, ", "), s.family.Table, where, field, direction(q.Desc))
	query, args = paginate(query, args, q.Skip, q.Limit)

	return s.query(ctx, "find_"+s.family.Table, query, args)
}

// Aggregate keeps the last row of every calendar bucket with LIMIT 1 BY,
// then sorts and paginates the buckets.
func (s *seriesStore[R, P]) Aggregate(ctx context.Context, q storage.Query, interval domain.BucketInterval) ([]*R, error) {
	expr, ok := bucketExprs[interval]
	if !ok {
		return nil, storage.ErrInvalidInterval
	}
	field, err := q.SortField(s.family)
	if err != nil {
		return nil, err
	}

	outer := make([]string, len(s.family.Columns))
	for i, c := range s.family.Columns {
		switch c {
		case "start_time":
			outer[i] = "toInt64(toUnixTimestamp(bucket_start)) AS start_time"
		case "end_time":
			outer[i] = fmt.Sprintf("toInt64(toUnixTimestamp(bucket_start + %s)) AS end_time", expr.width)
		default:
			outer[i] = c
		}
	}

	group := "bucket_start"
	if s.family.Pooled {
		group = "bucket_start, pool"
	}

	where, args := s.where(q.Filter)
	query := fmt.Sprintf(`
		SELECT %s FROM (
			SELECT *, %s AS bucket_start
			FROM %s%s
			ORDER BY %s, end_time DESC, inserted_at DESC
			LIMIT 1 BY %s
		)
		ORDER BY %s %s, %s`,
		strings.Join(outer, ", "), expr.start, s.family.Table, where, group, group, field, direction(q.Desc), group)
	query, args = paginate(query, args, q.Skip, q.Limit)

	return s.query(ctx, "aggregate_"+s.family.Table, query, args)
}

func (s *seriesStore[R, P]) where(f storage.Filter) (string, []any) {
	var conds []string
	var args []any
	if f.Pool != "" && s.family.Pooled {
		conds = append(conds, "pool = ?")
		args = append(args, f.Pool)
	}
	if f.StartTime != nil {
		conds = append(conds, "start_time >= ?")
		args = append(args, *f.StartTime)
	}
	if f.EndTime != nil {
		conds = append(conds, "end_time <= ?")
		args = append(args, *f.EndTime)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *seriesStore[R, P]) query(ctx context.Context, op, query string, args []any) ([]*R, error) {
	start := time.Now()
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		observability.RecordDBQuery("clickhouse", op, time.Since(start).Seconds(), err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result, err := scanRecords[R, P](rows)
	observability.RecordDBQuery("clickhouse", op, time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// chRows is the subset of driver.Rows used for scanning.
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanRecords[R any, P recordPtr[R]](rows chRows) ([]*R, error) {
	result := make([]*R, 0)
	for rows.Next() {
		rec := new(R)
		if err := rows.Scan(P(rec).ScanTargets()...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func direction(desc bool) string {
	if desc {
		return "DESC"
	}
	return "ASC"
}

func paginate(query string, args []any, skip, limit int) (string, []any) {
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	if skip > 0 {
		if limit > 0 {
			query += " OFFSET ?"
		} else {
			query += " OFFSET ? ROWS"
		}
		args = append(args, skip)
	}
	return query, args
}
