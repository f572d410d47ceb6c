package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"midgard-metrics/internal/domain"
	"midgard-metrics/internal/observability"
	"midgard-metrics/internal/storage"
)

type recordPtr[R any] interface {
	*R
	domain.Record
}

// bucketUnits maps a bucket interval to its date_trunc unit and width.
var bucketUnits = map[domain.BucketInterval]struct {
	trunc string
	width string
}{
	domain.IntervalDay:     {"day", "1 day"},
	domain.IntervalWeek:    {"week", "1 week"},
	domain.IntervalMonth:   {"month", "1 month"},
	domain.IntervalQuarter: {"quarter", "3 months"},
	domain.IntervalYear:    {"year", "1 year"},
}

// seriesStore is a PostgreSQL table holding one record family.
// The seq column records insertion order and breaks sort ties.
type seriesStore[R any, P recordPtr[R]] struct {
	pool   *Pool
	family domain.Family
}

func newSeriesStore[R any, P recordPtr[R]](pool *Pool, family domain.Family) *seriesStore[R, P] {
	return &seriesStore[R, P]{pool: pool, family: family}
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

	placeholders := make([]string, len(s.family.Columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.family.Table, strings.Join(s.family.Columns, ", "), strings.Join(placeholders, ", "))

	start := time.Now()
	_, err := s.pool.Exec(ctx, query, p.Values()...)
	observability.RecordDBQuery("postgres", "insert_"+s.family.Table, time.Since(start).Seconds(), err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return "", fmt.Errorf("insert %s: duplicate id %s: %w", s.family.Table, p.RecordID(), storage.ErrInvalidInput)
		}
		return "", fmt.Errorf("insert %s: %w", s.family.Table, err)
	}
	return p.RecordID(), nil
}

// Find returns matching rows ordered by the sort column, then insertion order.
func (s *seriesStore[R, P]) Find(ctx context.Context, q storage.Query) ([]*R, error) {
	field, err := q.SortField(s.family)
	if err != nil {
		return nil, err
	}

	where, args := s.where(q.Filter)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s %s, seq ASC",
		strings.Join(s.family.Columns, ", "), s.family.Table, where, field, direction(q.Desc))
	query, args = paginate(query, args, q.Skip, q.Limit)

	return s.query(ctx, "find_"+s.family.Table, query, args)
}

// Aggregate keeps the last row of every calendar bucket using DISTINCT ON,
// then sorts and paginates the buckets. Rows are bucketed by their last
// instant (end_time - 1) truncated in UTC.
func (s *seriesStore[R, P]) Aggregate(ctx context.Context, q storage.Query, interval domain.BucketInterval) ([]*R, error) {
	unit, ok := bucketUnits[interval]
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
			outer[i] = "EXTRACT(EPOCH FROM bucket_start)::BIGINT AS start_time"
		case "end_time":
			outer[i] = fmt.Sprintf("EXTRACT(EPOCH FROM bucket_start + INTERVAL '%s')::BIGINT AS end_time", unit.width)
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
			SELECT DISTINCT ON (%s) *
			FROM (
				SELECT t.*, date_trunc('%s', to_timestamp(t.end_time - 1) AT TIME ZONE 'UTC') AS bucket_start
				FROM %s t%s
			) src
			ORDER BY %s, end_time DESC, seq DESC
		) last_rows
		ORDER BY %s %s, %s`,
		strings.Join(outer, ", "), group, unit.trunc, s.family.Table, where, group, field, direction(q.Desc), group)
	query, args = paginate(query, args, q.Skip, q.Limit)

	return s.query(ctx, "aggregate_"+s.family.Table, query, args)
}

func (s *seriesStore[R, P]) where(f storage.Filter) (string, []any) {
	var conds []string
	var args []any
	if f.Pool != "" && s.family.Pooled {
		args = append(args, f.Pool)
		conds = append(conds, fmt.Sprintf("pool = $%d", len(args)))
	}
	if f.StartTime != nil {
		args = append(args, *f.StartTime)
		conds = append(conds, fmt.Sprintf("start_time >= $%d", len(args)))
	}
	if f.EndTime != nil {
		args = append(args, *f.EndTime)
		conds = append(conds, fmt.Sprintf("end_time <= $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *seriesStore[R, P]) query(ctx context.Context, op, query string, args []any) ([]*R, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		observability.RecordDBQuery("postgres", op, time.Since(start).Seconds(), err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result, err := scanRecords[R, P](rows)
	observability.RecordDBQuery("postgres", op, time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func scanRecords[R any, P recordPtr[R]](rows pgx.Rows) ([]*R, error) {
	result := make([]*R, 0)
	for rows.Next() {
		rec := new(R)
		if err := rows.Scan(P(rec).ScanTargets()...); err != nil {
			return nil, err
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
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if skip > 0 {
		args = append(args, skip)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}
