package domain

import "github.com/google/uuid"

// Span is a half-open time range [StartTime, EndTime) in Unix seconds.
type Span struct {
	StartTime int64
	EndTime   int64
}

// Valid reports whether the span is non-empty.
func (s Span) Valid() bool {
	return s.StartTime < s.EndTime
}

// Record is implemented by every persisted metric family.
//
// Columns of a family (see Family.Columns) line up positionally with
// Values and ScanTargets, so storage backends can insert and scan rows
// without per-family code.
type Record interface {
	RecordID() string
	SetRecordID(id string)
	Interval() Span
	SetInterval(s Span)
	// PoolName returns the pool a record is scoped to, or "" for network-wide families.
	PoolName() string
	Values() []any
	ScanTargets() []any
}

// NewRecordID returns a fresh record identifier.
func NewRecordID() string {
	return uuid.NewString()
}

// Family describes one record family and its storage layout.
type Family struct {
	Name    string   // stream name used by ingestion and metrics
	Table   string   // backing table
	Columns []string // column order shared by Values and ScanTargets
	Pooled  bool     // records carry a pool identifier
}

// Family names.
const (
	FamilyDepths          = "depths"
	FamilySwaps           = "swaps"
	FamilyEarnings        = "earnings"
	FamilyEarningsSummary = "earnings_summary"
	FamilyRunePool        = "runepool"
)

// Sortable reports whether column is a valid sort field for the family.
// The identifier column is not sortable.
func (f Family) Sortable(column string) bool {
	if column == "id" {
		return false
	}
	for _, c := range f.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// ColumnIndex returns the position of column in Columns, or -1.
func (f Family) ColumnIndex(column string) int {
	for i, c := range f.Columns {
		if c == column {
			return i
		}
	}
	return -1
}
