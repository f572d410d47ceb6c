package domain

// RunePool is the network-wide rune pool membership for one interval.
// Corresponds to rune_pool_history table.
type RunePool struct {
	ID        string `json:"id"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	Count     int64  `json:"count"`
	Units     int64  `json:"units"`
}

// RunePoolFamily describes rune_pool_history.
var RunePoolFamily = Family{
	Name:    FamilyRunePool,
	Table:   "rune_pool_history",
	Columns: []string{"id", "start_time", "end_time", "count", "units"},
}

func (r *RunePool) RecordID() string      { return r.ID }
func (r *RunePool) SetRecordID(id string) { r.ID = id }
func (r *RunePool) Interval() Span        { return Span{r.StartTime, r.EndTime} }
func (r *RunePool) PoolName() string      { return "" }

func (r *RunePool) SetInterval(s Span) {
	r.StartTime, r.EndTime = s.StartTime, s.EndTime
}

func (r *RunePool) Values() []any {
	return []any{r.ID, r.StartTime, r.EndTime, r.Count, r.Units}
}

func (r *RunePool) ScanTargets() []any {
	return []any{&r.ID, &r.StartTime, &r.EndTime, &r.Count, &r.Units}
}
