package domain

// EarningsSummary is the network-wide earnings for one interval.
// Corresponds to earnings_summary table.
type EarningsSummary struct {
	ID                string  `json:"id"`
	StartTime         int64   `json:"start_time"`
	EndTime           int64   `json:"end_time"`
	AvgNodeCount      float64 `json:"avg_node_count"`
	BlockRewards      float64 `json:"block_rewards"`
	BondingEarnings   float64 `json:"bonding_earnings"`
	Earnings          float64 `json:"earnings"`
	LiquidityEarnings float64 `json:"liquidity_earnings"`
	LiquidityFees     float64 `json:"liquidity_fees"`
	RunePriceUSD      float64 `json:"rune_price_usd"`
}

// PoolEarnings is one pool's share of an interval's earnings.
// EarningsSummaryID references the EarningsSummary inserted for the same
// interval; it is assigned at creation and never changes. The interval
// bounds are copied from the summary so rows are filterable by time.
// Corresponds to pool_earnings table.
type PoolEarnings struct {
	ID                     string  `json:"id"`
	Pool                   string  `json:"pool"`
	EarningsSummaryID      string  `json:"earnings_summary_id"`
	StartTime              int64   `json:"start_time"`
	EndTime                int64   `json:"end_time"`
	AssetLiquidityFees     float64 `json:"asset_liquidity_fees"`
	RuneLiquidityFees      float64 `json:"rune_liquidity_fees"`
	TotalLiquidityFeesRune float64 `json:"total_liquidity_fees_rune"`
	SaverEarning           float64 `json:"saver_earning"`
	Rewards                float64 `json:"rewards"`
	Earnings               float64 `json:"earnings"`
}

// EarningsSummaryFamily describes earnings_summary.
var EarningsSummaryFamily = Family{
	Name:  FamilyEarningsSummary,
	Table: "earnings_summary",
	Columns: []string{
		"id", "start_time", "end_time",
		"avg_node_count", "block_rewards", "bonding_earnings", "earnings",
		"liquidity_earnings", "liquidity_fees", "rune_price_usd",
	},
}

// PoolEarningsFamily describes pool_earnings.
var PoolEarningsFamily = Family{
	Name:  FamilyEarnings,
	Table: "pool_earnings",
	Columns: []string{
		"id", "pool", "earnings_summary_id", "start_time", "end_time",
		"asset_liquidity_fees", "rune_liquidity_fees", "total_liquidity_fees_rune",
		"saver_earning", "rewards", "earnings",
	},
	Pooled: true,
}

func (e *EarningsSummary) RecordID() string      { return e.ID }
func (e *EarningsSummary) SetRecordID(id string) { e.ID = id }
func (e *EarningsSummary) Interval() Span        { return Span{e.StartTime, e.EndTime} }
func (e *EarningsSummary) PoolName() string      { return "" }

func (e *EarningsSummary) SetInterval(s Span) {
	e.StartTime, e.EndTime = s.StartTime, s.EndTime
}

func (e *EarningsSummary) Values() []any {
	return []any{
		e.ID, e.StartTime, e.EndTime,
		e.AvgNodeCount, e.BlockRewards, e.BondingEarnings, e.Earnings,
		e.LiquidityEarnings, e.LiquidityFees, e.RunePriceUSD,
	}
}

func (e *EarningsSummary) ScanTargets() []any {
	return []any{
		&e.ID, &e.StartTime, &e.EndTime,
		&e.AvgNodeCount, &e.BlockRewards, &e.BondingEarnings, &e.Earnings,
		&e.LiquidityEarnings, &e.LiquidityFees, &e.RunePriceUSD,
	}
}

func (p *PoolEarnings) RecordID() string      { return p.ID }
func (p *PoolEarnings) SetRecordID(id string) { p.ID = id }
func (p *PoolEarnings) Interval() Span        { return Span{p.StartTime, p.EndTime} }
func (p *PoolEarnings) PoolName() string      { return p.Pool }

func (p *PoolEarnings) SetInterval(s Span) {
	p.StartTime, p.EndTime = s.StartTime, s.EndTime
}

func (p *PoolEarnings) Values() []any {
	return []any{
		p.ID, p.Pool, p.EarningsSummaryID, p.StartTime, p.EndTime,
		p.AssetLiquidityFees, p.RuneLiquidityFees, p.TotalLiquidityFeesRune,
		p.SaverEarning, p.Rewards, p.Earnings,
	}
}

func (p *PoolEarnings) ScanTargets() []any {
	return []any{
		&p.ID, &p.Pool, &p.EarningsSummaryID, &p.StartTime, &p.EndTime,
		&p.AssetLiquidityFees, &p.RuneLiquidityFees, &p.TotalLiquidityFeesRune,
		&p.SaverEarning, &p.Rewards, &p.Earnings,
	}
}
