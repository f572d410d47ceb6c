package domain

// DepthPrice is one hourly depth and price observation for a pool.
// Corresponds to depth_history table.
type DepthPrice struct {
	ID             string  `json:"id"`
	Pool           string  `json:"pool"`
	StartTime      int64   `json:"start_time"`
	EndTime        int64   `json:"end_time"`
	AssetDepth     float64 `json:"asset_depth"`
	AssetPrice     float64 `json:"asset_price"`
	AssetPriceUSD  float64 `json:"asset_price_usd"`
	LiquidityUnits float64 `json:"liquidity_units"`
	Luvi           float64 `json:"luvi"`
	MembersCount   int64   `json:"members_count"`
	RuneDepth      float64 `json:"rune_depth"`
	SynthSupply    float64 `json:"synth_supply"`
	SynthUnits     float64 `json:"synth_units"`
	Units          float64 `json:"units"`
}

// DepthFamily describes depth_history.
var DepthFamily = Family{
	Name:  FamilyDepths,
	Table: "depth_history",
	Columns: []string{
		"id", "pool", "start_time", "end_time",
		"asset_depth", "asset_price", "asset_price_usd", "liquidity_units", "luvi",
		"members_count", "rune_depth", "synth_supply", "synth_units", "units",
	},
	Pooled: true,
}

func (d *DepthPrice) RecordID() string      { return d.ID }
func (d *DepthPrice) SetRecordID(id string) { d.ID = id }
func (d *DepthPrice) Interval() Span        { return Span{d.StartTime, d.EndTime} }
func (d *DepthPrice) PoolName() string      { return d.Pool }

func (d *DepthPrice) SetInterval(s Span) {
	d.StartTime, d.EndTime = s.StartTime, s.EndTime
}

func (d *DepthPrice) Values() []any {
	return []any{
		d.ID, d.Pool, d.StartTime, d.EndTime,
		d.AssetDepth, d.AssetPrice, d.AssetPriceUSD, d.LiquidityUnits, d.Luvi,
		d.MembersCount, d.RuneDepth, d.SynthSupply, d.SynthUnits, d.Units,
	}
}

func (d *DepthPrice) ScanTargets() []any {
	return []any{
		&d.ID, &d.Pool, &d.StartTime, &d.EndTime,
		&d.AssetDepth, &d.AssetPrice, &d.AssetPriceUSD, &d.LiquidityUnits, &d.Luvi,
		&d.MembersCount, &d.RuneDepth, &d.SynthSupply, &d.SynthUnits, &d.Units,
	}
}
