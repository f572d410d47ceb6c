package domain

// Swap is one hourly swap activity summary for a pool.
// Counts, volumes, USD volumes, fees and average slip are each split by
// direction plus a total. Corresponds to swap_history table.
type Swap struct {
	ID        string `json:"id"`
	Pool      string `json:"pool"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`

	ToAssetCount     int64 `json:"to_asset_count"`
	ToRuneCount      int64 `json:"to_rune_count"`
	ToTradeCount     int64 `json:"to_trade_count"`
	FromTradeCount   int64 `json:"from_trade_count"`
	SynthMintCount   int64 `json:"synth_mint_count"`
	SynthRedeemCount int64 `json:"synth_redeem_count"`
	TotalCount       int64 `json:"total_count"`

	ToAssetVolume     float64 `json:"to_asset_volume"`
	ToRuneVolume      float64 `json:"to_rune_volume"`
	ToTradeVolume     float64 `json:"to_trade_volume"`
	FromTradeVolume   float64 `json:"from_trade_volume"`
	SynthMintVolume   float64 `json:"synth_mint_volume"`
	SynthRedeemVolume float64 `json:"synth_redeem_volume"`
	TotalVolume       float64 `json:"total_volume"`

	ToAssetVolumeUSD     float64 `json:"to_asset_volume_usd"`
	ToRuneVolumeUSD      float64 `json:"to_rune_volume_usd"`
	ToTradeVolumeUSD     float64 `json:"to_trade_volume_usd"`
	FromTradeVolumeUSD   float64 `json:"from_trade_volume_usd"`
	SynthMintVolumeUSD   float64 `json:"synth_mint_volume_usd"`
	SynthRedeemVolumeUSD float64 `json:"synth_redeem_volume_usd"`
	TotalVolumeUSD       float64 `json:"total_volume_usd"`

	ToAssetFees     float64 `json:"to_asset_fees"`
	ToRuneFees      float64 `json:"to_rune_fees"`
	ToTradeFees     float64 `json:"to_trade_fees"`
	FromTradeFees   float64 `json:"from_trade_fees"`
	SynthMintFees   float64 `json:"synth_mint_fees"`
	SynthRedeemFees float64 `json:"synth_redeem_fees"`
	TotalFees       float64 `json:"total_fees"`

	ToAssetAverageSlip     float64 `json:"to_asset_average_slip"`
	ToRuneAverageSlip      float64 `json:"to_rune_average_slip"`
	ToTradeAverageSlip     float64 `json:"to_trade_average_slip"`
	FromTradeAverageSlip   float64 `json:"from_trade_average_slip"`
	SynthMintAverageSlip   float64 `json:"synth_mint_average_slip"`
	SynthRedeemAverageSlip float64 `json:"synth_redeem_average_slip"`
	AverageSlip            float64 `json:"average_slip"`

	RunePriceUSD float64 `json:"rune_price_usd"`
}

// SwapFamily describes swap_history.
var SwapFamily = Family{
	Name:  FamilySwaps,
	Table: "swap_history",
	Columns: []string{
		"id", "pool", "start_time", "end_time",
		"to_asset_count", "to_rune_count", "to_trade_count", "from_trade_count",
		"synth_mint_count", "synth_redeem_count", "total_count",
		"to_asset_volume", "to_rune_volume", "to_trade_volume", "from_trade_volume",
		"synth_mint_volume", "synth_redeem_volume", "total_volume",
		"to_asset_volume_usd", "to_rune_volume_usd", "to_trade_volume_usd", "from_trade_volume_usd",
		"synth_mint_volume_usd", "synth_redeem_volume_usd", "total_volume_usd",
		"to_asset_fees", "to_rune_fees", "to_trade_fees", "from_trade_fees",
		"synth_mint_fees", "synth_redeem_fees", "total_fees",
		"to_asset_average_slip", "to_rune_average_slip", "to_trade_average_slip", "from_trade_average_slip",
		"synth_mint_average_slip", "synth_redeem_average_slip", "average_slip",
		"rune_price_usd",
	},
	Pooled: true,
}

func (s *Swap) RecordID() string      { return s.ID }
func (s *Swap) SetRecordID(id string) { s.ID = id }
func (s *Swap) Interval() Span        { return Span{s.StartTime, s.EndTime} }
func (s *Swap) PoolName() string      { return s.Pool }

func (s *Swap) SetInterval(sp Span) {
	s.StartTime, s.EndTime = sp.StartTime, sp.EndTime
}

func (s *Swap) Values() []any {
	return []any{
		s.ID, s.Pool, s.StartTime, s.EndTime,
		s.ToAssetCount, s.ToRuneCount, s.ToTradeCount, s.FromTradeCount,
		s.SynthMintCount, s.SynthRedeemCount, s.TotalCount,
		s.ToAssetVolume, s.ToRuneVolume, s.ToTradeVolume, s.FromTradeVolume,
		s.SynthMintVolume, s.SynthRedeemVolume, s.TotalVolume,
		s.ToAssetVolumeUSD, s.ToRuneVolumeUSD, s.ToTradeVolumeUSD, s.FromTradeVolumeUSD,
		s.SynthMintVolumeUSD, s.SynthRedeemVolumeUSD, s.TotalVolumeUSD,
		s.ToAssetFees, s.ToRuneFees, s.ToTradeFees, s.FromTradeFees,
		s.SynthMintFees, s.SynthRedeemFees, s.TotalFees,
		s.ToAssetAverageSlip, s.ToRuneAverageSlip, s.ToTradeAverageSlip, s.FromTradeAverageSlip,
		s.SynthMintAverageSlip, s.SynthRedeemAverageSlip, s.AverageSlip,
		s.RunePriceUSD,
	}
}

func (s *Swap) ScanTargets() []any {
	return []any{
		&s.ID, &s.Pool, &s.StartTime, &s.EndTime,
		&s.ToAssetCount, &s.ToRuneCount, &s.ToTradeCount, &s.FromTradeCount,
		&s.SynthMintCount, &s.SynthRedeemCount, &s.TotalCount,
		&s.ToAssetVolume, &s.ToRuneVolume, &s.ToTradeVolume, &s.FromTradeVolume,
		&s.SynthMintVolume, &s.SynthRedeemVolume, &s.TotalVolume,
		&s.ToAssetVolumeUSD, &s.ToRuneVolumeUSD, &s.ToTradeVolumeUSD, &s.FromTradeVolumeUSD,
		&s.SynthMintVolumeUSD, &s.SynthRedeemVolumeUSD, &s.TotalVolumeUSD,
		&s.ToAssetFees, &s.ToRuneFees, &s.ToTradeFees, &s.FromTradeFees,
		&s.SynthMintFees, &s.SynthRedeemFees, &s.TotalFees,
		&s.ToAssetAverageSlip, &s.ToRuneAverageSlip, &s.ToTradeAverageSlip, &s.FromTradeAverageSlip,
		&s.SynthMintAverageSlip, &s.SynthRedeemAverageSlip, &s.AverageSlip,
		&s.RunePriceUSD,
	}
}
