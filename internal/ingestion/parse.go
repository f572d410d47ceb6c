package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"midgard-metrics/internal/domain"
	"midgard-metrics/internal/midgard"
	"midgard-metrics/internal/storage"
)

// unit is one parsed upstream interval and the rows it expands to.
type unit interface {
	span() domain.Span
	persist(ctx context.Context, st storage.Stores) outcome
}

// outcome counts what persisting one or more units did.
type outcome struct {
	persisted int
	skipped   int
	failed    int
	err       error // first store error
}

func (o *outcome) add(other outcome) {
	o.persisted += other.persisted
	o.skipped += other.skipped
	o.failed += other.failed
	if o.err == nil {
		o.err = other.err
	}
}

// parser decodes one raw interval for a family.
type parser func(raw json.RawMessage, pool string) (unit, error)

// fields parses numeric fields, keeping the first failure.
type fields struct {
	err error
}

func (f *fields) float(name string, n midgard.Number) float64 {
	if f.err != nil {
		return 0
	}
	v, err := n.Float64()
	if err != nil {
		f.err = fmt.Errorf("field %s: %w", name, err)
	}
	return v
}

func (f *fields) int(name string, n midgard.Number) int64 {
	if f.err != nil {
		return 0
	}
	v, err := n.Int64()
	if err != nil {
		f.err = fmt.Errorf("field %s: %w", name, err)
	}
	return v
}

func checkSpan(s domain.Span) error {
	if !s.Valid() {
		return fmt.Errorf("empty interval [%d, %d)", s.StartTime, s.EndTime)
	}
	return nil
}

// single is a unit stored as exactly one row.
type single struct {
	rec    domain.Record
	insert func(ctx context.Context, st storage.Stores) error
}

func (u single) span() domain.Span { return u.rec.Interval() }

func (u single) persist(ctx context.Context, st storage.Stores) outcome {
	if err := u.insert(ctx, st); err != nil {
		return outcome{failed: 1, err: err}
	}
	return outcome{persisted: 1}
}

func parseDepth(raw json.RawMessage, pool string) (unit, error) {
	var iv midgard.DepthInterval
	if err := json.Unmarshal(raw, &iv); err != nil {
		return nil, fmt.Errorf("decode depth interval: %w", err)
	}

	var f fields
	rec := &domain.DepthPrice{
		Pool:           pool,
		StartTime:      f.int("startTime", iv.StartTime),
		EndTime:        f.int("endTime", iv.EndTime),
		AssetDepth:     f.float("assetDepth", iv.AssetDepth),
		AssetPrice:     f.float("assetPrice", iv.AssetPrice),
		AssetPriceUSD:  f.float("assetPriceUSD", iv.AssetPriceUSD),
		LiquidityUnits: f.float("liquidityUnits", iv.LiquidityUnits),
		Luvi:           f.float("luvi", iv.Luvi),
		MembersCount:   f.int("membersCount", iv.MembersCount),
		RuneDepth:      f.float("runeDepth", iv.RuneDepth),
		SynthSupply:    f.float("synthSupply", iv.SynthSupply),
		SynthUnits:     f.float("synthUnits", iv.SynthUnits),
		Units:          f.float("units", iv.Units),
	}
	if f.err != nil {
		return nil, f.err
	}
	if err := checkSpan(rec.Interval()); err != nil {
		return nil, err
	}

	return single{rec: rec, insert: func(ctx context.Context, st storage.Stores) error {
		_, err := st.Depths.Insert(ctx, rec)
		return err
	}}, nil
}

func parseSwap(raw json.RawMessage, pool string) (unit, error) {
	var iv midgard.SwapInterval
	if err := json.Unmarshal(raw, &iv); err != nil {
		return nil, fmt.Errorf("decode swap interval: %w", err)
	}

	var f fields
	rec := &domain.Swap{
		Pool:      pool,
		StartTime: f.int("startTime", iv.StartTime),
		EndTime:   f.int("endTime", iv.EndTime),

		ToAssetCount:     f.int("toAssetCount", iv.ToAssetCount),
		ToRuneCount:      f.int("toRuneCount", iv.ToRuneCount),
		ToTradeCount:     f.int("toTradeCount", iv.ToTradeCount),
		FromTradeCount:   f.int("fromTradeCount", iv.FromTradeCount),
		SynthMintCount:   f.int("synthMintCount", iv.SynthMintCount),
		SynthRedeemCount: f.int("synthRedeemCount", iv.SynthRedeemCount),
		TotalCount:       f.int("totalCount", iv.TotalCount),

		ToAssetVolume:     f.float("toAssetVolume", iv.ToAssetVolume),
		ToRuneVolume:      f.float("toRuneVolume", iv.ToRuneVolume),
		ToTradeVolume:     f.float("toTradeVolume", iv.ToTradeVolume),
		FromTradeVolume:   f.float("fromTradeVolume", iv.FromTradeVolume),
		SynthMintVolume:   f.float("synthMintVolume", iv.SynthMintVolume),
		SynthRedeemVolume: f.float("synthRedeemVolume", iv.SynthRedeemVolume),
		TotalVolume:       f.float("totalVolume", iv.TotalVolume),

		ToAssetVolumeUSD:     f.float("toAssetVolumeUSD", iv.ToAssetVolumeUSD),
		ToRuneVolumeUSD:      f.float("toRuneVolumeUSD", iv.ToRuneVolumeUSD),
		ToTradeVolumeUSD:     f.float("toTradeVolumeUSD", iv.ToTradeVolumeUSD),
		FromTradeVolumeUSD:   f.float("fromTradeVolumeUSD", iv.FromTradeVolumeUSD),
		SynthMintVolumeUSD:   f.float("synthMintVolumeUSD", iv.SynthMintVolumeUSD),
		SynthRedeemVolumeUSD: f.float("synthRedeemVolumeUSD", iv.SynthRedeemVolumeUSD),
		TotalVolumeUSD:       f.float("totalVolumeUSD", iv.TotalVolumeUSD),

		ToAssetFees:     f.float("toAssetFees", iv.ToAssetFees),
		ToRuneFees:      f.float("toRuneFees", iv.ToRuneFees),
		ToTradeFees:     f.float("toTradeFees", iv.ToTradeFees),
		FromTradeFees:   f.float("fromTradeFees", iv.FromTradeFees),
		SynthMintFees:   f.float("synthMintFees", iv.SynthMintFees),
		SynthRedeemFees: f.float("synthRedeemFees", iv.SynthRedeemFees),
		TotalFees:       f.float("totalFees", iv.TotalFees),

		ToAssetAverageSlip:     f.float("toAssetAverageSlip", iv.ToAssetAverageSlip),
		ToRuneAverageSlip:      f.float("toRuneAverageSlip", iv.ToRuneAverageSlip),
		ToTradeAverageSlip:     f.float("toTradeAverageSlip", iv.ToTradeAverageSlip),
		FromTradeAverageSlip:   f.float("fromTradeAverageSlip", iv.FromTradeAverageSlip),
		SynthMintAverageSlip:   f.float("synthMintAverageSlip", iv.SynthMintAverageSlip),
		SynthRedeemAverageSlip: f.float("synthRedeemAverageSlip", iv.SynthRedeemAverageSlip),
		AverageSlip:            f.float("averageSlip", iv.AverageSlip),

		RunePriceUSD: f.float("runePriceUSD", iv.RunePriceUSD),
	}
	if f.err != nil {
		return nil, f.err
	}
	if err := checkSpan(rec.Interval()); err != nil {
		return nil, err
	}

	return single{rec: rec, insert: func(ctx context.Context, st storage.Stores) error {
		_, err := st.Swaps.Insert(ctx, rec)
		return err
	}}, nil
}

func parseRunePool(raw json.RawMessage, _ string) (unit, error) {
	var iv midgard.RunePoolInterval
	if err := json.Unmarshal(raw, &iv); err != nil {
		return nil, fmt.Errorf("decode runepool interval: %w", err)
	}

	var f fields
	rec := &domain.RunePool{
		StartTime: f.int("startTime", iv.StartTime),
		EndTime:   f.int("endTime", iv.EndTime),
		Count:     f.int("count", iv.Count),
		Units:     f.int("units", iv.Units),
	}
	if f.err != nil {
		return nil, f.err
	}
	if err := checkSpan(rec.Interval()); err != nil {
		return nil, err
	}

	return single{rec: rec, insert: func(ctx context.Context, st storage.Stores) error {
		_, err := st.RunePool.Insert(ctx, rec)
		return err
	}}, nil
}

// earningsUnit is an interval summary and its per-pool rows. Pool rows are
// written only after the summary insert returned an id.
type earningsUnit struct {
	summary  *domain.EarningsSummary
	pools    []*domain.PoolEarnings
	rejected []rejectedPool
}

// rejectedPool is a pool entry of an earnings interval that failed to parse.
type rejectedPool struct {
	pool string
	err  error
}

func (u *earningsUnit) span() domain.Span { return u.summary.Interval() }

func (u *earningsUnit) persist(ctx context.Context, st storage.Stores) outcome {
	out := outcome{skipped: len(u.rejected)}

	id, err := st.EarningsSummary.Insert(ctx, u.summary)
	if err != nil {
		out.failed = 1 + len(u.pools)
		out.err = fmt.Errorf("insert earnings summary: %w", err)
		return out
	}
	out.persisted++

	for _, p := range u.pools {
		p.EarningsSummaryID = id
		if _, err := st.PoolEarnings.Insert(ctx, p); err != nil {
			out.failed++
			if out.err == nil {
				out.err = fmt.Errorf("insert pool earnings %s: %w", p.Pool, err)
			}
			continue
		}
		out.persisted++
	}
	return out
}

func parseEarnings(raw json.RawMessage, _ string) (unit, error) {
	var iv midgard.EarningsInterval
	if err := json.Unmarshal(raw, &iv); err != nil {
		return nil, fmt.Errorf("decode earnings interval: %w", err)
	}

	var f fields
	summary := &domain.EarningsSummary{
		StartTime:         f.int("startTime", iv.StartTime),
		EndTime:           f.int("endTime", iv.EndTime),
		AvgNodeCount:      f.float("avgNodeCount", iv.AvgNodeCount),
		BlockRewards:      f.float("blockRewards", iv.BlockRewards),
		BondingEarnings:   f.float("bondingEarnings", iv.BondingEarnings),
		Earnings:          f.float("earnings", iv.Earnings),
		LiquidityEarnings: f.float("liquidityEarnings", iv.LiquidityEarnings),
		LiquidityFees:     f.float("liquidityFees", iv.LiquidityFees),
		RunePriceUSD:      f.float("runePriceUSD", iv.RunePriceUSD),
	}
	if f.err != nil {
		return nil, f.err
	}
	if err := checkSpan(summary.Interval()); err != nil {
		return nil, err
	}

	u := &earningsUnit{summary: summary}
	for _, p := range iv.Pools {
		var pf fields
		row := &domain.PoolEarnings{
			Pool:                   p.Pool,
			StartTime:              summary.StartTime,
			EndTime:                summary.EndTime,
			AssetLiquidityFees:     pf.float("assetLiquidityFees", p.AssetLiquidityFees),
			RuneLiquidityFees:      pf.float("runeLiquidityFees", p.RuneLiquidityFees),
			TotalLiquidityFeesRune: pf.float("totalLiquidityFeesRune", p.TotalLiquidityFeesRune),
			SaverEarning:           pf.float("saverEarning", p.SaverEarning),
			Rewards:                pf.float("rewards", p.Rewards),
			Earnings:               pf.float("earnings", p.Earnings),
		}
		if p.Pool == "" && pf.err == nil {
			pf.err = errors.New("missing pool name")
		}
		if pf.err != nil {
			u.rejected = append(u.rejected, rejectedPool{pool: p.Pool, err: pf.err})
			continue
		}
		u.pools = append(u.pools, row)
	}
	return u, nil
}
