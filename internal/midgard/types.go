// Package midgard is a client for the Midgard history API.
package midgard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrMissingField is returned when a numeric field is absent or empty.
var ErrMissingField = errors.New("missing field")

// Number is a numeric field that Midgard encodes either as a JSON string or
// as a JSON number depending on version. The literal text is kept and parsed
// on demand so that one malformed field only rejects its own interval.
type Number string

// UnmarshalJSON accepts "12.5", 12.5 and null.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*n = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(s)
	default:
		*n = Number(data)
	}
	return nil
}

// Float64 parses the field as a float.
func (n Number) Float64() (float64, error) {
	if n == "" {
		return 0, ErrMissingField
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %q", string(n))
	}
	return f, nil
}

// Int64 parses the field as an integer. Integral floats such as "3.0" or
// "1e3" are accepted.
func (n Number) Int64() (int64, error) {
	if n == "" {
		return 0, ErrMissingField
	}
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f >= 1<<63 || f < math.MinInt64 {
		return 0, fmt.Errorf("not an integer: %q", string(n))
	}
	return int64(f), nil
}

// Page is one history response: the raw intervals and the watermark.
// Intervals stay undecoded so each one can fail independently.
type Page struct {
	EndTime   int64
	Intervals []json.RawMessage
}

type envelope struct {
	Meta struct {
		EndTime Number `json:"endTime"`
	} `json:"meta"`
	Intervals []json.RawMessage `json:"intervals"`
}

// DecodePage parses a history response envelope. A missing or malformed
// meta.endTime is an envelope error.
func DecodePage(body []byte) (*Page, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	end, err := env.Meta.EndTime.Int64()
	if err != nil {
		return nil, fmt.Errorf("decode meta.endTime: %w", err)
	}
	return &Page{EndTime: end, Intervals: env.Intervals}, nil
}

// DepthInterval is one interval of /v2/history/depths/{pool}.
type DepthInterval struct {
	StartTime      Number `json:"startTime"`
	EndTime        Number `json:"endTime"`
	AssetDepth     Number `json:"assetDepth"`
	AssetPrice     Number `json:"assetPrice"`
	AssetPriceUSD  Number `json:"assetPriceUSD"`
	LiquidityUnits Number `json:"liquidityUnits"`
	Luvi           Number `json:"luvi"`
	MembersCount   Number `json:"membersCount"`
	RuneDepth      Number `json:"runeDepth"`
	SynthSupply    Number `json:"synthSupply"`
	SynthUnits     Number `json:"synthUnits"`
	Units          Number `json:"units"`
}

// SwapInterval is one interval of /v2/history/swaps.
type SwapInterval struct {
	StartTime Number `json:"startTime"`
	EndTime   Number `json:"endTime"`

	ToAssetCount     Number `json:"toAssetCount"`
	ToRuneCount      Number `json:"toRuneCount"`
	ToTradeCount     Number `json:"toTradeCount"`
	FromTradeCount   Number `json:"fromTradeCount"`
	SynthMintCount   Number `json:"synthMintCount"`
	SynthRedeemCount Number `json:"synthRedeemCount"`
	TotalCount       Number `json:"totalCount"`

	ToAssetVolume     Number `json:"toAssetVolume"`
	ToRuneVolume      Number `json:"toRuneVolume"`
	ToTradeVolume     Number `json:"toTradeVolume"`
	FromTradeVolume   Number `json:"fromTradeVolume"`
	SynthMintVolume   Number `json:"synthMintVolume"`
	SynthRedeemVolume Number `json:"synthRedeemVolume"`
	TotalVolume       Number `json:"totalVolume"`

	ToAssetVolumeUSD     Number `json:"toAssetVolumeUSD"`
	ToRuneVolumeUSD      Number `json:"toRuneVolumeUSD"`
	ToTradeVolumeUSD     Number `json:"toTradeVolumeUSD"`
	FromTradeVolumeUSD   Number `json:"fromTradeVolumeUSD"`
	SynthMintVolumeUSD   Number `json:"synthMintVolumeUSD"`
	SynthRedeemVolumeUSD Number `json:"synthRedeemVolumeUSD"`
	TotalVolumeUSD       Number `json:"totalVolumeUSD"`

	ToAssetFees     Number `json:"toAssetFees"`
	ToRuneFees      Number `json:"toRuneFees"`
	ToTradeFees     Number `json:"toTradeFees"`
	FromTradeFees   Number `json:"fromTradeFees"`
	SynthMintFees   Number `json:"synthMintFees"`
	SynthRedeemFees Number `json:"synthRedeemFees"`
	TotalFees       Number `json:"totalFees"`

	ToAssetAverageSlip     Number `json:"toAssetAverageSlip"`
	ToRuneAverageSlip      Number `json:"toRuneAverageSlip"`
	ToTradeAverageSlip     Number `json:"toTradeAverageSlip"`
	FromTradeAverageSlip   Number `json:"fromTradeAverageSlip"`
	SynthMintAverageSlip   Number `json:"synthMintAverageSlip"`
	SynthRedeemAverageSlip Number `json:"synthRedeemAverageSlip"`
	AverageSlip            Number `json:"averageSlip"`

	RunePriceUSD Number `json:"runePriceUSD"`
}

// EarningsInterval is one interval of /v2/history/earnings.
type EarningsInterval struct {
	StartTime         Number         `json:"startTime"`
	EndTime           Number         `json:"endTime"`
	AvgNodeCount      Number         `json:"avgNodeCount"`
	BlockRewards      Number         `json:"blockRewards"`
	BondingEarnings   Number         `json:"bondingEarnings"`
	Earnings          Number         `json:"earnings"`
	LiquidityEarnings Number         `json:"liquidityEarnings"`
	LiquidityFees     Number         `json:"liquidityFees"`
	RunePriceUSD      Number         `json:"runePriceUSD"`
	Pools             []PoolEarnings `json:"pools"`
}

// PoolEarnings is one pool entry of an earnings interval.
type PoolEarnings struct {
	Pool                   string `json:"pool"`
	AssetLiquidityFees     Number `json:"assetLiquidityFees"`
	RuneLiquidityFees      Number `json:"runeLiquidityFees"`
	TotalLiquidityFeesRune Number `json:"totalLiquidityFeesRune"`
	SaverEarning           Number `json:"saverEarning"`
	Rewards                Number `json:"rewards"`
	Earnings               Number `json:"earnings"`
}

// RunePoolInterval is one interval of /v2/history/runepool.
type RunePoolInterval struct {
	StartTime Number `json:"startTime"`
	EndTime   Number `json:"endTime"`
	Count     Number `json:"count"`
	Units     Number `json:"units"`
}
