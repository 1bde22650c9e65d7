package datamodels

import (
	"encoding/json"
	"math"
	"time"
)

type BacktestRequest struct {
	Spec           StrategySpec    `json:"spec"`
	DataVersion    string          `json:"dataVersion,omitempty"`
	Start          time.Time       `json:"start"`
	End            time.Time       `json:"end"`
	Bars           []NormalizedBar `json:"bars,omitempty"`
	FeesBps        float64         `json:"feesBps,omitempty"`
	SlippageBps    float64         `json:"slippageBps,omitempty"`
	InitialCapital float64         `json:"initialCapital,omitempty"`
}

type BacktestMetrics struct {
	NetPnl       float64 `json:"netPnl"`
	WinRate      float64 `json:"winRate"`
	MaxDrawdown  float64 `json:"maxDrawdown"`
	ProfitFactor float64 `json:"profitFactor"`
	Trades       int     `json:"trades"`
}

// MarshalJSON encodes an infinite profit factor (gains with zero losses) as
// the string "inf", since JSON has no representation for +Inf.
func (m BacktestMetrics) MarshalJSON() ([]byte, error) {
	type alias BacktestMetrics
	if math.IsInf(m.ProfitFactor, 1) {
		return json.Marshal(struct {
			alias
			ProfitFactor string `json:"profitFactor"`
		}{alias: alias(m), ProfitFactor: "inf"})
	}
	return json.Marshal(alias(m))
}

// BacktestResult references its equity curve and trade list by artifact path
// rather than inlining them, keeping results small.
type BacktestResult struct {
	Metrics        BacktestMetrics `json:"metrics"`
	EquityCurveRef string          `json:"equityCurveRef"`
	TradesRef      string          `json:"tradesRef"`
	Warnings       []string        `json:"warnings,omitempty"`
	CacheKey       string          `json:"cacheKey,omitempty"`
}

type EquityPoint struct {
	Ts     time.Time `json:"ts"`
	Equity float64   `json:"equity"`
}

type TradeRecord struct {
	EntryIdx int          `json:"entryIdx"`
	ExitIdx  int          `json:"exitIdx"`
	Side     PositionSide `json:"side"`
	Pnl      float64      `json:"pnl"`
}
