package datamodels

import "time"

// Comparator is the closed set of rule comparison kinds. Cross comparators
// need the previous feature frame and evaluate false at index 0.
type Comparator string

const (
	ComparatorGt           Comparator = "gt"
	ComparatorGte          Comparator = "gte"
	ComparatorLt           Comparator = "lt"
	ComparatorLte          Comparator = "lte"
	ComparatorEquals       Comparator = "equals"
	ComparatorInsideRange  Comparator = "insideRange"
	ComparatorOutsideRange Comparator = "outsideRange"
	ComparatorCrossesAbove Comparator = "crossesAbove"
	ComparatorCrossesBelow Comparator = "crossesBelow"
)

// RuleCondition is one declarative entry/exit/filter condition evaluated
// against feature frames at a bar index.
type RuleCondition struct {
	Indicator  string      `json:"indicator"`
	Operands   []string    `json:"operands"`
	Comparator Comparator  `json:"comparator"`
	Threshold  *float64    `json:"threshold,omitempty"`
	Range      *[2]float64 `json:"range,omitempty"`
	Lookback   int         `json:"lookback,omitempty"`
}

type StrategyRuleBlock struct {
	Entries []RuleCondition `json:"entries"`
	Exits   []RuleCondition `json:"exits"`
	Filters []RuleCondition `json:"filters,omitempty"`
}

type PositionSizing string

const (
	SizingFixedDollar   PositionSizing = "fixed-dollar"
	SizingPercentEquity PositionSizing = "percent-equity"
	SizingAtr           PositionSizing = "atr"
)

type RiskSettings struct {
	PositionSizing PositionSizing `json:"positionSizing"`
	SizingValue    float64        `json:"sizingValue"`
	MaxLeverage    float64        `json:"maxLeverage,omitempty"`
	TakeProfit     float64        `json:"takeProfit,omitempty"`
	StopLoss       float64        `json:"stopLoss,omitempty"`
	MaxDailyLoss   float64        `json:"maxDailyLoss,omitempty"`
}

type InstrumentRef struct {
	Symbol     string     `json:"symbol"`
	Venue      Venue      `json:"venue"`
	AssetClass AssetClass `json:"assetClass"`
	Currency   string     `json:"currency,omitempty"`
}

// StrategySpec is the opaque validated strategy definition handed in by the
// excluded CLI/config layer.
type StrategySpec struct {
	Id          string            `json:"id,omitempty"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Instrument  InstrumentRef     `json:"instrument"`
	Timeframe   Timeframe         `json:"timeframe"`
	Rules       StrategyRuleBlock `json:"rules"`
	Risk        RiskSettings      `json:"risk"`
	VersionHash string            `json:"versionHash,omitempty"`
}

func (s *StrategySpec) SpecId() string {
	if s.Id != "" {
		return s.Id
	}
	return s.Name
}

type SignalKind string

const (
	SignalEntry SignalKind = "entry"
	SignalExit  SignalKind = "exit"
)

type LiveSignal struct {
	SpecId      string       `json:"specId"`
	DataVersion string       `json:"dataVersion"`
	Signal      SignalKind   `json:"signal"`
	Side        PositionSide `json:"side"`
	Price       float64      `json:"price"`
	Size        float64      `json:"size"`
	Timestamp   time.Time    `json:"timestamp"`
	HealthFlags []string     `json:"healthFlags,omitempty"`
}
