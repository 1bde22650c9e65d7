package features

import (
	"stratbot/src/datamodels"
)

// Structure labels relative to the previous bar.
const (
	StructureNone       = 0
	StructureHigherHigh = 1
	StructureHigherLow  = 2
	StructureLowerLow   = -1
	StructureLowerHigh  = -2
)

// MarketStructureComputer tracks rolling swing highs/lows over a lookback
// window and classifies each bar against its predecessor.
type MarketStructureComputer struct {
	lookback int
}

func NewMarketStructureComputer(lookback int) *MarketStructureComputer {
	if lookback < 1 {
		lookback = 5
	}
	return &MarketStructureComputer{lookback: lookback}
}

func (m *MarketStructureComputer) Id() string {
	return "structure"
}

func (m *MarketStructureComputer) Compute(bars []datamodels.NormalizedBar) []datamodels.FeatureFrame {
	frames := make([]datamodels.FeatureFrame, 0, len(bars))
	for i, last := range bars {
		start := i - m.lookback
		if start < 0 {
			start = 0
		}
		swingHigh := bars[start].High
		swingLow := bars[start].Low
		for _, b := range bars[start : i+1] {
			if b.High > swingHigh {
				swingHigh = b.High
			}
			if b.Low < swingLow {
				swingLow = b.Low
			}
		}

		label := StructureNone
		if i > 0 {
			prev := bars[i-1]
			switch {
			case last.High > prev.High && last.Low > prev.Low:
				label = StructureHigherHigh
			case last.Low > prev.Low:
				label = StructureHigherLow
			case last.Low < prev.Low && last.High < prev.High:
				label = StructureLowerLow
			case last.High < prev.High:
				label = StructureLowerHigh
			}
		}

		frames = append(frames, datamodels.FeatureFrame{
			Ts:     last.Ts,
			Symbol: last.Symbol,
			Venue:  last.Venue,
			Values: map[string]float64{
				"swingHigh":      swingHigh,
				"swingLow":       swingLow,
				"structureLabel": float64(label),
			},
		})
	}
	return frames
}
