package features

import (
	"github.com/montanaflynn/stats"

	"stratbot/src/datamodels"
)

// RegimeScoreComputer scores each bar's range against the median range of the
// whole series. Scores near 1 mean normal volatility; well above 1 means an
// expansion regime.
type RegimeScoreComputer struct{}

func NewRegimeScoreComputer() *RegimeScoreComputer {
	return &RegimeScoreComputer{}
}

func (c *RegimeScoreComputer) Id() string {
	return "regime"
}

func (c *RegimeScoreComputer) Compute(bars []datamodels.NormalizedBar) []datamodels.FeatureFrame {
	ranges := make([]float64, 0, len(bars))
	for _, b := range bars {
		ranges = append(ranges, b.High-b.Low)
	}
	median := 0.0
	if len(ranges) > 0 {
		if m, err := stats.Median(ranges); err == nil {
			median = m
		}
	}

	frames := make([]datamodels.FeatureFrame, 0, len(bars))
	for _, b := range bars {
		score := 1.0
		if median != 0 {
			score = (b.High - b.Low) / median
		}
		frames = append(frames, datamodels.FeatureFrame{
			Ts:     b.Ts,
			Symbol: b.Symbol,
			Venue:  b.Venue,
			Values: map[string]float64{"volScore": score},
		})
	}
	return frames
}
