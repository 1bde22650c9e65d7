package features

import (
	"stratbot/src/datamodels"
)

// ImbalanceComputer is a buy/sell pressure proxy from where the close sits in
// the bar's range, scaled to [-100, 100].
type ImbalanceComputer struct{}

func NewImbalanceComputer() *ImbalanceComputer {
	return &ImbalanceComputer{}
}

func (c *ImbalanceComputer) Id() string {
	return "imbalance"
}

func (c *ImbalanceComputer) Compute(bars []datamodels.NormalizedBar) []datamodels.FeatureFrame {
	frames := make([]datamodels.FeatureFrame, 0, len(bars))
	for _, b := range bars {
		barRange := b.High - b.Low
		if barRange == 0 {
			barRange = 1
		}
		rel := (b.Close - b.Low) / barRange
		frames = append(frames, datamodels.FeatureFrame{
			Ts:     b.Ts,
			Symbol: b.Symbol,
			Venue:  b.Venue,
			Values: map[string]float64{"imbalance": (rel - 0.5) * 200},
		})
	}
	return frames
}
