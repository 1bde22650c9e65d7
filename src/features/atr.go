package features

import (
	"math"

	"stratbot/src/datamodels"
)

// AtrComputer emits the average true range per bar. Each bar's ATR is the
// simple mean of the last `period` true ranges; the first bar's true range
// uses its own close as the previous close.
type AtrComputer struct {
	period int
}

func NewAtrComputer(period int) *AtrComputer {
	if period < 1 {
		period = 14
	}
	return &AtrComputer{period: period}
}

func (a *AtrComputer) Id() string {
	return "atr"
}

func (a *AtrComputer) Compute(bars []datamodels.NormalizedBar) []datamodels.FeatureFrame {
	if len(bars) == 0 {
		return nil
	}
	frames := make([]datamodels.FeatureFrame, 0, len(bars))
	prevClose := bars[0].Close
	trs := make([]float64, 0, len(bars))
	for _, b := range bars {
		tr := math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
		trs = append(trs, tr)
		prevClose = b.Close

		start := len(trs) - a.period
		if start < 0 {
			start = 0
		}
		sum := 0.0
		for _, v := range trs[start:] {
			sum += v
		}
		atr := sum / float64(len(trs)-start)

		frames = append(frames, datamodels.FeatureFrame{
			Ts:     b.Ts,
			Symbol: b.Symbol,
			Venue:  b.Venue,
			Values: map[string]float64{"atr": atr},
		})
	}
	return frames
}
