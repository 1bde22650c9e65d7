package features

import (
	"stratbot/src/datamodels"
)

// SessionTagComputer flags which trading sessions a bar's UTC hour falls in.
// The buckets deliberately overlap (London opens before Asia closes, NY opens
// before London closes).
type SessionTagComputer struct{}

func NewSessionTagComputer() *SessionTagComputer {
	return &SessionTagComputer{}
}

func (c *SessionTagComputer) Id() string {
	return "session"
}

func (c *SessionTagComputer) Compute(bars []datamodels.NormalizedBar) []datamodels.FeatureFrame {
	frames := make([]datamodels.FeatureFrame, 0, len(bars))
	for _, b := range bars {
		hour := b.Ts.UTC().Hour()
		frames = append(frames, datamodels.FeatureFrame{
			Ts:     b.Ts,
			Symbol: b.Symbol,
			Venue:  b.Venue,
			Values: map[string]float64{
				"session_asia":   boolFlag(hour >= 0 && hour < 8),
				"session_london": boolFlag(hour >= 7 && hour < 15),
				"session_ny":     boolFlag(hour >= 12 && hour < 21),
			},
		})
	}
	return frames
}

func boolFlag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
