package features

import (
	"math"

	"stratbot/src/datamodels"
)

// AnchoredVolumeProfile builds a volume profile over the last anchorLookback
// bars. Each bar's volume is spread pro-rata across the price bins its
// [low, high] range overlaps. POC is the center of the highest-volume bin;
// VAL/VAH bound the contiguous bin run around the POC holding valueAreaPct of
// total volume. The same triple is stamped onto every frame since the profile
// is anchored, not rolling.
type AnchoredVolumeProfile struct {
	anchorLookback int
	bins           int
	valueAreaPct   float64
}

func NewAnchoredVolumeProfile(anchorLookback int, bins int, valueAreaPct float64) *AnchoredVolumeProfile {
	if bins < 1 {
		bins = 1
	}
	return &AnchoredVolumeProfile{
		anchorLookback: anchorLookback,
		bins:           bins,
		valueAreaPct:   valueAreaPct,
	}
}

func (vp *AnchoredVolumeProfile) Id() string {
	return "anchored-vp"
}

func (vp *AnchoredVolumeProfile) Compute(bars []datamodels.NormalizedBar) []datamodels.FeatureFrame {
	if len(bars) == 0 {
		return nil
	}
	start := len(bars) - vp.anchorLookback
	if start < 0 {
		start = 0
	}
	slice := bars[start:]

	min := slice[0].Low
	max := slice[0].High
	for _, b := range slice[1:] {
		if b.Low < min {
			min = b.Low
		}
		if b.High > max {
			max = b.High
		}
	}

	// Degenerate profile: every bar printed at a single price.
	if min == max {
		return vp.broadcast(bars, min, max, min, map[string]float64{
			"bins": float64(vp.bins),
			"step": 0,
		})
	}

	step := (max - min) / float64(vp.bins)
	binLo := make([]float64, vp.bins)
	binHi := make([]float64, vp.bins)
	for i := 0; i < vp.bins; i++ {
		binLo[i] = min + float64(i)*step
		if i == vp.bins-1 {
			binHi[i] = max
		} else {
			binHi[i] = binLo[i] + step
		}
	}

	histogram := make([]float64, vp.bins)
	for _, b := range slice {
		if b.High <= b.Low {
			// Zero-height bar: all volume to the bin containing its close.
			idx := int(math.Floor((b.Close - min) / step))
			if idx < 0 {
				idx = 0
			}
			if idx > vp.bins-1 {
				idx = vp.bins - 1
			}
			histogram[idx] += b.Volume
			continue
		}
		barLo := math.Max(b.Low, min)
		barHi := math.Min(b.High, max)
		barRange := barHi - barLo
		if barRange <= 0 {
			continue
		}
		for i := 0; i < vp.bins; i++ {
			overlap := math.Min(binHi[i], barHi) - math.Max(binLo[i], barLo)
			if overlap > 0 {
				histogram[i] += b.Volume * (overlap / barRange)
			}
		}
	}

	pocIndex := 0
	maxVol := math.Inf(-1)
	for i, v := range histogram {
		if v > maxVol {
			maxVol = v
			pocIndex = i
		}
	}
	poc := binLo[pocIndex] + (binHi[pocIndex]-binLo[pocIndex])/2

	totalVol := 0.0
	for _, v := range histogram {
		totalVol += v
	}
	target := totalVol * vp.valueAreaPct

	// Expand outward from POC toward the heavier neighbor bin. Ties go left.
	left := pocIndex
	right := pocIndex
	acc := histogram[pocIndex]
	for acc < target && (left > 0 || right < vp.bins-1) {
		leftVol := math.Inf(-1)
		if left > 0 {
			leftVol = histogram[left-1]
		}
		rightVol := math.Inf(-1)
		if right < vp.bins-1 {
			rightVol = histogram[right+1]
		}
		if leftVol >= rightVol {
			left--
			acc += histogram[left]
		} else {
			right++
			acc += histogram[right]
		}
	}

	return vp.broadcast(bars, poc, binHi[right], binLo[left], map[string]float64{
		"bins":     float64(vp.bins),
		"step":     step,
		"pocIndex": float64(pocIndex),
		"left":     float64(left),
		"right":    float64(right),
		"totalVol": totalVol,
	})
}

func (vp *AnchoredVolumeProfile) broadcast(bars []datamodels.NormalizedBar, poc float64, vah float64, val float64, meta map[string]float64) []datamodels.FeatureFrame {
	frames := make([]datamodels.FeatureFrame, 0, len(bars))
	for _, b := range bars {
		frames = append(frames, datamodels.FeatureFrame{
			Ts:     b.Ts,
			Symbol: b.Symbol,
			Venue:  b.Venue,
			Values: map[string]float64{"poc": poc, "vah": vah, "val": val},
			Meta:   meta,
		})
	}
	return frames
}
