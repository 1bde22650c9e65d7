//go:build unit

package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stratbot/src/datamodels"
)

func seriesBar(minute int, high, low, close float64) datamodels.NormalizedBar {
	return datamodels.NormalizedBar{
		Ts:     time.Date(2026, 1, 1, 0, minute, 0, 0, time.UTC),
		Open:   low,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: 1,
		Venue:  datamodels.VenueBinance,
		Symbol: "TST",
	}
}

func TestProviderComputesAllDefaultFeatures(t *testing.T) {
	bars := []datamodels.NormalizedBar{
		seriesBar(0, 101, 100, 100.5),
		seriesBar(1, 102, 101, 101.5),
		seriesBar(2, 103, 102, 102.5),
	}
	set := NewProvider().Compute(bars)
	for _, id := range []string{"anchored-vp", "imbalance", "structure", "regime", "session", "atr"} {
		frames, ok := set[id]
		assert.True(t, ok, "missing feature set %q", id)
		assert.Len(t, frames, 3, "feature %q", id)
	}
}

func TestAtrFirstBarUsesOwnRange(t *testing.T) {
	bars := []datamodels.NormalizedBar{
		seriesBar(0, 110, 100, 105),
		seriesBar(1, 112, 104, 110),
	}
	frames := NewAtrComputer(14).Compute(bars)
	assert.Len(t, frames, 2)
	// First TR = high-low = 10 (prev close seeded with own close).
	assert.InDelta(t, 10.0, frames[0].Values["atr"], 1e-9)
	// Second TR = max(112-104, |112-105|, |104-105|) = 8; ATR = (10+8)/2.
	assert.InDelta(t, 9.0, frames[1].Values["atr"], 1e-9)
}

func TestAtrWindowCapsAtPeriod(t *testing.T) {
	bars := []datamodels.NormalizedBar{
		seriesBar(0, 110, 100, 105),
		seriesBar(1, 109, 101, 105),
		seriesBar(2, 108, 102, 105),
		seriesBar(3, 107, 103, 105),
	}
	frames := NewAtrComputer(2).Compute(bars)
	// Last ATR averages only the final two TRs: (6+4)/2.
	assert.InDelta(t, 5.0, frames[3].Values["atr"], 1e-9)
}

func TestMarketStructureLabels(t *testing.T) {
	bars := []datamodels.NormalizedBar{
		seriesBar(0, 100, 90, 95),
		seriesBar(1, 105, 95, 100), // HH: higher high and higher low
		seriesBar(2, 104, 96, 100), // HL: lower high but higher low
		seriesBar(3, 102, 94, 96),  // LL: lower low and lower high
		seriesBar(4, 101, 95, 98),  // HL
	}
	frames := NewMarketStructureComputer(5).Compute(bars)
	labels := make([]float64, 0, len(frames))
	for _, f := range frames {
		labels = append(labels, f.Values["structureLabel"])
	}
	assert.Equal(t, []float64{0, 1, 2, -1, 2}, labels)
	assert.Equal(t, 105.0, frames[4].Values["swingHigh"])
	assert.Equal(t, 90.0, frames[4].Values["swingLow"])
}

func TestMarketStructureSwingWindow(t *testing.T) {
	bars := make([]datamodels.NormalizedBar, 0, 6)
	bars = append(bars, seriesBar(0, 200, 50, 100))
	for i := 1; i < 6; i++ {
		bars = append(bars, seriesBar(i, 110, 100, 105))
	}
	frames := NewMarketStructureComputer(3).Compute(bars)
	// The spike bar falls out of the 3-bar window by the last frame.
	last := frames[len(frames)-1]
	assert.Equal(t, 110.0, last.Values["swingHigh"])
	assert.Equal(t, 100.0, last.Values["swingLow"])
}

func TestImbalanceScaling(t *testing.T) {
	frames := NewImbalanceComputer().Compute([]datamodels.NormalizedBar{
		seriesBar(0, 110, 100, 110), // close at high -> +100
		seriesBar(1, 110, 100, 100), // close at low -> -100
		seriesBar(2, 110, 100, 105), // mid -> 0
		seriesBar(3, 100, 100, 100), // zero range -> divisor forced to 1
	})
	assert.InDelta(t, 100.0, frames[0].Values["imbalance"], 1e-9)
	assert.InDelta(t, -100.0, frames[1].Values["imbalance"], 1e-9)
	assert.InDelta(t, 0.0, frames[2].Values["imbalance"], 1e-9)
	assert.InDelta(t, -100.0, frames[3].Values["imbalance"], 1e-9)
}

func TestSessionTags(t *testing.T) {
	bar := seriesBar(0, 101, 100, 100.5)
	bar.Ts = time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC)
	frames := NewSessionTagComputer().Compute([]datamodels.NormalizedBar{bar})
	f := frames[0]
	assert.Equal(t, 0.0, f.Values["session_asia"])
	assert.Equal(t, 1.0, f.Values["session_london"])
	assert.Equal(t, 1.0, f.Values["session_ny"])
}

func TestRegimeScoreAgainstMedianRange(t *testing.T) {
	bars := []datamodels.NormalizedBar{
		seriesBar(0, 102, 100, 101),
		seriesBar(1, 103, 101, 102),
		seriesBar(2, 110, 100, 105),
	}
	frames := NewRegimeScoreComputer().Compute(bars)
	// Median range is 2; the wide bar scores 5x.
	assert.InDelta(t, 1.0, frames[0].Values["volScore"], 1e-9)
	assert.InDelta(t, 5.0, frames[2].Values["volScore"], 1e-9)
}
