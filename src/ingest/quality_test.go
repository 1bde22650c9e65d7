//go:build unit

package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stratbot/src/datamodels"
)

func mkBar(ts time.Time, high float64, low float64) datamodels.NormalizedBar {
	return datamodels.NormalizedBar{
		Ts:     ts,
		Open:   low,
		High:   high,
		Low:    low,
		Close:  high,
		Venue:  datamodels.VenueBinance,
		Symbol: "BTCUSDT",
	}
}

func TestNormalizeSeriesSortsAndDedupes(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []datamodels.NormalizedBar{
		mkBar(base.Add(2*time.Minute), 101, 100),
		mkBar(base, 101, 100),
		mkBar(base.Add(time.Minute), 101, 100),
		mkBar(base.Add(time.Minute), 999, 0), // duplicate ts, dropped
	}
	out := NormalizeSeries(bars)
	assert.Len(t, out, 3)
	assert.True(t, out[0].Ts.Equal(base))
	assert.True(t, out[1].Ts.Equal(base.Add(time.Minute)))
	assert.Equal(t, 101.0, out[1].High)
	assert.True(t, out[2].Ts.Equal(base.Add(2*time.Minute)))
}

func TestRunQualityChecksCleanSeries(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]datamodels.NormalizedBar, 0, 10)
	for i := 0; i < 10; i++ {
		bars = append(bars, mkBar(base.Add(time.Duration(i)*time.Minute), 101, 100))
	}
	res := RunQualityChecks(bars)
	assert.True(t, res.Ok)
	assert.Empty(t, res.Issues)
}

func TestRunQualityChecksFlagsGap(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]datamodels.NormalizedBar, 0, 11)
	for i := 0; i < 10; i++ {
		bars = append(bars, mkBar(base.Add(time.Duration(i)*time.Minute), 101, 100))
	}
	// 60 minute hole, well past 5x the 1 minute median delta
	bars = append(bars, mkBar(base.Add(70*time.Minute), 101, 100))
	res := RunQualityChecks(bars)
	assert.False(t, res.Ok)
	assert.Len(t, res.Issues, 1)
	assert.Equal(t, datamodels.QualityIssueGap, res.Issues[0].Type)
}

func TestRunQualityChecksFlagsOutlier(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]datamodels.NormalizedBar, 0, 10)
	for i := 0; i < 9; i++ {
		bars = append(bars, mkBar(base.Add(time.Duration(i)*time.Minute), 101, 100))
	}
	bars = append(bars, mkBar(base.Add(9*time.Minute), 200, 100))
	res := RunQualityChecks(bars)
	assert.False(t, res.Ok)
	assert.Len(t, res.Issues, 1)
	assert.Equal(t, datamodels.QualityIssueOutlier, res.Issues[0].Type)
}

func TestRunQualityChecksEmptyIsOk(t *testing.T) {
	res := RunQualityChecks(nil)
	assert.True(t, res.Ok)
}
