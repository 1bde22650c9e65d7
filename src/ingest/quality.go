package ingest

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"

	"stratbot/src/datamodels"
)

const (
	gapMedianMultiple     = 5
	outlierMedianMultiple = 20
)

// NormalizeSeries sorts bars by timestamp ascending and drops exact ts
// duplicates, keeping the first occurrence. Every bar sequence entering the
// feature pipeline goes through this.
func NormalizeSeries(bars []datamodels.NormalizedBar) []datamodels.NormalizedBar {
	if len(bars) == 0 {
		return bars
	}
	sorted := make([]datamodels.NormalizedBar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Ts.Before(sorted[j].Ts)
	})
	out := sorted[:1]
	for _, b := range sorted[1:] {
		if b.Ts.Equal(out[len(out)-1].Ts) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// RunQualityChecks flags gaps (inter-bar delta above 5x the median delta) and
// outliers (bar range above 20x the median range). Both thresholds are
// median-based so the outliers being hunted cannot skew the baseline.
func RunQualityChecks(bars []datamodels.NormalizedBar) datamodels.QualityCheckResult {
	if len(bars) == 0 {
		return datamodels.QualityCheckResult{Ok: true}
	}
	issues := []datamodels.QualityIssue{}

	sorted := NormalizeSeries(bars)
	deltas := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		deltas = append(deltas, float64(sorted[i].Ts.Sub(sorted[i-1].Ts).Milliseconds()))
	}
	if len(deltas) > 0 {
		medianDelta, err := stats.Median(deltas)
		if err == nil && medianDelta > 0 {
			for i, delta := range deltas {
				if delta > medianDelta*gapMedianMultiple {
					issues = append(issues, datamodels.QualityIssue{
						Type:        datamodels.QualityIssueGap,
						Description: fmt.Sprintf("gap %.0fms around index %d", delta, i),
					})
				}
			}
		}
	}

	ranges := make([]float64, 0, len(bars))
	for _, b := range bars {
		ranges = append(ranges, b.High-b.Low)
	}
	medianRange, err := stats.Median(ranges)
	if err == nil && medianRange > 0 {
		for _, b := range bars {
			r := b.High - b.Low
			if r > medianRange*outlierMedianMultiple {
				issues = append(issues, datamodels.QualityIssue{
					Type:        datamodels.QualityIssueOutlier,
					Description: fmt.Sprintf("range outlier %.6f at %s", r, b.Ts.Format("2006-01-02T15:04:05Z")),
				})
			}
		}
	}

	return datamodels.QualityCheckResult{Ok: len(issues) == 0, Issues: issues}
}
