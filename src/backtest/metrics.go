package backtest

import (
	"math"

	"stratbot/src/datamodels"
)

// ComputeMaxDrawdown returns the largest peak-to-trough equity drop as a
// fraction of the peak.
func ComputeMaxDrawdown(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	peak := series[0]
	maxDd := 0.0
	for _, v := range series {
		if v > peak {
			peak = v
		}
		if peak != 0 {
			if dd := (peak - v) / peak; dd > maxDd {
				maxDd = dd
			}
		}
	}
	return maxDd
}

// ComputeProfitFactor is gross gains over gross losses. All gains and no
// losses is +Inf; neither is 0.
func ComputeProfitFactor(trades []datamodels.TradeRecord) float64 {
	if len(trades) == 0 {
		return 0
	}
	gains := 0.0
	losses := 0.0
	for _, t := range trades {
		if t.Pnl > 0 {
			gains += t.Pnl
		} else if t.Pnl < 0 {
			losses += math.Abs(t.Pnl)
		}
	}
	if losses == 0 {
		if gains > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return gains / losses
}

func winRate(trades []datamodels.TradeRecord) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.Pnl > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(trades))
}
