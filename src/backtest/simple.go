package backtest

import (
	"stratbot/src/datamodels"
)

const defaultInitialCapital = 10_000

// Backtester runs a strategy over historical bars and reports metrics.
type Backtester interface {
	Run(request datamodels.BacktestRequest) (datamodels.BacktestResult, error)
}

// SimpleBacktester is the buy-and-hold baseline: enter on the first bar,
// exit on the last. It doubles as the fallback when a rule-based run has no
// bars to work with.
type SimpleBacktester struct{}

func NewSimpleBacktester() *SimpleBacktester {
	return &SimpleBacktester{}
}

func (s *SimpleBacktester) Run(request datamodels.BacktestRequest) (datamodels.BacktestResult, error) {
	bars := request.Bars
	if len(bars) < 2 {
		return datamodels.BacktestResult{
			EquityCurveRef: "backtest:none",
			TradesRef:      "backtest:none",
			Warnings:       []string{"insufficient bars provided to backtest"},
		}, nil
	}

	initialCapital := request.InitialCapital
	if initialCapital <= 0 {
		initialCapital = defaultInitialCapital
	}
	fee := (request.FeesBps + request.SlippageBps) / 10_000

	entry := bars[0]
	exit := bars[len(bars)-1]
	grossReturn := (exit.Close - entry.Close) / entry.Close
	pnl := initialCapital * (grossReturn - fee)

	equityCurve := make([]float64, 0, len(bars))
	for _, b := range bars {
		equityCurve = append(equityCurve, initialCapital*(1+((b.Close-entry.Close)/entry.Close-fee)))
	}

	profitFactor := 0.0
	winRate := 0.0
	if pnl > 0 {
		winRate = 1
		profitFactor = (pnl + initialCapital) / initialCapital
	}

	return datamodels.BacktestResult{
		Metrics: datamodels.BacktestMetrics{
			NetPnl:       pnl,
			WinRate:      winRate,
			MaxDrawdown:  ComputeMaxDrawdown(equityCurve),
			ProfitFactor: profitFactor,
			Trades:       1,
		},
		EquityCurveRef: "backtest:equity:memory",
		TradesRef:      "backtest:trades:memory",
		CacheKey:       cacheKey(request),
		Warnings:       []string{"simple backtester holds from first bar to last"},
	}, nil
}
