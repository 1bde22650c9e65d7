package backtest

import (
	"encoding/json"
	"log/slog"

	"stratbot/src/datamodels"
	"stratbot/src/rules"
	"stratbot/src/utils/errors"
	"stratbot/src/utils/general"
)

// FeatureProvider computes the feature frames a rule block evaluates against.
type FeatureProvider interface {
	Compute(bars []datamodels.NormalizedBar) datamodels.FeatureSet
}

// ResultPersistence writes the equity curve and trade list somewhere durable
// and returns references to them.
type ResultPersistence interface {
	SaveBacktest(equity []datamodels.EquityPoint, trades []datamodels.TradeRecord) (equityRef string, tradesRef string, err error)
}

type openPosition struct {
	side  datamodels.PositionSide
	entry float64
	size  float64
}

// RuleBasedBacktester replays a strategy's entry/exit/filter rules bar by
// bar. Entries are long-only; positions close on an exit rule or on the
// spec's take-profit / stop-loss percentages. Equity is marked to market
// every bar.
type RuleBasedBacktester struct {
	features    FeatureProvider
	persistence ResultPersistence
}

func NewRuleBasedBacktester(features FeatureProvider, persistence ResultPersistence) *RuleBasedBacktester {
	return &RuleBasedBacktester{features: features, persistence: persistence}
}

func (r *RuleBasedBacktester) Run(request datamodels.BacktestRequest) (datamodels.BacktestResult, error) {
	bars := request.Bars
	if len(bars) == 0 {
		return NewSimpleBacktester().Run(request)
	}

	featureSet := r.features.Compute(bars)

	initialCapital := request.InitialCapital
	if initialCapital <= 0 {
		initialCapital = defaultInitialCapital
	}
	equity := initialCapital
	equityCurve := make([]float64, 0, len(bars))
	trades := []datamodels.TradeRecord{}
	var position *openPosition
	tpPct := request.Spec.Risk.TakeProfit
	slPct := request.Spec.Risk.StopLoss

	closePosition := func(idx int, price float64) {
		pnl, feeCost := tradePnl(*position, price, request.FeesBps, request.SlippageBps)
		equity += pnl - feeCost
		trades = append(trades, datamodels.TradeRecord{
			EntryIdx: idx,
			ExitIdx:  idx,
			Side:     position.side,
			Pnl:      pnl,
		})
		position = nil
	}

	for idx, bar := range bars {
		entryOk := rules.Evaluate(request.Spec.Rules.Entries, featureSet, idx)
		exitOk := rules.Evaluate(request.Spec.Rules.Exits, featureSet, idx)
		filterOk := rules.EvaluateFilters(request.Spec.Rules.Filters, featureSet, idx)

		switch {
		case position == nil && entryOk && filterOk:
			position = &openPosition{
				side:  datamodels.PositionSideLong,
				entry: bar.Close,
				size:  positionSize(request.Spec.Risk, equity, bar, featureSet, idx),
			}
		case position != nil && exitOk:
			closePosition(idx, bar.Close)
		case position != nil:
			changePct := (bar.Close - position.entry) / position.entry
			if position.side == datamodels.PositionSideShort {
				changePct = -changePct
			}
			if tpPct != 0 && changePct >= tpPct/100 {
				closePosition(idx, bar.Close)
			} else if slPct != 0 && changePct <= -slPct/100 {
				closePosition(idx, bar.Close)
			}
		}

		mtm := equity
		if position != nil {
			move := (bar.Close - position.entry) * position.size
			if position.side == datamodels.PositionSideShort {
				move = -move
			}
			mtm += move
		}
		equityCurve = append(equityCurve, mtm)
	}

	netPnl := equityCurve[len(equityCurve)-1] - initialCapital

	equityPoints := make([]datamodels.EquityPoint, 0, len(bars))
	for i, eq := range equityCurve {
		equityPoints = append(equityPoints, datamodels.EquityPoint{Ts: bars[i].Ts, Equity: eq})
	}
	equityRef, tradesRef, err := r.persistence.SaveBacktest(equityPoints, trades)
	if err != nil {
		return datamodels.BacktestResult{}, errors.Wrap(err, "failed to persist backtest artifacts")
	}
	slog.Info("Backtest complete",
		"spec", request.Spec.SpecId(),
		"bars", len(bars),
		"trades", len(trades),
		"netPnl", netPnl)

	return datamodels.BacktestResult{
		Metrics: datamodels.BacktestMetrics{
			NetPnl:       netPnl,
			WinRate:      winRate(trades),
			MaxDrawdown:  ComputeMaxDrawdown(equityCurve),
			ProfitFactor: ComputeProfitFactor(trades),
			Trades:       len(trades),
		},
		EquityCurveRef: equityRef,
		TradesRef:      tradesRef,
		CacheKey:       cacheKey(request),
	}, nil
}

// cacheKey derives a stable id for a run from the inputs that determine its
// outcome.
func cacheKey(request datamodels.BacktestRequest) string {
	identity, _ := json.Marshal(map[string]any{
		"spec":        request.Spec,
		"dataVersion": request.DataVersion,
		"start":       request.Start,
		"end":         request.End,
		"feesBps":     request.FeesBps,
		"slippageBps": request.SlippageBps,
	})
	return general.GenerateUUID5StringFromByteArray(identity)
}

// positionSize converts the spec's sizing mode into units of the instrument.
func positionSize(risk datamodels.RiskSettings, equity float64, bar datamodels.NormalizedBar, featureSet datamodels.FeatureSet, idx int) float64 {
	switch risk.PositionSizing {
	case datamodels.SizingFixedDollar:
		return risk.SizingValue / bar.Close
	case datamodels.SizingPercentEquity:
		return equity * (risk.SizingValue / 100) / bar.Close
	case datamodels.SizingAtr:
		atrSeries := featureSet["atr"]
		if idx < len(atrSeries) {
			if atr, ok := atrSeries[idx].Values["atr"]; ok && atr > 0 {
				// Size so a one-ATR move risks sizingValue percent of equity.
				return equity * (risk.SizingValue / 100) / atr
			}
		}
		return equity * 0.01 / bar.Close
	default:
		return equity * 0.01 / bar.Close
	}
}

func tradePnl(position openPosition, exitPrice float64, feesBps float64, slippageBps float64) (pnl float64, feeCost float64) {
	if position.side == datamodels.PositionSideLong {
		pnl = (exitPrice - position.entry) * position.size
	} else {
		pnl = (position.entry - exitPrice) * position.size
	}
	notional := position.entry * position.size
	feeCost = notional * ((feesBps + slippageBps) / 10_000) * 2 // entry + exit
	return pnl, feeCost
}
