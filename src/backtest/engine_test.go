//go:build unit

package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stratbot/src/datamodels"
)

type stubFeatures struct {
	set datamodels.FeatureSet
}

func (s *stubFeatures) Compute(bars []datamodels.NormalizedBar) datamodels.FeatureSet {
	return s.set
}

type memPersistence struct {
	equity []datamodels.EquityPoint
	trades []datamodels.TradeRecord
}

func (m *memPersistence) SaveBacktest(equity []datamodels.EquityPoint, trades []datamodels.TradeRecord) (string, string, error) {
	m.equity = equity
	m.trades = trades
	return "mem:equity", "mem:trades", nil
}

func btBar(minute int, close float64) datamodels.NormalizedBar {
	return datamodels.NormalizedBar{
		Ts:     time.Date(2026, 1, 1, 0, minute, 0, 0, time.UTC),
		Open:   close,
		High:   close,
		Low:    close,
		Close:  close,
		Volume: 1,
		Symbol: "TST",
		Venue:  datamodels.VenueBinance,
	}
}

func signalFrames(signals ...float64) datamodels.FeatureSet {
	frames := make([]datamodels.FeatureFrame, 0, len(signals))
	for i, v := range signals {
		frames = append(frames, datamodels.FeatureFrame{
			Ts:     time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
			Symbol: "TST",
			Values: map[string]float64{"signal": v},
		})
	}
	return datamodels.FeatureSet{"sig": frames}
}

func signalRule(th float64) []datamodels.RuleCondition {
	return []datamodels.RuleCondition{{
		Indicator:  "sig",
		Operands:   []string{"signal"},
		Comparator: datamodels.ComparatorGte,
		Threshold:  &th,
	}}
}

func TestComputeMaxDrawdown(t *testing.T) {
	dd := ComputeMaxDrawdown([]float64{100, 120, 80, 90})
	assert.InDelta(t, 1.0/3.0, dd, 1e-9)
	assert.Equal(t, 0.0, ComputeMaxDrawdown([]float64{100, 110, 120}))
	assert.Equal(t, 0.0, ComputeMaxDrawdown(nil))
}

func TestComputeProfitFactor(t *testing.T) {
	assert.Equal(t, 0.0, ComputeProfitFactor(nil))
	assert.Equal(t, 2.0, ComputeProfitFactor([]datamodels.TradeRecord{{Pnl: 100}, {Pnl: -50}}))
	assert.True(t, math.IsInf(ComputeProfitFactor([]datamodels.TradeRecord{{Pnl: 100}}), 1))
	assert.Equal(t, 0.0, ComputeProfitFactor([]datamodels.TradeRecord{{Pnl: 0}}))
}

func TestSimpleBacktesterBuyHold(t *testing.T) {
	res, err := NewSimpleBacktester().Run(datamodels.BacktestRequest{
		Bars:           []datamodels.NormalizedBar{btBar(0, 100), btBar(1, 110)},
		InitialCapital: 10_000,
	})
	assert.NoError(t, err)
	assert.InDelta(t, 1000.0, res.Metrics.NetPnl, 1e-9)
	assert.Equal(t, 1.0, res.Metrics.WinRate)
	assert.Equal(t, 1, res.Metrics.Trades)
}

func TestSimpleBacktesterTooFewBars(t *testing.T) {
	res, err := NewSimpleBacktester().Run(datamodels.BacktestRequest{
		Bars: []datamodels.NormalizedBar{btBar(0, 100)},
	})
	assert.NoError(t, err)
	assert.Equal(t, datamodels.BacktestMetrics{}, res.Metrics)
	assert.Len(t, res.Warnings, 1)
}

func TestRuleBasedEntryExitRealizesPnl(t *testing.T) {
	// Enter at bar 1 (close 100), exit at bar 3 (close 120).
	features := &stubFeatures{set: datamodels.FeatureSet{
		"entry": signalFrames(0, 1, 0, 0)["sig"],
		"exit":  signalFrames(0, 0, 0, 1)["sig"],
	}}
	one := 1.0
	spec := datamodels.StrategySpec{
		Name: "test",
		Rules: datamodels.StrategyRuleBlock{
			Entries: []datamodels.RuleCondition{{Indicator: "entry", Operands: []string{"signal"}, Comparator: datamodels.ComparatorGte, Threshold: &one}},
			Exits:   []datamodels.RuleCondition{{Indicator: "exit", Operands: []string{"signal"}, Comparator: datamodels.ComparatorGte, Threshold: &one}},
		},
		Risk: datamodels.RiskSettings{PositionSizing: datamodels.SizingFixedDollar, SizingValue: 1000},
	}
	persist := &memPersistence{}
	res, err := NewRuleBasedBacktester(features, persist).Run(datamodels.BacktestRequest{
		Spec:           spec,
		Bars:           []datamodels.NormalizedBar{btBar(0, 100), btBar(1, 100), btBar(2, 110), btBar(3, 120)},
		InitialCapital: 10_000,
	})
	assert.NoError(t, err)
	// 10 units bought at 100, sold at 120.
	assert.InDelta(t, 200.0, res.Metrics.NetPnl, 1e-9)
	assert.Equal(t, 1, res.Metrics.Trades)
	assert.Equal(t, 1.0, res.Metrics.WinRate)
	assert.Equal(t, "mem:equity", res.EquityCurveRef)
	assert.Len(t, persist.equity, 4)
	assert.Len(t, persist.trades, 1)
}

func TestRuleBasedStopLossCloses(t *testing.T) {
	features := &stubFeatures{set: datamodels.FeatureSet{
		"sig": signalFrames(1, 0, 0)["sig"],
	}}
	spec := datamodels.StrategySpec{
		Name: "sl",
		Rules: datamodels.StrategyRuleBlock{
			Entries: signalRule(1),
		},
		Risk: datamodels.RiskSettings{
			PositionSizing: datamodels.SizingFixedDollar,
			SizingValue:    1000,
			StopLoss:       5,
		},
	}
	res, err := NewRuleBasedBacktester(features, &memPersistence{}).Run(datamodels.BacktestRequest{
		Spec:           spec,
		Bars:           []datamodels.NormalizedBar{btBar(0, 100), btBar(1, 98), btBar(2, 90)},
		InitialCapital: 10_000,
	})
	assert.NoError(t, err)
	// Entry at 100, stop triggers at bar 2 close 90: 10 units * -10.
	assert.Equal(t, 1, res.Metrics.Trades)
	assert.InDelta(t, -100.0, res.Metrics.NetPnl, 1e-9)
}

func TestRuleBasedFeesChargedBothWays(t *testing.T) {
	features := &stubFeatures{set: datamodels.FeatureSet{
		"entry": signalFrames(1, 0)["sig"],
		"exit":  signalFrames(0, 1)["sig"],
	}}
	one := 1.0
	spec := datamodels.StrategySpec{
		Name: "fees",
		Rules: datamodels.StrategyRuleBlock{
			Entries: []datamodels.RuleCondition{{Indicator: "entry", Operands: []string{"signal"}, Comparator: datamodels.ComparatorGte, Threshold: &one}},
			Exits:   []datamodels.RuleCondition{{Indicator: "exit", Operands: []string{"signal"}, Comparator: datamodels.ComparatorGte, Threshold: &one}},
		},
		Risk: datamodels.RiskSettings{PositionSizing: datamodels.SizingFixedDollar, SizingValue: 1000},
	}
	res, err := NewRuleBasedBacktester(features, &memPersistence{}).Run(datamodels.BacktestRequest{
		Spec:           spec,
		Bars:           []datamodels.NormalizedBar{btBar(0, 100), btBar(1, 100)},
		InitialCapital: 10_000,
		FeesBps:        10,
		SlippageBps:    5,
	})
	assert.NoError(t, err)
	// Flat price: PnL is pure cost, 1000 notional * 15bps * 2 sides = 3.
	assert.InDelta(t, -3.0, res.Metrics.NetPnl, 1e-9)
}

func TestRuleBasedNoBarsFallsBackToSimple(t *testing.T) {
	res, err := NewRuleBasedBacktester(&stubFeatures{}, &memPersistence{}).Run(datamodels.BacktestRequest{})
	assert.NoError(t, err)
	assert.Equal(t, "backtest:none", res.EquityCurveRef)
}

func TestRuleBasedNoEntriesNeverTrades(t *testing.T) {
	features := &stubFeatures{set: signalFrames(0, 0, 0)}
	spec := datamodels.StrategySpec{
		Name:  "never",
		Rules: datamodels.StrategyRuleBlock{Entries: signalRule(1)},
		Risk:  datamodels.RiskSettings{PositionSizing: datamodels.SizingFixedDollar, SizingValue: 1000},
	}
	res, err := NewRuleBasedBacktester(features, &memPersistence{}).Run(datamodels.BacktestRequest{
		Spec:           spec,
		Bars:           []datamodels.NormalizedBar{btBar(0, 100), btBar(1, 110), btBar(2, 120)},
		InitialCapital: 10_000,
	})
	assert.NoError(t, err)
	assert.Equal(t, 0, res.Metrics.Trades)
	assert.InDelta(t, 0.0, res.Metrics.NetPnl, 1e-9)
}
