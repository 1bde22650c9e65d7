//go:build unit

package live

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stratbot/src/brokers"
	"stratbot/src/datamodels"
	"stratbot/src/risk"
)

func liveTestConfig() datamodels.RiskConfig {
	return datamodels.RiskConfig{
		MaxNotional:     1_000_000,
		DailyLossCap:    1_000_000,
		MaxPositionSize: 1_000_000,
		MaxOpenOrders:   10,
	}
}

type stubAdapter struct {
	id     datamodels.Broker
	status datamodels.OrderStatus

	mu      sync.Mutex
	intents []datamodels.OrderIntent
}

func (a *stubAdapter) Id() datamodels.Broker { return a.id }
func (a *stubAdapter) CanPaperTrade() bool   { return true }

func (a *stubAdapter) Execute(_ context.Context, intent datamodels.OrderIntent) datamodels.ExecutionResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.intents = append(a.intents, intent)
	return datamodels.ExecutionResult{OrderId: "stub-1", Status: a.status}
}

func (a *stubAdapter) calls() []datamodels.OrderIntent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]datamodels.OrderIntent, len(a.intents))
	copy(out, a.intents)
	return out
}

// stubFeatures emits a single "sig" feature with one value per bar, so tests
// can drive rule outcomes directly.
type stubFeatures struct {
	values []float64
}

func (s *stubFeatures) Compute(bars []datamodels.NormalizedBar) datamodels.FeatureSet {
	frames := make([]datamodels.FeatureFrame, len(bars))
	for i, bar := range bars {
		v := 0.0
		if i < len(s.values) {
			v = s.values[i]
		}
		frames[i] = datamodels.FeatureFrame{
			Ts:     bar.Ts,
			Symbol: bar.Symbol,
			Venue:  bar.Venue,
			Values: map[string]float64{"v": v},
		}
	}
	return datamodels.FeatureSet{"sig": frames}
}

func threshold(v float64) *float64 { return &v }

func sigAboveRule(t float64) []datamodels.RuleCondition {
	return []datamodels.RuleCondition{{
		Indicator:  "sig",
		Operands:   []string{"v"},
		Comparator: datamodels.ComparatorGt,
		Threshold:  threshold(t),
	}}
}

func liveSpec(entries, exits []datamodels.RuleCondition) datamodels.StrategySpec {
	return datamodels.StrategySpec{
		Name: "live-test",
		Instrument: datamodels.InstrumentRef{
			Symbol:     "BTCUSDT",
			Venue:      datamodels.VenueBinance,
			AssetClass: datamodels.AssetClassCrypto,
		},
		Timeframe: datamodels.Timeframe1m,
		Rules:     datamodels.StrategyRuleBlock{Entries: entries, Exits: exits},
		Risk: datamodels.RiskSettings{
			PositionSizing: datamodels.SizingFixedDollar,
			SizingValue:    1000,
		},
	}
}

func TestExecutorBlocksUncheckedIntent(t *testing.T) {
	book := risk.NewBook(liveTestConfig())
	executor := NewExecutor(book, brokers.NewRegistry(), false)

	result := executor.Execute(context.Background(), datamodels.OrderIntent{
		Broker:     datamodels.BrokerPaper,
		AccountRef: "default",
		Symbol:     "BTCUSDT",
		Quantity:   1,
		Paper:      true,
	})

	assert.Equal(t, datamodels.OrderStatusBlocked, result.Status)
	assert.Contains(t, result.Warnings[0], "risk checked")
}

func TestExecutorBlocksLiveWhenDisabled(t *testing.T) {
	book := risk.NewBook(liveTestConfig())
	executor := NewExecutor(book, brokers.NewRegistry(), false)

	result := executor.Execute(context.Background(), datamodels.OrderIntent{
		Broker:      datamodels.BrokerBinance,
		AccountRef:  "default",
		Symbol:      "BTCUSDT",
		Quantity:    1,
		Paper:       false,
		RiskChecked: true,
	})

	assert.Equal(t, datamodels.OrderStatusBlocked, result.Status)
	assert.Contains(t, result.Warnings[0], "live trading disabled")
}

func TestExecutorReleasesReservationOnUnknownBroker(t *testing.T) {
	cfg := liveTestConfig()
	cfg.MaxOpenOrders = 1
	book := risk.NewBook(cfg)
	executor := NewExecutor(book, brokers.NewRegistry(), false)

	intent := datamodels.OrderIntent{
		Broker:      datamodels.BrokerMT5,
		AccountRef:  "default",
		Symbol:      "EURUSD",
		Quantity:    1,
		Price:       1.1,
		Paper:       true,
		RiskChecked: true,
	}
	result := executor.Execute(context.Background(), intent)
	assert.Equal(t, datamodels.OrderStatusError, result.Status)

	// The reserved open-order slot must be released, or the single slot
	// would stay consumed forever.
	assert.True(t, book.Check(intent, 1.1, nil).Ok)
}

func TestExecutorReleasesReservationOnAdapterError(t *testing.T) {
	cfg := liveTestConfig()
	cfg.MaxOpenOrders = 1
	book := risk.NewBook(cfg)
	registry := brokers.NewRegistry()
	registry.Register(&stubAdapter{id: datamodels.BrokerBinance, status: datamodels.OrderStatusError})
	executor := NewExecutor(book, registry, false)

	intent := datamodels.OrderIntent{
		Broker:      datamodels.BrokerBinance,
		AccountRef:  "default",
		Symbol:      "BTCUSDT",
		Quantity:    1,
		Price:       100,
		Paper:       true,
		RiskChecked: true,
	}
	result := executor.Execute(context.Background(), intent)
	assert.Equal(t, datamodels.OrderStatusError, result.Status)
	assert.True(t, book.Check(intent, 100, nil).Ok)
	assert.Zero(t, book.PositionSize(datamodels.BrokerBinance, "default", "BTCUSDT"))
}

func TestExecutorRecordsFillOnSuccess(t *testing.T) {
	book := risk.NewBook(liveTestConfig())
	registry := brokers.NewRegistry()
	adapter := &stubAdapter{id: datamodels.BrokerBinance, status: datamodels.OrderStatusPaper}
	registry.Register(adapter)
	executor := NewExecutor(book, registry, false)

	result := executor.Execute(context.Background(), datamodels.OrderIntent{
		Broker:      datamodels.BrokerBinance,
		AccountRef:  "default",
		Side:        datamodels.OrderSideBuy,
		Symbol:      "BTCUSDT",
		Quantity:    0.5,
		Price:       100,
		Paper:       true,
		RiskChecked: true,
	})

	assert.Equal(t, datamodels.OrderStatusPaper, result.Status)
	assert.Len(t, adapter.calls(), 1)
	assert.InDelta(t, 0.5, book.PositionSize(datamodels.BrokerBinance, "default", "BTCUSDT"), 1e-9)
}

type fakeIngestor struct {
	mu      sync.Mutex
	bars    []datamodels.NormalizedBar
	errors  []string
	fetches int
}

func (f *fakeIngestor) GetName() string                               { return "fake" }
func (f *fakeIngestor) SupportsTimeframe(_ datamodels.Timeframe) bool { return true }

func (f *fakeIngestor) FetchBars(_ context.Context, _ datamodels.FetchBarsRequest) datamodels.IngestResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return datamodels.IngestResult{Bars: f.bars, Errors: f.errors}
}

func pollBars(closes ...float64) []datamodels.NormalizedBar {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	bars := make([]datamodels.NormalizedBar, len(closes))
	for i, c := range closes {
		bars[i] = datamodels.NormalizedBar{
			Ts:        base.Add(time.Duration(i) * time.Minute),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1,
			Venue:     datamodels.VenueBinance,
			Symbol:    "BTCUSDT",
			Timeframe: datamodels.Timeframe1m,
		}
	}
	return bars
}

func TestPollingRunnerEmitsEntryOnce(t *testing.T) {
	ingestor := &fakeIngestor{bars: pollBars(100, 101, 102)}
	runner := NewPollingRunner(ingestor, &stubFeatures{values: []float64{0, 0, 5}}, nil)
	spec := liveSpec(sigAboveRule(1), nil)

	var signals []datamodels.LiveSignal
	collect := func(s datamodels.LiveSignal) { signals = append(signals, s) }

	runner.RunOnce(context.Background(), spec, time.Now(), collect)
	runner.RunOnce(context.Background(), spec, time.Now(), collect)

	assert.Len(t, signals, 1)
	assert.Equal(t, datamodels.SignalEntry, signals[0].Signal)
	assert.Equal(t, datamodels.PositionSideLong, signals[0].Side)
	assert.Equal(t, 102.0, signals[0].Price)
	assert.Empty(t, signals[0].HealthFlags)
}

func TestPollingRunnerEmitsExitAndClearsPosition(t *testing.T) {
	ingestor := &fakeIngestor{bars: pollBars(100, 101, 102)}
	positions := NewInMemoryPositionStore()
	positions.Set("live-test", datamodels.PositionSideLong, 95)
	runner := NewPollingRunner(ingestor, &stubFeatures{values: []float64{0, 0, 5}}, positions)
	spec := liveSpec(nil, sigAboveRule(1))

	var signals []datamodels.LiveSignal
	runner.RunOnce(context.Background(), spec, time.Now(), func(s datamodels.LiveSignal) {
		signals = append(signals, s)
	})

	assert.Len(t, signals, 1)
	assert.Equal(t, datamodels.SignalExit, signals[0].Signal)
	_, _, holding := positions.Get("live-test")
	assert.False(t, holding)
}

func TestPollingRunnerHealthFlags(t *testing.T) {
	ingestor := &fakeIngestor{errors: []string{"binance: 503"}}
	runner := NewPollingRunner(ingestor, &stubFeatures{}, nil)
	spec := liveSpec(sigAboveRule(1), nil)

	runner.RunOnce(context.Background(), spec, time.Now(), func(datamodels.LiveSignal) {
		t.Fatal("no signal expected on fetch failure")
	})
	assert.Equal(t, []string{"error:binance: 503"}, runner.healthFlags())

	// Stale fetch timestamps surface even without a fresh error.
	runner.lastError = ""
	runner.lastFetchAt = time.Now().Add(-5 * time.Minute)
	assert.Equal(t, []string{"stale-data"}, runner.healthFlags())
}

// fakeFeed hands the test direct control of the subscriber channels.
type fakeFeed struct {
	mu      sync.Mutex
	watched []datamodels.StreamSubscription
	sub     *datamodels.BarSubscription
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		sub: &datamodels.BarSubscription{
			SubscriptionName: "test",
			SubscriptionId:   "sub-1",
			BarChan:          make(chan datamodels.BarEvent, 16),
			DoneChan:         make(chan struct{}),
			ErrorChan:        make(chan error, 1),
		},
	}
}

func (f *fakeFeed) Watch(sub datamodels.StreamSubscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watched = append(f.watched, sub)
}

func (f *fakeFeed) Unwatch(datamodels.StreamSubscription) {}

func (f *fakeFeed) Subscribe(context.Context, string) (*datamodels.BarSubscription, error) {
	return f.sub, nil
}

func (f *fakeFeed) Unsubscribe(context.Context, string) error { return nil }
func (f *fakeFeed) GetName() string                           { return "fake" }
func (f *fakeFeed) Start(context.Context) error               { return nil }
func (f *fakeFeed) IsStarted() bool                           { return true }
func (f *fakeFeed) Stop() error                               { return nil }

func (f *fakeFeed) push(bar datamodels.NormalizedBar) {
	f.sub.BarChan <- datamodels.BarEvent{
		Sub: datamodels.StreamSubscription{
			Venue:     bar.Venue,
			Symbol:    bar.Symbol,
			Timeframe: bar.Timeframe,
		},
		Bar:      bar,
		SourceTs: bar.Ts,
	}
}

func TestRunnerExecutesEntryAndExit(t *testing.T) {
	feed := newFakeFeed()
	book := risk.NewBook(liveTestConfig())
	registry := brokers.NewRegistry()
	adapter := &stubAdapter{id: datamodels.BrokerBinance, status: datamodels.OrderStatusPaper}
	registry.Register(adapter)
	executor := NewExecutor(book, registry, false)

	// Entry fires on the second bar, exit on the third.
	runner := NewRunner(feed, &stubFeatures{values: []float64{0, 5, -5}}, book, executor)
	runner.AddStrategy(liveSpec(sigAboveRule(1), []datamodels.RuleCondition{{
		Indicator:  "sig",
		Operands:   []string{"v"},
		Comparator: datamodels.ComparatorLt,
		Threshold:  threshold(-1),
	}}))

	signals := make(chan datamodels.LiveSignal, 4)
	runner.OnSignal(func(s datamodels.LiveSignal) { signals <- s })

	assert.NoError(t, runner.Start(context.Background()))
	defer runner.Stop()

	bars := pollBars(100, 110, 90)
	feed.push(bars[0])
	feed.push(bars[1])

	select {
	case s := <-signals:
		assert.Equal(t, datamodels.SignalEntry, s.Signal)
		assert.Equal(t, 110.0, s.Price)
		assert.InDelta(t, 1000.0/110, s.Size, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for entry signal")
	}
	assert.InDelta(t, 1000.0/110, book.PositionSize(datamodels.BrokerBinance, "default", "BTCUSDT"), 1e-9)

	feed.push(bars[2])
	select {
	case s := <-signals:
		assert.Equal(t, datamodels.SignalExit, s.Signal)
		assert.Equal(t, 90.0, s.Price)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for exit signal")
	}
	assert.Zero(t, book.PositionSize(datamodels.BrokerBinance, "default", "BTCUSDT"))
	assert.Len(t, adapter.calls(), 2)
}

func TestRunnerIgnoresBarsWhenRulesNeverMatch(t *testing.T) {
	feed := newFakeFeed()
	book := risk.NewBook(liveTestConfig())
	registry := brokers.NewRegistry()
	adapter := &stubAdapter{id: datamodels.BrokerBinance, status: datamodels.OrderStatusPaper}
	registry.Register(adapter)
	executor := NewExecutor(book, registry, false)

	runner := NewRunner(feed, &stubFeatures{values: []float64{0, 0}}, book, executor)
	runner.AddStrategy(liveSpec(sigAboveRule(100), nil))
	assert.NoError(t, runner.Start(context.Background()))

	for _, bar := range pollBars(100, 101) {
		feed.push(bar)
	}
	runner.Stop()

	assert.Empty(t, adapter.calls())
	assert.Empty(t, book.Snapshot())
	assert.Equal(t, []datamodels.StreamSubscription{{
		Venue:      datamodels.VenueBinance,
		Symbol:     "BTCUSDT",
		Timeframe:  datamodels.Timeframe1m,
		AssetClass: datamodels.AssetClassCrypto,
	}}, feed.watched)
}
