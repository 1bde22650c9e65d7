package live

import (
	"context"
	"log/slog"
	"sync"

	"stratbot/src/alerts"
	"stratbot/src/brokers"
	"stratbot/src/datamodels"
	"stratbot/src/feeds"
	"stratbot/src/risk"
	"stratbot/src/rules"
	"stratbot/src/utils/errors"
)

const (
	historyLimit   = 500
	defaultAccount = "default"
	sizingEquity   = 10_000
)

// Recorder persists executed fills. Implementations are best-effort; the
// runner logs and continues when a write fails.
type Recorder interface {
	RecordFill(ctx context.Context, intent datamodels.OrderIntent, result datamodels.ExecutionResult) error
}

// Runner is the streaming orchestrator: it consumes closed bars from the
// feed, keeps marks and alerts fresh, evaluates each registered strategy on
// its bar history, and routes resulting intents through the executor.
type Runner struct {
	feed        feeds.BarFeed
	features    FeatureProvider
	riskBook    *risk.Book
	executor    *Executor
	alertEngine *alerts.Engine
	positions   PositionStore
	recorder    Recorder

	mu        sync.Mutex
	specs     map[string]datamodels.StrategySpec
	history   map[string][]datamodels.NormalizedBar
	callbacks []func(datamodels.LiveSignal)
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewRunner(feed feeds.BarFeed, features FeatureProvider, riskBook *risk.Book, executor *Executor) *Runner {
	return &Runner{
		feed:      feed,
		features:  features,
		riskBook:  riskBook,
		executor:  executor,
		positions: NewInMemoryPositionStore(),
		specs:     map[string]datamodels.StrategySpec{},
		history:   map[string][]datamodels.NormalizedBar{},
	}
}

// WithAlertEngine wires user threshold alerts into the bar path.
func (r *Runner) WithAlertEngine(engine *alerts.Engine) *Runner {
	r.alertEngine = engine
	return r
}

// WithRecorder wires best-effort fill persistence.
func (r *Runner) WithRecorder(recorder Recorder) *Runner {
	r.recorder = recorder
	return r
}

// AddStrategy registers a strategy and watches its stream on the feed.
func (r *Runner) AddStrategy(spec datamodels.StrategySpec) {
	r.mu.Lock()
	r.specs[spec.SpecId()] = spec
	r.mu.Unlock()
	r.feed.Watch(datamodels.StreamSubscription{
		Venue:      spec.Instrument.Venue,
		Symbol:     spec.Instrument.Symbol,
		Timeframe:  spec.Timeframe,
		AssetClass: spec.Instrument.AssetClass,
	})
}

// OnSignal registers a callback invoked for every emitted signal.
func (r *Runner) OnSignal(cb func(datamodels.LiveSignal)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

func (r *Runner) Start(ctx context.Context) error {
	sub, err := r.feed.Subscribe(ctx, "live_runner")
	if err != nil {
		return errors.Wrap(err, "failed to subscribe to feed")
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-sub.DoneChan:
				slog.Info("Feed subscription closed, stopping runner")
				return
			case err := <-sub.ErrorChan:
				slog.Error("Feed error", "error", err)
			case event := <-sub.BarChan:
				r.handleBar(runCtx, event)
			}
		}
	}()
	slog.Info("Live runner started", "strategies", len(r.specs))
	return nil
}

func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

func (r *Runner) handleBar(ctx context.Context, event datamodels.BarEvent) {
	bar := event.Bar
	broker := brokers.ResolveBrokerForSymbol(bar.Symbol)

	// Keep unrealized PnL marks fresh for every account on this symbol.
	r.riskBook.RecordMarketPrice(broker, "*", bar.Symbol, bar.Close)

	if r.alertEngine != nil {
		r.alertEngine.Evaluate(ctx, bar)
	}

	key := event.Sub.Key()
	r.mu.Lock()
	history := append(r.history[key], bar)
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	r.history[key] = history
	specs := make([]datamodels.StrategySpec, 0, len(r.specs))
	for _, spec := range r.specs {
		if spec.Instrument.Symbol == bar.Symbol && spec.Timeframe == bar.Timeframe {
			specs = append(specs, spec)
		}
	}
	r.mu.Unlock()

	if len(specs) == 0 {
		return
	}
	featureSet := r.features.Compute(history)
	idx := len(history) - 1
	for _, spec := range specs {
		r.evaluateStrategy(ctx, spec, broker, bar, featureSet, idx)
	}
}

func (r *Runner) evaluateStrategy(ctx context.Context, spec datamodels.StrategySpec, broker datamodels.Broker, bar datamodels.NormalizedBar, featureSet datamodels.FeatureSet, idx int) {
	entryOk := rules.Evaluate(spec.Rules.Entries, featureSet, idx)
	exitOk := rules.Evaluate(spec.Rules.Exits, featureSet, idx)
	filterOk := rules.EvaluateFilters(spec.Rules.Filters, featureSet, idx)

	side, _, holding := r.positions.Get(spec.SpecId())

	if !holding && entryOk && filterOk && !exitOk {
		quantity := orderQuantity(spec.Risk, bar.Close, featureSet, idx)
		result := r.executor.Execute(ctx, r.buildIntent(spec, broker, bar, datamodels.OrderSideBuy, quantity))
		if result.Status == datamodels.OrderStatusError || result.Status == datamodels.OrderStatusBlocked {
			slog.Warn("Entry not executed", "spec", spec.SpecId(), "warnings", result.Warnings)
			return
		}
		r.positions.Set(spec.SpecId(), datamodels.PositionSideLong, bar.Close)
		r.recordFill(ctx, spec, broker, bar, datamodels.OrderSideBuy, quantity, result)
		r.emit(datamodels.LiveSignal{
			SpecId:      spec.SpecId(),
			DataVersion: "live",
			Signal:      datamodels.SignalEntry,
			Side:        datamodels.PositionSideLong,
			Price:       bar.Close,
			Size:        quantity,
			Timestamp:   bar.Ts,
		})
		return
	}

	if holding && exitOk {
		quantity := r.riskBook.PositionSize(broker, defaultAccount, bar.Symbol)
		if quantity <= 0 {
			quantity = orderQuantity(spec.Risk, bar.Close, featureSet, idx)
		}
		result := r.executor.Execute(ctx, r.buildIntent(spec, broker, bar, datamodels.OrderSideSell, quantity))
		if result.Status == datamodels.OrderStatusError || result.Status == datamodels.OrderStatusBlocked {
			slog.Warn("Exit not executed", "spec", spec.SpecId(), "warnings", result.Warnings)
			return
		}
		r.positions.Clear(spec.SpecId())
		r.recordFill(ctx, spec, broker, bar, datamodels.OrderSideSell, quantity, result)
		r.emit(datamodels.LiveSignal{
			SpecId:      spec.SpecId(),
			DataVersion: "live",
			Signal:      datamodels.SignalExit,
			Side:        side,
			Price:       bar.Close,
			Size:        quantity,
			Timestamp:   bar.Ts,
		})
	}
}

func (r *Runner) buildIntent(spec datamodels.StrategySpec, broker datamodels.Broker, bar datamodels.NormalizedBar, side datamodels.OrderSide, quantity float64) datamodels.OrderIntent {
	return datamodels.OrderIntent{
		Broker:      broker,
		AccountRef:  defaultAccount,
		OrderType:   datamodels.OrderTypeMarket,
		Side:        side,
		Symbol:      bar.Symbol,
		Quantity:    quantity,
		Price:       bar.Close,
		Paper:       true,
		RiskChecked: true,
	}
}

func (r *Runner) recordFill(ctx context.Context, spec datamodels.StrategySpec, broker datamodels.Broker, bar datamodels.NormalizedBar, side datamodels.OrderSide, quantity float64, result datamodels.ExecutionResult) {
	if r.recorder == nil {
		return
	}
	intent := r.buildIntent(spec, broker, bar, side, quantity)
	if err := r.recorder.RecordFill(ctx, intent, result); err != nil {
		slog.Warn("Failed to record fill", "spec", spec.SpecId(), "error", err)
	}
}

func (r *Runner) emit(signal datamodels.LiveSignal) {
	r.mu.Lock()
	callbacks := make([]func(datamodels.LiveSignal), len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.mu.Unlock()
	for _, cb := range callbacks {
		cb(signal)
	}
}

// orderQuantity converts the spec's sizing mode to units at the given price.
// Live sizing uses a fixed reference equity; percent modes scale off it.
func orderQuantity(risk datamodels.RiskSettings, price float64, featureSet datamodels.FeatureSet, idx int) float64 {
	if price <= 0 {
		return 0
	}
	switch risk.PositionSizing {
	case datamodels.SizingFixedDollar:
		return risk.SizingValue / price
	case datamodels.SizingPercentEquity:
		return sizingEquity * (risk.SizingValue / 100) / price
	case datamodels.SizingAtr:
		atrSeries := featureSet["atr"]
		if idx < len(atrSeries) {
			if atr, ok := atrSeries[idx].Values["atr"]; ok && atr > 0 {
				return sizingEquity * (risk.SizingValue / 100) / atr
			}
		}
		return sizingEquity * 0.01 / price
	default:
		return sizingEquity * 0.01 / price
	}
}
