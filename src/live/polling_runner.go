package live

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"stratbot/src/datamodels"
	"stratbot/src/ingest"
	"stratbot/src/rules"
)

const (
	defaultPollInterval = 30 * time.Second
	maxBackoff          = 5 * time.Minute
	staleDataAge        = 2 * time.Minute
	pollFetchWindow     = time.Hour
)

// FeatureProvider computes feature frames for a bar series.
type FeatureProvider interface {
	Compute(bars []datamodels.NormalizedBar) datamodels.FeatureSet
}

// PositionStore remembers one open position per strategy across runner
// restarts.
type PositionStore interface {
	Get(specId string) (datamodels.PositionSide, float64, bool)
	Set(specId string, side datamodels.PositionSide, entry float64)
	Clear(specId string)
}

type memPosition struct {
	side  datamodels.PositionSide
	entry float64
}

type InMemoryPositionStore struct {
	mu        sync.Mutex
	positions map[string]memPosition
}

func NewInMemoryPositionStore() *InMemoryPositionStore {
	return &InMemoryPositionStore{positions: map[string]memPosition{}}
}

func (s *InMemoryPositionStore) Get(specId string) (datamodels.PositionSide, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[specId]
	return p.side, p.entry, ok
}

func (s *InMemoryPositionStore) Set(specId string, side datamodels.PositionSide, entry float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[specId] = memPosition{side: side, entry: entry}
}

func (s *InMemoryPositionStore) Clear(specId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, specId)
}

// PollingRunner periodically pulls the last hour of bars for one strategy
// and emits entry/exit signals when its rules match on the latest bar. Fetch
// failures double the poll delay up to a cap; health flags on each signal
// report the last error and data staleness.
type PollingRunner struct {
	ingestor  ingest.Ingestor
	features  FeatureProvider
	positions PositionStore
	now       func() time.Time

	mu          sync.Mutex
	lastError   string
	lastFetchAt time.Time
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewPollingRunner(ingestor ingest.Ingestor, features FeatureProvider, positions PositionStore) *PollingRunner {
	if positions == nil {
		positions = NewInMemoryPositionStore()
	}
	return &PollingRunner{
		ingestor:  ingestor,
		features:  features,
		positions: positions,
		now:       time.Now,
	}
}

// WithClock overrides the time source. Used in tests.
func (r *PollingRunner) WithClock(now func() time.Time) *PollingRunner {
	r.now = now
	return r
}

func (r *PollingRunner) Start(ctx context.Context, spec datamodels.StrategySpec, interval time.Duration, onSignal func(datamodels.LiveSignal)) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			r.RunOnce(runCtx, spec, r.now(), onSignal)
			delay := interval
			r.mu.Lock()
			if r.lastError != "" {
				delay = interval * 2
				if delay > maxBackoff {
					delay = maxBackoff
				}
				interval = delay
			}
			r.mu.Unlock()
			select {
			case <-runCtx.Done():
				return
			case <-time.After(delay):
			}
		}
	}()
}

func (r *PollingRunner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// RunOnce fetches the recent window and evaluates the strategy's rules on
// the latest bar.
func (r *PollingRunner) RunOnce(ctx context.Context, spec datamodels.StrategySpec, now time.Time, onSignal func(datamodels.LiveSignal)) {
	result := r.ingestor.FetchBars(ctx, datamodels.FetchBarsRequest{
		Symbol:    spec.Instrument.Symbol,
		Venue:     spec.Instrument.Venue,
		Timeframe: spec.Timeframe,
		Start:     now.Add(-pollFetchWindow),
		End:       now,
		Limit:     200,
	})
	if len(result.Errors) > 0 {
		r.setLastError(strings.Join(result.Errors, "; "))
		slog.Warn("Live poll fetch failed", "spec", spec.SpecId(), "errors", result.Errors)
		return
	}
	bars := ingest.NormalizeSeries(result.Bars)
	if len(bars) == 0 {
		r.setLastError("no bars")
		return
	}
	r.mu.Lock()
	r.lastError = ""
	r.lastFetchAt = r.now()
	r.mu.Unlock()

	featureSet := r.features.Compute(bars)
	idx := len(bars) - 1
	entryOk := rules.Evaluate(spec.Rules.Entries, featureSet, idx)
	exitOk := rules.Evaluate(spec.Rules.Exits, featureSet, idx)
	filterOk := rules.EvaluateFilters(spec.Rules.Filters, featureSet, idx)

	bar := bars[idx]
	side, _, holding := r.positions.Get(spec.SpecId())

	if !holding && entryOk && filterOk && !exitOk {
		onSignal(datamodels.LiveSignal{
			SpecId:      spec.SpecId(),
			DataVersion: "live",
			Signal:      datamodels.SignalEntry,
			Side:        datamodels.PositionSideLong,
			Price:       bar.Close,
			Timestamp:   bar.Ts,
			HealthFlags: r.healthFlags(),
		})
		r.positions.Set(spec.SpecId(), datamodels.PositionSideLong, bar.Close)
		return
	}
	if holding && exitOk {
		onSignal(datamodels.LiveSignal{
			SpecId:      spec.SpecId(),
			DataVersion: "live",
			Signal:      datamodels.SignalExit,
			Side:        side,
			Price:       bar.Close,
			Timestamp:   bar.Ts,
			HealthFlags: r.healthFlags(),
		})
		r.positions.Clear(spec.SpecId())
	}
}

func (r *PollingRunner) setLastError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastError = msg
}

func (r *PollingRunner) healthFlags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	flags := []string{}
	if r.lastError != "" {
		flags = append(flags, "error:"+r.lastError)
	}
	if !r.lastFetchAt.IsZero() && r.now().Sub(r.lastFetchAt) > staleDataAge {
		flags = append(flags, "stale-data")
	}
	return flags
}
