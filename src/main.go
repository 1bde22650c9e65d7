package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"stratbot/src/alerts"
	"stratbot/src/backtest"
	"stratbot/src/brokers"
	"stratbot/src/config"
	"stratbot/src/database"
	"stratbot/src/datamodels"
	"stratbot/src/features"
	"stratbot/src/feeds"
	"stratbot/src/ingest"
	"stratbot/src/live"
	"stratbot/src/metrics"
	"stratbot/src/persistence"
	"stratbot/src/risk"
	"stratbot/src/server"
)

func main() {
	initializeLogging()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stratbotConfig, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Ramping up Stratbot")

	var db database.StratbotDatabase
	if stratbotConfig.DatabaseConfig.Enabled {
		db, err = database.NewDBConnection(stratbotConfig.DatabaseConfig)
		if err != nil {
			slog.Error("Failed to connect to database, continuing without persistence", "error", err)
			db = nil
		}
	}

	specs, err := loadStrategies(os.Getenv("STRATEGIES_PATH"))
	if err != nil {
		slog.Error("Failed to load strategies", "error", err)
		os.Exit(1)
	}

	if strings.EqualFold(os.Getenv("STRATBOT_MODE"), "backtest") {
		runBacktests(ctx, stratbotConfig, db, specs)
		return
	}

	riskBook := risk.NewBook(config.ResolveRiskConfig(stratbotConfig.RiskConfig))

	registry := brokers.NewRegistry()
	registry.Register(brokers.NewBinancePaperAdapter(stratbotConfig.BrokersConfig.Binance))
	registry.Register(brokers.NewAlpacaAdapter(stratbotConfig.BrokersConfig.Alpaca))
	registry.Register(brokers.NewMT5Adapter(stratbotConfig.BrokersConfig.MT5))
	registry.Register(brokers.NewPaperAdapter())

	liveEnabled := strings.EqualFold(os.Getenv("LIVE_TRADING"), "true")
	executor := live.NewExecutor(riskBook, registry, liveEnabled)

	ruleStore := persistence.NewRuleStore(stratbotConfig.AlertsConfig.RuleFilePath)
	alertEngine := alerts.NewEngine(ruleStore, alerts.NewDispatcher(stratbotConfig.AlertsConfig)).
		WithDefaultTargets(stratbotConfig.AlertsConfig.Targets)
	if db != nil {
		alertEngine.WithFiredHook(func(ctx context.Context, rule datamodels.ThresholdRule, bar datamodels.NormalizedBar) {
			if err := db.RecordAlertEvent(ctx, rule, bar); err != nil {
				slog.Warn("Failed to record alert event", "rule", rule.Id, "error", err)
			}
		})
	}

	feed := feeds.NewStreamingFeed(stratbotConfig.FeedConfig).
		WithPollFetcher(datamodels.VenueAlpaca, ingest.NewAlpacaIngestor(stratbotConfig.BrokersConfig.Alpaca)).
		WithPollFetcher(datamodels.VenueMT5, ingest.NewMT5Ingestor(stratbotConfig.BrokersConfig.MT5))

	runner := live.NewRunner(feed, features.NewProvider(), riskBook, executor).
		WithAlertEngine(alertEngine)
	if db != nil {
		runner.WithRecorder(db)
	}

	for _, spec := range specs {
		runner.AddStrategy(spec)
		slog.Info("Strategy registered",
			"spec", spec.SpecId(),
			"symbol", spec.Instrument.Symbol,
			"timeframe", spec.Timeframe)
	}

	// Standing alert rules need their streams watched too, so a process
	// started with alerts but no strategies still receives bars.
	watchRuleStream := func(rule datamodels.ThresholdRule) {
		feed.Watch(datamodels.StreamSubscription{
			Venue:     brokers.ResolveVenueForSymbol(rule.Symbol),
			Symbol:    rule.Symbol,
			Timeframe: rule.Timeframe,
		})
	}
	for _, rule := range alertEngine.List() {
		watchRuleStream(rule)
	}

	srv := server.NewServer(":8080").
		WithRiskBook(riskBook).
		WithAlertEngine(alertEngine).
		WithRuleWatcher(watchRuleStream)
	if db != nil {
		srv.WithFillSource(db)
	}
	runner.OnSignal(srv.BroadcastSignal)
	go func() {
		if err := srv.Start(ctx); err != nil {
			slog.Error("Server failed", "error", err)
		}
	}()

	if err := feed.Start(ctx); err != nil {
		slog.Error("Failed to start feed", "error", err)
		os.Exit(1)
	}
	if err := runner.Start(ctx); err != nil {
		slog.Error("Failed to start runner", "error", err)
		os.Exit(1)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	runner.Stop()
	if err := feed.Stop(); err != nil {
		slog.Error("Failed to stop feed", "error", err)
	}
}

// runBacktests fetches recent history for each strategy, runs the rule-based
// backtester, and saves artifacts (JSON refs, optional PNG, optional DB row).
func runBacktests(ctx context.Context, cfg *datamodels.StratbotConfig, db database.StratbotDatabase, specs []datamodels.StrategySpec) {
	if len(specs) == 0 {
		slog.Error("Backtest mode needs at least one strategy (STRATEGIES_PATH)")
		os.Exit(1)
	}

	ingestors := ingest.NewRegistry()
	ingestors.Register(datamodels.VenueBinance, ingest.NewBinanceIngestor())
	ingestors.Register(datamodels.VenueAlpaca, ingest.NewAlpacaIngestor(cfg.BrokersConfig.Alpaca))
	ingestors.Register(datamodels.VenueMT5, ingest.NewMT5Ingestor(cfg.BrokersConfig.MT5))

	filePersistence := persistence.NewFilePersistence(cfg.PersistenceConfig.BacktestDir)
	backtester := backtest.NewRuleBasedBacktester(features.NewProvider(), filePersistence)

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -30)

	for _, spec := range specs {
		ingestor, ok := ingestors.Get(spec.Instrument.Venue)
		if !ok {
			slog.Error("No ingestor for venue", "spec", spec.SpecId(), "venue", spec.Instrument.Venue)
			continue
		}
		fetched := ingestor.FetchBars(ctx, datamodels.FetchBarsRequest{
			Symbol:    spec.Instrument.Symbol,
			Venue:     spec.Instrument.Venue,
			Timeframe: spec.Timeframe,
			Start:     start,
			End:       end,
			Limit:     1000,
		})
		if len(fetched.Errors) > 0 {
			slog.Error("Failed to fetch bars", "spec", spec.SpecId(), "errors", fetched.Errors)
			continue
		}
		bars := ingest.NormalizeSeries(fetched.Bars)

		result, err := backtester.Run(datamodels.BacktestRequest{
			Spec:  spec,
			Start: start,
			End:   end,
			Bars:  bars,
		})
		if err != nil {
			slog.Error("Backtest failed", "spec", spec.SpecId(), "error", err)
			continue
		}
		slog.Info("Backtest complete",
			"spec", spec.SpecId(),
			"bars", len(bars),
			"trades", result.Metrics.Trades,
			"netPnl", result.Metrics.NetPnl,
			"winRate", result.Metrics.WinRate,
			"maxDrawdown", result.Metrics.MaxDrawdown,
			"equityRef", result.EquityCurveRef,
			"tradesRef", result.TradesRef)

		if cfg.PersistenceConfig.PlotEquity {
			equity, _, loadErr := filePersistence.LoadBacktest(result.EquityCurveRef, result.TradesRef)
			if loadErr != nil {
				slog.Warn("Failed to load equity for plotting", "spec", spec.SpecId(), "error", loadErr)
			} else if plotErr := metrics.NewEquityPlotter().
				WithTitle(spec.SpecId()).
				WithFileOutput(strings.TrimSuffix(result.EquityCurveRef, ".json") + ".png").
				WithEquity(equity).
				Plot(); plotErr != nil {
				slog.Warn("Failed to plot equity", "spec", spec.SpecId(), "error", plotErr)
			}
		}

		if db != nil {
			record := datamodels.BacktestRunRecord{
				StrategyId:   spec.SpecId(),
				Symbol:       spec.Instrument.Symbol,
				Timeframe:    spec.Timeframe,
				DataVersion:  "live",
				Bars:         len(bars),
				Trades:       result.Metrics.Trades,
				TotalReturn:  result.Metrics.NetPnl,
				MaxDrawdown:  result.Metrics.MaxDrawdown,
				WinRate:      result.Metrics.WinRate,
				ProfitFactor: result.Metrics.ProfitFactor,
				EquityRef:    result.EquityCurveRef,
				TradesRef:    result.TradesRef,
				StartedAt:    start,
				FinishedAt:   time.Now().UTC(),
			}
			if err := db.WriteBacktestRun(ctx, record); err != nil {
				slog.Warn("Failed to record backtest run", "spec", spec.SpecId(), "error", err)
			}
		}
	}
}

func loadStrategies(path string) ([]datamodels.StrategySpec, error) {
	if path == "" {
		slog.Warn("STRATEGIES_PATH not set, starting with no strategies")
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var specs []datamodels.StrategySpec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return nil, err
	}
	return specs, nil
}

func initializeLogging() {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}
	switch strings.ToLower(logLevel) {
	case "debug":
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout,
			&slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true})))
	case "info":
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout,
			&slog.HandlerOptions{Level: slog.LevelInfo})))
	default:
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout,
			&slog.HandlerOptions{Level: slog.LevelInfo})))
	}
}
