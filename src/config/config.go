package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"stratbot/src/datamodels"
	"stratbot/src/utils/general"
)

func Load() (*datamodels.StratbotConfig, error) {
	// read config path from env var
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		currentDir := general.GetCurrentDir()
		configPath = filepath.Join(currentDir, "..", "..", "config.local.yaml")
	}

	viper.SetConfigFile(configPath)
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg datamodels.StratbotConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("risk.max_notional", 1000.0)
	viper.SetDefault("risk.daily_loss_cap", 500.0)
	viper.SetDefault("risk.max_position_size", 5.0)
	viper.SetDefault("risk.max_open_orders", 5)
	viper.SetDefault("risk.max_drawdown_pct", 10.0)
	viper.SetDefault("risk.cooldown", 10*time.Minute)
	viper.SetDefault("feed.push_url", "wss://stream.binance.com:9443/stream")
	viper.SetDefault("feed.poll_interval", 30*time.Second)
	viper.SetDefault("persistence.backtest_dir", defaultBacktestDir())
	viper.SetDefault("alerts.rule_file_path", defaultAlertRulePath())
}

func defaultBacktestDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".cache", "stratbot", "backtests")
}

func defaultAlertRulePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "stratbot", "alerts.json")
}

// ResolveRiskConfig overlays STRATBOT_RISK_* environment values on the risk
// limits from the config file, field by field, so an orchestrator can tune
// limits without editing YAML.
func ResolveRiskConfig(fileCfg datamodels.RiskConfig) datamodels.RiskConfig {
	return datamodels.RiskConfig{
		MaxNotional:     envFloat("STRATBOT_RISK_MAX_NOTIONAL", fileCfg.MaxNotional),
		DailyLossCap:    envFloat("STRATBOT_RISK_DAILY_LOSS", fileCfg.DailyLossCap),
		MaxPositionSize: envFloat("STRATBOT_RISK_MAX_POSITION", fileCfg.MaxPositionSize),
		MaxOpenOrders:   envInt("STRATBOT_RISK_MAX_ORDERS", fileCfg.MaxOpenOrders),
		MaxDrawdownPct:  envFloat("STRATBOT_RISK_MAX_DRAWDOWN", fileCfg.MaxDrawdownPct),
		Cooldown:        envDuration("STRATBOT_RISK_COOLDOWN_MS", fileCfg.Cooldown),
	}
}

// RiskConfigFromEnv resolves the risk limits from STRATBOT_RISK_* environment
// values, falling back to the built-in defaults. Used when the process runs
// without a config file.
func RiskConfigFromEnv() datamodels.RiskConfig {
	return ResolveRiskConfig(datamodels.RiskConfig{
		MaxNotional:     1000,
		DailyLossCap:    500,
		MaxPositionSize: 5,
		MaxOpenOrders:   5,
		MaxDrawdownPct:  10,
		Cooldown:        10 * time.Minute,
	})
}

func envFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
