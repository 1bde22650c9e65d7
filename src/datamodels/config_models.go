package datamodels

import "time"

type StratbotConfig struct {
	DatabaseConfig    PostgresConfig    `mapstructure:"postgres"`
	RiskConfig        RiskConfig        `mapstructure:"risk"`
	AlertsConfig      AlertsConfig      `mapstructure:"alerts"`
	PersistenceConfig PersistenceConfig `mapstructure:"persistence"`
	BrokersConfig     BrokersConfig     `mapstructure:"brokers"`
	FeedConfig        FeedConfig        `mapstructure:"feed"`
}

type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Database string `mapstructure:"database"`
	Host     string `mapstructure:"host"`
	Password string `mapstructure:"password"`
	Port     int    `mapstructure:"port"`
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// RiskConfig is process-wide, loaded once at startup and immutable after.
type RiskConfig struct {
	MaxNotional     float64       `mapstructure:"max_notional"`
	DailyLossCap    float64       `mapstructure:"daily_loss_cap"`
	MaxPositionSize float64       `mapstructure:"max_position_size"`
	MaxOpenOrders   int           `mapstructure:"max_open_orders"`
	MaxDrawdownPct  float64       `mapstructure:"max_drawdown_pct"`
	Cooldown        time.Duration `mapstructure:"cooldown"`
}

type AlertsConfig struct {
	TelegramBotToken string        `mapstructure:"telegram_bot_token"`
	TelegramChatId   string        `mapstructure:"telegram_chat_id"`
	RuleFilePath     string        `mapstructure:"rule_file_path"`
	Targets          []AlertTarget `mapstructure:"targets"`
}

type PersistenceConfig struct {
	BacktestDir string `mapstructure:"backtest_dir"`
	PlotEquity  bool   `mapstructure:"plot_equity"`
}

type BinanceBrokerConfig struct {
	APIKey     string `mapstructure:"api_key"`
	APISecret  string `mapstructure:"api_secret"`
	TestnetURL string `mapstructure:"testnet_url"`
}

type AlpacaBrokerConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	BaseURL   string `mapstructure:"base_url"`
	DataURL   string `mapstructure:"data_url"`
}

type MT5BrokerConfig struct {
	BridgeURL string `mapstructure:"bridge_url"`
}

type BrokersConfig struct {
	Binance BinanceBrokerConfig `mapstructure:"binance"`
	Alpaca  AlpacaBrokerConfig  `mapstructure:"alpaca"`
	MT5     MT5BrokerConfig     `mapstructure:"mt5"`
}

type FeedConfig struct {
	PushURL      string        `mapstructure:"push_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}
