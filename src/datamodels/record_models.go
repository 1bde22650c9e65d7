package datamodels

import "time"

type BaseModel struct {
	Id        int64 `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BacktestRunRecord summarizes one completed backtest run. The full equity
// curve and trade list live in the file store; EquityRef/TradesRef point at
// them.
type BacktestRunRecord struct {
	BaseModel
	StrategyId   string    `gorm:"not null;index"`
	Symbol       string    `gorm:"not null;index"`
	Timeframe    Timeframe `gorm:"not null"`
	DataVersion  string    `gorm:"not null"`
	Bars         int       `gorm:"not null"`
	Trades       int       `gorm:"not null"`
	TotalReturn  float64   `gorm:"not null"`
	MaxDrawdown  float64   `gorm:"not null"`
	WinRate      float64   `gorm:"not null"`
	ProfitFactor float64   `gorm:"not null"`
	EquityRef    string
	TradesRef    string
	StartedAt    time.Time `gorm:"not null;index"`
	FinishedAt   time.Time `gorm:"not null"`
}

// FillRecord is one executed order as reported by a broker adapter.
type FillRecord struct {
	BaseModel
	Broker     Broker      `gorm:"not null;index"`
	AccountRef string      `gorm:"not null;index"`
	Symbol     string      `gorm:"not null;index"`
	Side       OrderSide   `gorm:"not null"`
	OrderType  OrderType   `gorm:"not null"`
	Quantity   float64     `gorm:"not null"`
	Price      float64     `gorm:"not null"`
	OrderId    string      `gorm:"not null"`
	Status     OrderStatus `gorm:"not null;index"`
	Paper      bool        `gorm:"not null"`
	Timestamp  time.Time   `gorm:"not null;index"`
}

// AlertEventRecord is one fired threshold alert.
type AlertEventRecord struct {
	BaseModel
	RuleId     string    `gorm:"not null;index"`
	Symbol     string    `gorm:"not null;index"`
	Timeframe  Timeframe `gorm:"not null"`
	Comparator string    `gorm:"not null"`
	Value      float64   `gorm:"not null"`
	BarClose   float64   `gorm:"not null"`
	Timestamp  time.Time `gorm:"not null;index"`
}
