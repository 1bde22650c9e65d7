package datamodels

import "time"

type Broker string

const (
	BrokerBinance Broker = "binance"
	BrokerAlpaca  Broker = "alpaca"
	BrokerMT5     Broker = "mt5"
	BrokerPaper   Broker = "paper"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStop      OrderType = "stop"
	OrderTypeStopLimit OrderType = "stopLimit"
)

type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "gtc"
	TimeInForceFOK TimeInForce = "fok"
	TimeInForceIOC TimeInForce = "ioc"
)

// OrderIntent is a fully-specified order about to be risk-checked and routed
// to a broker adapter.
type OrderIntent struct {
	Broker        Broker      `json:"broker"`
	AccountRef    string      `json:"accountRef"`
	OrderType     OrderType   `json:"orderType"`
	Side          OrderSide   `json:"side"`
	Symbol        string      `json:"symbol"`
	Quantity      float64     `json:"quantity"`
	Price         float64     `json:"price,omitempty"`
	TimeInForce   TimeInForce `json:"timeInForce,omitempty"`
	ClientOrderId string      `json:"clientOrderId,omitempty"`
	Paper         bool        `json:"paper,omitempty"`
	RiskChecked   bool        `json:"riskChecked"`
}

func (o OrderIntent) AccountKey() string {
	return string(o.Broker) + ":" + o.AccountRef
}

func (o OrderIntent) PositionKey() string {
	return string(o.Broker) + ":" + o.AccountRef + ":" + o.Symbol
}

type OrderStatus string

const (
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusPaper     OrderStatus = "paper"
	OrderStatusError     OrderStatus = "error"
	OrderStatusBlocked   OrderStatus = "blocked"
)

// ExecutionResult is what broker adapters return. Ordinary provider failures
// (missing credentials, rejected orders) come back as OrderStatusError plus a
// warning, never as a Go error.
type ExecutionResult struct {
	OrderId  string      `json:"orderId"`
	Status   OrderStatus `json:"status"`
	Warnings []string    `json:"warnings,omitempty"`
}

// PositionSnapshot reports one open position with mark-to-market PnL.
type PositionSnapshot struct {
	Broker     Broker    `json:"broker"`
	Account    string    `json:"account"`
	Symbol     string    `json:"symbol"`
	Size       float64   `json:"size"`
	AvgEntry   float64   `json:"avgEntry"`
	LastPrice  float64   `json:"lastPrice"`
	Unrealized float64   `json:"unrealized"`
	Realized   float64   `json:"realized"`
	AsOf       time.Time `json:"asOf"`
}
