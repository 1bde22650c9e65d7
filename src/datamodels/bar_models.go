package datamodels

import (
	"fmt"
	"time"
)

type AssetClass string

const (
	AssetClassFx      AssetClass = "fx"
	AssetClassMetal   AssetClass = "metal"
	AssetClassCrypto  AssetClass = "crypto"
	AssetClassEquity  AssetClass = "equity"
	AssetClassFutures AssetClass = "futures"
	AssetClassCfd     AssetClass = "cfd"
)

type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe3m  Timeframe = "3m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe2h  Timeframe = "2h"
	Timeframe4h  Timeframe = "4h"
	Timeframe6h  Timeframe = "6h"
	Timeframe12h Timeframe = "12h"
	Timeframe1d  Timeframe = "1d"
)

type Venue string

const (
	VenueBinance Venue = "binance"
	VenueAlpaca  Venue = "alpaca"
	VenueMT5     Venue = "mt5"
)

// NormalizedBar is one closed OHLCV candle, normalized across venues.
// Bars are immutable once produced; sequences are strictly ordered by Ts
// and de-duplicated by the quality checker.
type NormalizedBar struct {
	Ts         time.Time  `json:"ts"`
	Open       float64    `json:"open"`
	High       float64    `json:"high"`
	Low        float64    `json:"low"`
	Close      float64    `json:"close"`
	Volume     float64    `json:"volume"`
	Venue      Venue      `json:"venue"`
	Symbol     string     `json:"symbol"`
	AssetClass AssetClass `json:"assetClass"`
	Timeframe  Timeframe  `json:"timeframe,omitempty"`
}

// StreamSubscription identifies one live bar stream. Uniquely keyed by
// venue:symbol:timeframe; survives feed reconnects.
type StreamSubscription struct {
	Venue      Venue
	Symbol     string
	Timeframe  Timeframe
	AssetClass AssetClass
}

func (s StreamSubscription) Key() string {
	return fmt.Sprintf("%s:%s:%s", s.Venue, s.Symbol, s.Timeframe)
}

type BarEvent struct {
	Sub      StreamSubscription
	Bar      NormalizedBar
	SourceTs time.Time
}

// BarSubscription is the channel bundle handed to each feed subscriber.
type BarSubscription struct {
	SubscriptionName string
	SubscriptionId   string
	BarChan          chan BarEvent
	DoneChan         chan struct{}
	ErrorChan        chan error
}
