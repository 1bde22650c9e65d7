//go:build unit

package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stratbot/src/datamodels"
)

func testConfig() datamodels.RiskConfig {
	return datamodels.RiskConfig{
		MaxNotional:     1000,
		DailyLossCap:    500,
		MaxPositionSize: 5,
		MaxOpenOrders:   5,
		MaxDrawdownPct:  10,
		Cooldown:        10 * time.Minute,
	}
}

func buyIntent(qty float64) datamodels.OrderIntent {
	return datamodels.OrderIntent{
		Broker:     datamodels.BrokerBinance,
		AccountRef: "acct",
		Side:       datamodels.OrderSideBuy,
		Symbol:     "BTCUSDT",
		Quantity:   qty,
	}
}

func sellIntent(qty float64) datamodels.OrderIntent {
	i := buyIntent(qty)
	i.Side = datamodels.OrderSideSell
	return i
}

func TestCheckRejectsNotional(t *testing.T) {
	book := NewBook(testConfig())
	res := book.Check(buyIntent(2), 600, nil)
	assert.False(t, res.Ok)
	assert.Contains(t, res.Reason, "notional")
}

func TestCheckRejectsPositionSize(t *testing.T) {
	book := NewBook(testConfig())
	book.RecordFill(buyIntent(4), 100)
	res := book.Check(buyIntent(2), 100, nil)
	assert.False(t, res.Ok)
	assert.Contains(t, res.Reason, "position size")
}

func TestCheckAndReserveCountsAgainstOpenOrders(t *testing.T) {
	cfg := testConfig()
	cfg.MaxOpenOrders = 2
	book := NewBook(cfg)
	assert.True(t, book.CheckAndReserve(buyIntent(1), 10, nil).Ok)
	assert.True(t, book.CheckAndReserve(buyIntent(1), 10, nil).Ok)
	res := book.CheckAndReserve(buyIntent(1), 10, nil)
	assert.False(t, res.Ok)
	assert.Contains(t, res.Reason, "open orders")

	book.ClearOpenOrder(buyIntent(1))
	assert.True(t, book.CheckAndReserve(buyIntent(1), 10, nil).Ok)
}

func TestRecordFillAveragesAndRealizes(t *testing.T) {
	book := NewBook(testConfig())
	// 10 @ 100 then 10 @ 110 -> avg 105, size 20.
	book.RecordFill(buyIntent(10), 100)
	book.RecordFill(buyIntent(10), 110)
	assert.InDelta(t, 20.0, book.PositionSize(datamodels.BrokerBinance, "acct", "BTCUSDT"), 1e-9)

	// Sell 15 @ 120 -> realized 15 * (120-105) = 225, size 5.
	book.RecordFill(sellIntent(15), 120)
	assert.InDelta(t, 5.0, book.PositionSize(datamodels.BrokerBinance, "acct", "BTCUSDT"), 1e-9)

	snaps := book.Snapshot()
	assert.Len(t, snaps, 1)
	assert.InDelta(t, 225.0, snaps[0].Realized, 1e-9)
	assert.InDelta(t, 105.0, snaps[0].AvgEntry, 1e-9)
	assert.InDelta(t, 120.0, snaps[0].LastPrice, 1e-9)
	assert.InDelta(t, 75.0, snaps[0].Unrealized, 1e-9) // (120-105)*5
}

func TestRecordFillSellClampsAtFlat(t *testing.T) {
	book := NewBook(testConfig())
	book.RecordFill(buyIntent(3), 100)
	book.RecordFill(sellIntent(10), 90)
	assert.Equal(t, 0.0, book.PositionSize(datamodels.BrokerBinance, "acct", "BTCUSDT"))
	// Only the held 3 units close: realized = 3 * (90-100) = -30.
	assert.Empty(t, book.Snapshot())
}

func TestDailyLossCapBlocksAfterBigLoss(t *testing.T) {
	book := NewBook(testConfig())
	book.RecordPnl(buyIntent(1), -600)
	res := book.Check(buyIntent(1), 10, nil)
	assert.False(t, res.Ok)
	assert.Contains(t, res.Reason, "daily loss cap")
}

func TestDailyLossResetsAtUTCDay(t *testing.T) {
	now := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	book := NewBook(testConfig()).WithClock(func() time.Time { return now })
	book.RecordPnl(buyIntent(1), -600)
	assert.False(t, book.Check(buyIntent(1), 10, nil).Ok)

	// Next UTC day: loss book resets, but the cooldown still applies until it
	// elapses.
	now = time.Date(2026, 1, 2, 23, 0, 0, 0, time.UTC)
	res := book.Check(buyIntent(1), 10, nil)
	assert.True(t, res.Ok)
}

func TestCooldownAfterLoss(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	book := NewBook(testConfig()).WithClock(func() time.Time { return now })
	book.RecordPnl(buyIntent(1), -10)

	res := book.Check(buyIntent(1), 10, nil)
	assert.False(t, res.Ok)
	assert.Contains(t, res.Reason, "cooldown")

	now = now.Add(11 * time.Minute)
	assert.True(t, book.Check(buyIntent(1), 10, nil).Ok)
}

func TestDrawdownGateNeedsEquity(t *testing.T) {
	book := NewBook(testConfig())
	eq := 1000.0
	assert.True(t, book.Check(buyIntent(1), 10, &eq).Ok)

	// Equity falls 20% from the recorded peak.
	eq = 800.0
	res := book.Check(buyIntent(1), 10, &eq)
	assert.False(t, res.Ok)
	assert.Contains(t, res.Reason, "drawdown")

	// Without equity the gate is skipped entirely.
	assert.True(t, book.Check(buyIntent(1), 10, nil).Ok)
}

func TestRecordMarketPriceFansOut(t *testing.T) {
	book := NewBook(testConfig())
	a := buyIntent(1)
	b := buyIntent(1)
	b.AccountRef = "other"
	book.RecordFill(a, 100)
	book.RecordFill(b, 100)

	book.RecordMarketPrice(datamodels.BrokerBinance, "*", "BTCUSDT", 150)
	for _, s := range book.Snapshot() {
		assert.InDelta(t, 150.0, s.LastPrice, 1e-9)
		assert.InDelta(t, 50.0, s.Unrealized, 1e-9)
	}
}
