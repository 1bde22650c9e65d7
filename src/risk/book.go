package risk

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"stratbot/src/datamodels"
)

// CheckResult is a risk verdict. A rejected order carries a human-readable
// reason that ends up in logs and alert messages.
type CheckResult struct {
	Ok     bool
	Reason string
}

type dailyLoss struct {
	date string
	loss float64
}

// Book tracks per-account and per-position risk state: daily realized loss,
// open order counts, position sizes and average entries, marks, and loss
// cooldowns. All state is keyed by "broker:account" or
// "broker:account:symbol" and guarded by a single mutex so a check plus
// reservation is atomic.
type Book struct {
	cfg datamodels.RiskConfig
	now func() time.Time

	mu           sync.Mutex
	dailyLosses  map[string]dailyLoss
	openOrders   map[string]int
	positionSize map[string]float64
	avgEntry     map[string]float64
	lastPrice    map[string]float64
	realizedPnl  map[string]float64
	lastLossAt   map[string]time.Time
	peakEquity   map[string]float64
}

func NewBook(cfg datamodels.RiskConfig) *Book {
	return &Book{
		cfg:          cfg,
		now:          time.Now,
		dailyLosses:  map[string]dailyLoss{},
		openOrders:   map[string]int{},
		positionSize: map[string]float64{},
		avgEntry:     map[string]float64{},
		lastPrice:    map[string]float64{},
		realizedPnl:  map[string]float64{},
		lastLossAt:   map[string]time.Time{},
		peakEquity:   map[string]float64{},
	}
}

// WithClock overrides the time source. Used in tests.
func (b *Book) WithClock(now func() time.Time) *Book {
	b.now = now
	return b
}

// Check runs every risk gate against the intent without reserving anything.
// Pass a non-nil currentEquity to enable the drawdown gate.
func (b *Book) Check(intent datamodels.OrderIntent, estPrice float64, currentEquity *float64) CheckResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.checkLocked(intent, estPrice, currentEquity)
}

// CheckAndReserve atomically runs all gates and, on pass, counts the order as
// open so concurrent intents cannot both slip under the open-order cap.
func (b *Book) CheckAndReserve(intent datamodels.OrderIntent, estPrice float64, currentEquity *float64) CheckResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	res := b.checkLocked(intent, estPrice, currentEquity)
	if res.Ok {
		b.openOrders[intent.AccountKey()]++
	}
	return res
}

func (b *Book) checkLocked(intent datamodels.OrderIntent, estPrice float64, currentEquity *float64) CheckResult {
	notional := estPrice * intent.Quantity
	if notional > b.cfg.MaxNotional {
		return CheckResult{Reason: fmt.Sprintf("notional %.2f exceeds max %.2f", notional, b.cfg.MaxNotional)}
	}

	key := intent.AccountKey()
	today := b.now().UTC().Format("2006-01-02")
	rec, ok := b.dailyLosses[key]
	if !ok || rec.date != today {
		rec = dailyLoss{date: today}
		b.dailyLosses[key] = rec
	}
	if rec.loss < -b.cfg.DailyLossCap {
		return CheckResult{Reason: fmt.Sprintf("daily loss cap exceeded (%.2f < -%.2f)", rec.loss, b.cfg.DailyLossCap)}
	}

	posSize := b.positionSize[intent.PositionKey()] + intent.Quantity
	if posSize > b.cfg.MaxPositionSize {
		return CheckResult{Reason: fmt.Sprintf("position size %g > max %g", posSize, b.cfg.MaxPositionSize)}
	}

	if open := b.openOrders[key]; open >= b.cfg.MaxOpenOrders {
		return CheckResult{Reason: fmt.Sprintf("max open orders reached (%d/%d)", open, b.cfg.MaxOpenOrders)}
	}

	if currentEquity != nil && *currentEquity > 0 {
		eq := *currentEquity
		peak := math.Max(b.peakEquity[key], eq)
		b.peakEquity[key] = peak
		dd := (peak - eq) / peak * 100
		if dd > b.cfg.MaxDrawdownPct {
			return CheckResult{Reason: fmt.Sprintf("drawdown %.2f%% exceeds max %.2f%%", dd, b.cfg.MaxDrawdownPct)}
		}
	}

	if lastLoss, ok := b.lastLossAt[key]; ok {
		since := b.now().Sub(lastLoss)
		if since < b.cfg.Cooldown {
			left := (b.cfg.Cooldown - since).Round(time.Second)
			return CheckResult{Reason: fmt.Sprintf("cooldown active (%s left)", left)}
		}
	}

	return CheckResult{Ok: true}
}

// RecordOpenOrder counts a submitted order against the account's cap.
func (b *Book) RecordOpenOrder(intent datamodels.OrderIntent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openOrders[intent.AccountKey()]++
}

// ClearOpenOrder releases one reserved order slot, e.g. after a rejected
// submission.
func (b *Book) ClearOpenOrder(intent datamodels.OrderIntent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := intent.AccountKey()
	if b.openOrders[key] > 0 {
		b.openOrders[key]--
	}
}

// RecordFill applies an executed order to position state. Buys average into
// the position; sells close against the average entry and realize PnL, which
// feeds the daily loss book and, on a loss, starts the cooldown. The open
// order slot is released.
func (b *Book) RecordFill(intent datamodels.OrderIntent, fillPrice float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := intent.AccountKey()
	if b.openOrders[key] > 0 {
		b.openOrders[key]--
	}

	posKey := intent.PositionKey()
	current := b.positionSize[posKey]
	avg, ok := b.avgEntry[posKey]
	if !ok {
		avg = fillPrice
	}

	newSize := current
	newAvg := avg
	realized := 0.0
	if intent.Side == datamodels.OrderSideBuy {
		newSize = current + intent.Quantity
		if newSize > 0 {
			newAvg = (avg*current + fillPrice*intent.Quantity) / newSize
		} else {
			newAvg = fillPrice
		}
	} else {
		closeQty := math.Min(current, intent.Quantity)
		realized = closeQty * (fillPrice - avg)
		newSize = math.Max(0, current-closeQty)
		if newSize == 0 {
			newAvg = 0
		}
	}

	b.positionSize[posKey] = newSize
	b.avgEntry[posKey] = newAvg
	if realized != 0 {
		b.recordPnlLocked(key, posKey, realized)
	}
	b.lastPrice[posKey] = fillPrice
}

// RecordPnl books realized PnL against the account's daily loss and the
// position's realized total. A negative amount starts the loss cooldown.
func (b *Book) RecordPnl(intent datamodels.OrderIntent, pnl float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recordPnlLocked(intent.AccountKey(), intent.PositionKey(), pnl)
}

func (b *Book) recordPnlLocked(accountKey string, posKey string, pnl float64) {
	today := b.now().UTC().Format("2006-01-02")
	rec, ok := b.dailyLosses[accountKey]
	if !ok || rec.date != today {
		rec = dailyLoss{date: today, loss: pnl}
	} else {
		rec.loss += pnl
	}
	b.dailyLosses[accountKey] = rec

	if pnl < 0 {
		b.lastLossAt[accountKey] = b.now()
	}
	b.realizedPnl[posKey] += pnl
}

// RecordMarketPrice refreshes the mark for a position. Account "*" fans out
// to every tracked account holding the broker/symbol pair.
func (b *Book) RecordMarketPrice(broker datamodels.Broker, accountRef string, symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if accountRef == "*" {
		prefix := string(broker) + ":"
		suffix := ":" + symbol
		for key := range b.positionSize {
			if strings.HasPrefix(key, prefix) && strings.HasSuffix(key, suffix) {
				b.lastPrice[key] = price
			}
		}
		return
	}
	b.lastPrice[string(broker)+":"+accountRef+":"+symbol] = price
}

// PositionSize returns the tracked size for a broker/account/symbol.
func (b *Book) PositionSize(broker datamodels.Broker, accountRef string, symbol string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.positionSize[string(broker)+":"+accountRef+":"+symbol]
}

// Snapshot lists every open position with mark-to-market PnL.
func (b *Book) Snapshot() []datamodels.PositionSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	asOf := b.now()
	snapshots := []datamodels.PositionSnapshot{}
	for key, size := range b.positionSize {
		if size <= 0 {
			continue
		}
		parts := strings.SplitN(key, ":", 3)
		if len(parts) != 3 {
			continue
		}
		avg := b.avgEntry[key]
		last, ok := b.lastPrice[key]
		if !ok {
			last = avg
		}
		snapshots = append(snapshots, datamodels.PositionSnapshot{
			Broker:     datamodels.Broker(parts[0]),
			Account:    parts[1],
			Symbol:     parts[2],
			Size:       size,
			AvgEntry:   avg,
			LastPrice:  last,
			Unrealized: (last - avg) * size,
			Realized:   b.realizedPnl[key],
			AsOf:       asOf,
		})
	}
	return snapshots
}
