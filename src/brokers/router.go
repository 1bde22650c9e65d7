package brokers

import (
	"regexp"
	"strings"

	"stratbot/src/datamodels"
)

var (
	fxSymbolRe     = regexp.MustCompile(`^[A-Z]{3}USD$`)
	equitySymbolRe = regexp.MustCompile(`^[A-Z]{1,5}$`)
)

// ResolveVenueForSymbol routes a symbol to a data venue by naming
// convention: crypto pairs to Binance, six-letter forex majors to MT5, bare
// tickers to Alpaca. Binance is the fallback.
func ResolveVenueForSymbol(symbol string) datamodels.Venue {
	sym := strings.ToUpper(symbol)
	if strings.Contains(sym, "BTC") ||
		strings.Contains(sym, "ETH") ||
		strings.HasSuffix(sym, "USDT") ||
		strings.HasSuffix(sym, "BUSD") {
		return datamodels.VenueBinance
	}
	if fxSymbolRe.MatchString(sym) {
		return datamodels.VenueMT5
	}
	if equitySymbolRe.MatchString(sym) {
		return datamodels.VenueAlpaca
	}
	return datamodels.VenueBinance
}

// ResolveBrokerForSymbol maps a symbol's venue to its executing broker.
func ResolveBrokerForSymbol(symbol string) datamodels.Broker {
	switch ResolveVenueForSymbol(symbol) {
	case datamodels.VenueAlpaca:
		return datamodels.BrokerAlpaca
	case datamodels.VenueMT5:
		return datamodels.BrokerMT5
	default:
		return datamodels.BrokerBinance
	}
}
