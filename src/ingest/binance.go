package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"stratbot/src/datamodels"
)

const binanceRestURL = "https://api.binance.com"

var binanceIntervals = map[datamodels.Timeframe]string{
	datamodels.Timeframe1m:  "1m",
	datamodels.Timeframe3m:  "3m",
	datamodels.Timeframe5m:  "5m",
	datamodels.Timeframe15m: "15m",
	datamodels.Timeframe30m: "30m",
	datamodels.Timeframe1h:  "1h",
	datamodels.Timeframe2h:  "2h",
	datamodels.Timeframe4h:  "4h",
	datamodels.Timeframe6h:  "6h",
	datamodels.Timeframe12h: "12h",
	datamodels.Timeframe1d:  "1d",
}

// BinanceIngestor fetches spot klines from the Binance public REST API.
type BinanceIngestor struct {
	client *resty.Client
}

func NewBinanceIngestor() *BinanceIngestor {
	client := resty.New().
		SetBaseURL(binanceRestURL).
		SetTimeout(10 * time.Second)
	return &BinanceIngestor{client: client}
}

// WithBaseURL points the ingestor at a different host. Used in tests.
func (b *BinanceIngestor) WithBaseURL(url string) *BinanceIngestor {
	b.client.SetBaseURL(url)
	return b
}

func (b *BinanceIngestor) GetName() string {
	return "binance"
}

func (b *BinanceIngestor) SupportsTimeframe(tf datamodels.Timeframe) bool {
	_, ok := binanceIntervals[tf]
	return ok
}

func (b *BinanceIngestor) FetchBars(ctx context.Context, req datamodels.FetchBarsRequest) datamodels.IngestResult {
	interval, ok := binanceIntervals[req.Timeframe]
	if !ok {
		return datamodels.IngestResult{Warnings: []string{"unsupported timeframe for Binance: " + string(req.Timeframe)}}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 500
	}
	params := map[string]string{
		"symbol":   strings.ToUpper(req.Symbol),
		"interval": interval,
		"limit":    strconv.Itoa(limit),
	}
	if !req.Start.IsZero() {
		params["startTime"] = strconv.FormatInt(req.Start.UnixMilli(), 10)
	}
	if !req.End.IsZero() {
		params["endTime"] = strconv.FormatInt(req.End.UnixMilli(), 10)
	}

	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/api/v3/klines")
	if err != nil {
		return datamodels.IngestResult{Errors: []string{err.Error()}}
	}
	if resp.IsError() {
		return datamodels.IngestResult{Errors: []string{fmt.Sprintf("%d: %s", resp.StatusCode(), resp.String())}}
	}

	var raw [][]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return datamodels.IngestResult{Errors: []string{"failed to parse klines: " + err.Error()}}
	}

	bars := make([]datamodels.NormalizedBar, 0, len(raw))
	warnings := []string{}
	for _, k := range raw {
		bar, err := parseKline(k, req)
		if err != nil {
			warnings = append(warnings, err.Error())
			continue
		}
		bars = append(bars, bar)
	}
	if len(warnings) > 0 {
		slog.Warn("Binance ingestor skipped malformed klines", "count", len(warnings))
		return datamodels.IngestResult{Bars: bars, Warnings: warnings}
	}
	return datamodels.IngestResult{Bars: bars}
}

func parseKline(k []json.RawMessage, req datamodels.FetchBarsRequest) (datamodels.NormalizedBar, error) {
	if len(k) < 6 {
		return datamodels.NormalizedBar{}, fmt.Errorf("kline has %d fields, want at least 6", len(k))
	}
	var openTime int64
	if err := json.Unmarshal(k[0], &openTime); err != nil {
		return datamodels.NormalizedBar{}, fmt.Errorf("bad kline open time: %w", err)
	}
	fields := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		var s string
		if err := json.Unmarshal(k[i], &s); err != nil {
			return datamodels.NormalizedBar{}, fmt.Errorf("bad kline field %d: %w", i, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return datamodels.NormalizedBar{}, fmt.Errorf("bad kline field %d: %w", i, err)
		}
		fields[i-1] = v
	}
	return datamodels.NormalizedBar{
		Ts:         time.UnixMilli(openTime).UTC(),
		Open:       fields[0],
		High:       fields[1],
		Low:        fields[2],
		Close:      fields[3],
		Volume:     fields[4],
		Venue:      datamodels.VenueBinance,
		Symbol:     req.Symbol,
		AssetClass: datamodels.AssetClassCrypto,
		Timeframe:  req.Timeframe,
	}, nil
}
