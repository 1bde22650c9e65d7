package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"stratbot/src/datamodels"
)

const alpacaDataURL = "https://data.alpaca.markets/v2"

var alpacaTimeframes = map[datamodels.Timeframe]string{
	datamodels.Timeframe1m:  "1Min",
	datamodels.Timeframe3m:  "3Min",
	datamodels.Timeframe5m:  "5Min",
	datamodels.Timeframe15m: "15Min",
	datamodels.Timeframe30m: "30Min",
	datamodels.Timeframe1h:  "1Hour",
	datamodels.Timeframe2h:  "2Hour",
	datamodels.Timeframe4h:  "4Hour",
	datamodels.Timeframe6h:  "6Hour",
	datamodels.Timeframe12h: "12Hour",
	datamodels.Timeframe1d:  "1Day",
}

type alpacaBar struct {
	T time.Time `json:"t"`
	O float64   `json:"o"`
	H float64   `json:"h"`
	L float64   `json:"l"`
	C float64   `json:"c"`
	V float64   `json:"v"`
}

type alpacaBarsResponse struct {
	Bars []alpacaBar `json:"bars"`
}

// AlpacaIngestor fetches equity bars from the Alpaca data API. Without
// credentials every call degrades to an errors/warnings result.
type AlpacaIngestor struct {
	client    *resty.Client
	apiKey    string
	apiSecret string
}

func NewAlpacaIngestor(cfg datamodels.AlpacaBrokerConfig) *AlpacaIngestor {
	baseURL := cfg.DataURL
	if baseURL == "" {
		baseURL = alpacaDataURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second)
	if cfg.APIKey != "" {
		client.SetHeader("APCA-API-KEY-ID", cfg.APIKey)
		client.SetHeader("APCA-API-SECRET-KEY", cfg.APISecret)
	}
	return &AlpacaIngestor{client: client, apiKey: cfg.APIKey, apiSecret: cfg.APISecret}
}

func (a *AlpacaIngestor) GetName() string {
	return "alpaca"
}

func (a *AlpacaIngestor) SupportsTimeframe(tf datamodels.Timeframe) bool {
	_, ok := alpacaTimeframes[tf]
	return ok
}

func (a *AlpacaIngestor) FetchBars(ctx context.Context, req datamodels.FetchBarsRequest) datamodels.IngestResult {
	tf, ok := alpacaTimeframes[req.Timeframe]
	if !ok {
		return datamodels.IngestResult{Warnings: []string{"unsupported timeframe for Alpaca: " + string(req.Timeframe)}}
	}
	if a.apiKey == "" || a.apiSecret == "" {
		return datamodels.IngestResult{Errors: []string{"alpaca credentials missing"}}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 500
	}
	params := map[string]string{
		"timeframe": tf,
		"limit":     strconv.Itoa(limit),
	}
	if !req.Start.IsZero() {
		params["start"] = req.Start.UTC().Format(time.RFC3339)
	}
	if !req.End.IsZero() {
		params["end"] = req.End.UTC().Format(time.RFC3339)
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/stocks/" + req.Symbol + "/bars")
	if err != nil {
		return datamodels.IngestResult{Errors: []string{err.Error()}}
	}
	if resp.IsError() {
		return datamodels.IngestResult{Errors: []string{fmt.Sprintf("%d: %s", resp.StatusCode(), resp.String())}}
	}

	var parsed alpacaBarsResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return datamodels.IngestResult{Errors: []string{"failed to parse alpaca bars: " + err.Error()}}
	}

	bars := make([]datamodels.NormalizedBar, 0, len(parsed.Bars))
	for _, b := range parsed.Bars {
		bars = append(bars, datamodels.NormalizedBar{
			Ts:         b.T.UTC(),
			Open:       b.O,
			High:       b.H,
			Low:        b.L,
			Close:      b.C,
			Volume:     b.V,
			Venue:      datamodels.VenueAlpaca,
			Symbol:     req.Symbol,
			AssetClass: datamodels.AssetClassEquity,
			Timeframe:  req.Timeframe,
		})
	}
	return datamodels.IngestResult{Bars: bars}
}

// FetchLatestBar returns the most recent bar, used by the polling feed path.
func (a *AlpacaIngestor) FetchLatestBar(ctx context.Context, symbol string, tf datamodels.Timeframe) (datamodels.NormalizedBar, bool) {
	result := a.FetchBars(ctx, datamodels.FetchBarsRequest{
		Symbol:    symbol,
		Timeframe: tf,
		Limit:     1,
	})
	if len(result.Bars) == 0 {
		return datamodels.NormalizedBar{}, false
	}
	return result.Bars[len(result.Bars)-1], true
}
