package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"stratbot/src/datamodels"
)

type mt5Bar struct {
	Ts     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// MT5Ingestor talks to a local/remote MT5 bridge exposing bars over HTTP.
// A missing bridge URL makes every call degrade to an errors result; it never
// crashes the process.
type MT5Ingestor struct {
	client    *resty.Client
	bridgeURL string
}

func NewMT5Ingestor(cfg datamodels.MT5BrokerConfig) *MT5Ingestor {
	ing := &MT5Ingestor{bridgeURL: cfg.BridgeURL}
	if cfg.BridgeURL != "" {
		ing.client = resty.New().
			SetBaseURL(cfg.BridgeURL).
			SetTimeout(10 * time.Second)
	}
	return ing
}

func (m *MT5Ingestor) GetName() string {
	return "mt5"
}

func (m *MT5Ingestor) SupportsTimeframe(tf datamodels.Timeframe) bool {
	return true
}

func (m *MT5Ingestor) FetchBars(ctx context.Context, req datamodels.FetchBarsRequest) datamodels.IngestResult {
	if m.client == nil {
		return datamodels.IngestResult{Errors: []string{"MT5 bridge URL not configured"}}
	}

	params := map[string]string{
		"symbol":    req.Symbol,
		"timeframe": string(req.Timeframe),
	}
	if !req.Start.IsZero() {
		params["start"] = req.Start.UTC().Format(time.RFC3339)
	}
	if !req.End.IsZero() {
		params["end"] = req.End.UTC().Format(time.RFC3339)
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/bars")
	if err != nil {
		return datamodels.IngestResult{Errors: []string{err.Error()}}
	}
	if resp.IsError() {
		return datamodels.IngestResult{Errors: []string{fmt.Sprintf("%d: %s", resp.StatusCode(), resp.String())}}
	}

	var raw []mt5Bar
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return datamodels.IngestResult{Errors: []string{"failed to parse mt5 bars: " + err.Error()}}
	}

	bars := make([]datamodels.NormalizedBar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, m.normalize(b, req.Symbol, req.Timeframe))
	}
	return datamodels.IngestResult{Bars: bars}
}

func (m *MT5Ingestor) FetchLatestBar(ctx context.Context, symbol string, tf datamodels.Timeframe) (datamodels.NormalizedBar, bool) {
	if m.client == nil {
		return datamodels.NormalizedBar{}, false
	}
	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"symbol": symbol, "timeframe": string(tf)}).
		Get("/bars/latest")
	if err != nil || resp.IsError() {
		return datamodels.NormalizedBar{}, false
	}
	var raw mt5Bar
	if err := json.Unmarshal(resp.Body(), &raw); err != nil || raw.Ts.IsZero() {
		return datamodels.NormalizedBar{}, false
	}
	return m.normalize(raw, symbol, tf), true
}

func (m *MT5Ingestor) normalize(b mt5Bar, symbol string, tf datamodels.Timeframe) datamodels.NormalizedBar {
	return datamodels.NormalizedBar{
		Ts:         b.Ts.UTC(),
		Open:       b.Open,
		High:       b.High,
		Low:        b.Low,
		Close:      b.Close,
		Volume:     b.Volume,
		Venue:      datamodels.VenueMT5,
		Symbol:     symbol,
		AssetClass: datamodels.AssetClassFx,
		Timeframe:  tf,
	}
}
