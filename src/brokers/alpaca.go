package brokers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"stratbot/src/datamodels"
)

const (
	alpacaPaperURL = "https://paper-api.alpaca.markets"
	alpacaLiveURL  = "https://api.alpaca.markets"
)

// AlpacaAdapter submits equity orders to Alpaca. Paper intents go to the
// paper endpoint, everything else to the live one.
type AlpacaAdapter struct {
	paperClient *resty.Client
	liveClient  *resty.Client
	apiKey      string
	apiSecret   string
}

func NewAlpacaAdapter(cfg datamodels.AlpacaBrokerConfig) *AlpacaAdapter {
	paperBase := cfg.BaseURL
	if paperBase == "" {
		paperBase = alpacaPaperURL
	}
	newClient := func(base string) *resty.Client {
		return resty.New().
			SetBaseURL(base).
			SetTimeout(10*time.Second).
			SetHeader("APCA-API-KEY-ID", cfg.APIKey).
			SetHeader("APCA-API-SECRET-KEY", cfg.APISecret)
	}
	return &AlpacaAdapter{
		paperClient: newClient(paperBase),
		liveClient:  newClient(alpacaLiveURL),
		apiKey:      cfg.APIKey,
		apiSecret:   cfg.APISecret,
	}
}

// WithBaseURL points both endpoints at a different host. Used in tests.
func (a *AlpacaAdapter) WithBaseURL(url string) *AlpacaAdapter {
	a.paperClient.SetBaseURL(url)
	a.liveClient.SetBaseURL(url)
	return a
}

func (a *AlpacaAdapter) Id() datamodels.Broker {
	return datamodels.BrokerAlpaca
}

func (a *AlpacaAdapter) CanPaperTrade() bool {
	return true
}

func (a *AlpacaAdapter) Execute(ctx context.Context, intent datamodels.OrderIntent) datamodels.ExecutionResult {
	if a.apiKey == "" || a.apiSecret == "" {
		return datamodels.ExecutionResult{
			OrderId:  "alpaca-missing-creds",
			Status:   datamodels.OrderStatusError,
			Warnings: []string{"alpaca API key/secret missing"},
		}
	}

	clientOrderId := intent.ClientOrderId
	if clientOrderId == "" {
		clientOrderId = "sb-" + uuid.NewString()
	}
	tif := intent.TimeInForce
	if tif == "" {
		tif = datamodels.TimeInForceGTC
	}
	body := map[string]any{
		"symbol":          intent.Symbol,
		"qty":             intent.Quantity,
		"side":            intent.Side,
		"type":            intent.OrderType,
		"time_in_force":   tif,
		"client_order_id": clientOrderId,
	}
	if intent.Price != 0 {
		body["limit_price"] = intent.Price
	}

	client := a.paperClient
	if !intent.Paper {
		client = a.liveClient
	}
	resp, err := client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/v2/orders")
	if err != nil {
		return datamodels.ExecutionResult{
			OrderId:  "alpaca-failed",
			Status:   datamodels.OrderStatusError,
			Warnings: []string{truncate(err.Error(), 200)},
		}
	}
	if resp.IsError() {
		return datamodels.ExecutionResult{
			OrderId:  "alpaca-failed",
			Status:   datamodels.OrderStatusError,
			Warnings: []string{fmt.Sprintf("%d: %s", resp.StatusCode(), truncate(resp.String(), 200))},
		}
	}

	var parsed struct {
		Id     string `json:"id"`
		Status string `json:"status"`
	}
	orderId := clientOrderId
	status := datamodels.OrderStatusSubmitted
	if err := json.Unmarshal(resp.Body(), &parsed); err == nil {
		if parsed.Id != "" {
			orderId = parsed.Id
		}
		if parsed.Status != "" {
			status = datamodels.OrderStatus(parsed.Status)
		}
	}
	return datamodels.ExecutionResult{OrderId: orderId, Status: status}
}
