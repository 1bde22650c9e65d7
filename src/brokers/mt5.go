package brokers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"stratbot/src/datamodels"
)

// MT5Adapter forwards orders to a local MT5 bridge service. With no bridge
// configured every order degrades to an error result.
type MT5Adapter struct {
	client *resty.Client
}

func NewMT5Adapter(cfg datamodels.MT5BrokerConfig) *MT5Adapter {
	if cfg.BridgeURL == "" {
		return &MT5Adapter{}
	}
	client := resty.New().
		SetBaseURL(cfg.BridgeURL).
		SetTimeout(10 * time.Second)
	return &MT5Adapter{client: client}
}

func (m *MT5Adapter) Id() datamodels.Broker {
	return datamodels.BrokerMT5
}

func (m *MT5Adapter) CanPaperTrade() bool {
	return true
}

func (m *MT5Adapter) Execute(ctx context.Context, intent datamodels.OrderIntent) datamodels.ExecutionResult {
	if m.client == nil {
		return datamodels.ExecutionResult{
			OrderId:  "mt5-missing-bridge",
			Status:   datamodels.OrderStatusError,
			Warnings: []string{"MT5 bridge URL not configured"},
		}
	}

	body := map[string]any{
		"symbol":        intent.Symbol,
		"volume":        intent.Quantity,
		"side":          intent.Side,
		"type":          intent.OrderType,
		"price":         intent.Price,
		"timeInForce":   intent.TimeInForce,
		"clientOrderId": intent.ClientOrderId,
		"paper":         intent.Paper,
	}
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/orders")
	if err != nil {
		return datamodels.ExecutionResult{
			OrderId:  "mt5-failed",
			Status:   datamodels.OrderStatusError,
			Warnings: []string{truncate(err.Error(), 200)},
		}
	}
	if resp.IsError() {
		return datamodels.ExecutionResult{
			OrderId:  "mt5-failed",
			Status:   datamodels.OrderStatusError,
			Warnings: []string{fmt.Sprintf("%d: %s", resp.StatusCode(), truncate(resp.String(), 200))},
		}
	}

	var parsed struct {
		OrderId string `json:"orderId"`
		Status  string `json:"status"`
	}
	orderId := intent.ClientOrderId
	status := datamodels.OrderStatusSubmitted
	if err := json.Unmarshal(resp.Body(), &parsed); err == nil {
		if parsed.OrderId != "" {
			orderId = parsed.OrderId
		}
		if parsed.Status != "" {
			status = datamodels.OrderStatus(parsed.Status)
		}
	}
	if orderId == "" {
		orderId = "mt5-order"
	}
	return datamodels.ExecutionResult{OrderId: orderId, Status: status}
}
