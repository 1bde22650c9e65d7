package brokers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"stratbot/src/datamodels"
)

const binanceTestnetURL = "https://testnet.binance.vision"

// BinancePaperAdapter places orders on the Binance spot testnet. Requests are
// HMAC-SHA256 signed over the urlencoded parameter string.
type BinancePaperAdapter struct {
	client    *resty.Client
	apiKey    string
	apiSecret string
	now       func() time.Time
}

func NewBinancePaperAdapter(cfg datamodels.BinanceBrokerConfig) *BinancePaperAdapter {
	base := cfg.TestnetURL
	if base == "" {
		base = binanceTestnetURL
	}
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(10 * time.Second)
	return &BinancePaperAdapter{
		client:    client,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		now:       time.Now,
	}
}

// WithClock overrides the request timestamp source. Used in tests.
func (b *BinancePaperAdapter) WithClock(now func() time.Time) *BinancePaperAdapter {
	b.now = now
	return b
}

func (b *BinancePaperAdapter) Id() datamodels.Broker {
	return datamodels.BrokerBinance
}

func (b *BinancePaperAdapter) CanPaperTrade() bool {
	return true
}

func (b *BinancePaperAdapter) Execute(ctx context.Context, intent datamodels.OrderIntent) datamodels.ExecutionResult {
	if b.apiKey == "" || b.apiSecret == "" {
		return datamodels.ExecutionResult{
			OrderId:  "missing-creds",
			Status:   datamodels.OrderStatusError,
			Warnings: []string{"binance API key/secret missing"},
		}
	}

	clientOrderId := intent.ClientOrderId
	if clientOrderId == "" {
		clientOrderId = "paper-" + strconv.FormatInt(b.now().UnixMilli(), 10)
	}
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(intent.Symbol))
	params.Set("side", strings.ToUpper(string(intent.Side)))
	params.Set("type", strings.ToUpper(string(intent.OrderType)))
	params.Set("quantity", strconv.FormatFloat(intent.Quantity, 'f', -1, 64))
	if intent.Price != 0 {
		params.Set("price", strconv.FormatFloat(intent.Price, 'f', -1, 64))
	}
	if intent.TimeInForce != "" {
		params.Set("timeInForce", strings.ToUpper(string(intent.TimeInForce)))
	}
	params.Set("newClientOrderId", clientOrderId)
	params.Set("recvWindow", "5000")
	params.Set("timestamp", strconv.FormatInt(b.now().UnixMilli(), 10))

	encoded := params.Encode()
	body := encoded + "&signature=" + b.sign(encoded)

	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("X-MBX-APIKEY", b.apiKey).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(body).
		Post("/api/v3/order")
	if err != nil {
		return datamodels.ExecutionResult{
			OrderId:  "paper-failed",
			Status:   datamodels.OrderStatusError,
			Warnings: []string{truncate(err.Error(), 200)},
		}
	}
	if resp.IsError() {
		return datamodels.ExecutionResult{
			OrderId:  "paper-failed",
			Status:   datamodels.OrderStatusError,
			Warnings: []string{fmt.Sprintf("%d: %s", resp.StatusCode(), truncate(resp.String(), 200))},
		}
	}

	var parsed struct {
		ClientOrderId string `json:"clientOrderId"`
		Status        string `json:"status"`
	}
	if err := json.Unmarshal(resp.Body(), &parsed); err == nil && parsed.ClientOrderId != "" {
		clientOrderId = parsed.ClientOrderId
	}
	status := datamodels.OrderStatusPaper
	if parsed.Status != "" {
		status = datamodels.OrderStatus(strings.ToLower(parsed.Status))
	}
	return datamodels.ExecutionResult{OrderId: clientOrderId, Status: status}
}

func (b *BinancePaperAdapter) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(b.apiSecret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
