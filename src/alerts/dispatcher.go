package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"stratbot/src/datamodels"
)

const telegramAPIURL = "https://api.telegram.org"

// Sender delivers one alert to a set of targets.
type Sender interface {
	Send(ctx context.Context, targets []datamodels.AlertTarget, alert datamodels.SignalAlert)
}

// Dispatcher fans an alert out to all its targets concurrently and waits for
// every delivery attempt to finish. Failures are logged, never returned: an
// alert that cannot be delivered must not stall the pipeline.
type Dispatcher struct {
	client         *resty.Client
	botToken       string
	defaultChatId  string
	retryBaseDelay time.Duration
}

func NewDispatcher(cfg datamodels.AlertsConfig) *Dispatcher {
	client := resty.New().
		SetBaseURL(telegramAPIURL).
		SetTimeout(10 * time.Second)
	return &Dispatcher{
		client:         client,
		botToken:       cfg.TelegramBotToken,
		defaultChatId:  cfg.TelegramChatId,
		retryBaseDelay: 300 * time.Millisecond,
	}
}

// WithBaseURL points telegram calls at a different host. Used in tests.
func (d *Dispatcher) WithBaseURL(url string) *Dispatcher {
	d.client.SetBaseURL(url)
	return d
}

func (d *Dispatcher) Send(ctx context.Context, targets []datamodels.AlertTarget, alert datamodels.SignalAlert) {
	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		go func(target datamodels.AlertTarget) {
			defer wg.Done()
			d.sendOne(ctx, target, alert)
		}(target)
	}
	wg.Wait()
}

func (d *Dispatcher) sendOne(ctx context.Context, target datamodels.AlertTarget, alert datamodels.SignalAlert) {
	switch target.Channel {
	case datamodels.AlertChannelTelegram:
		d.sendTelegram(ctx, target, alert)
	case datamodels.AlertChannelWebhook:
		d.sendWebhook(ctx, target, alert)
	case datamodels.AlertChannelLog:
		slog.Info("Alert", "title", alert.Title, "body", alert.Body)
	default:
		slog.Warn("Unknown alert channel", "channel", target.Channel)
	}
}

func (d *Dispatcher) sendTelegram(ctx context.Context, target datamodels.AlertTarget, alert datamodels.SignalAlert) {
	chatId := target.ChatId
	if chatId == "" {
		chatId = d.defaultChatId
	}
	if d.botToken == "" || chatId == "" {
		slog.Info("Telegram alert skipped, missing token or chat id")
		return
	}
	payload := map[string]string{
		"chat_id":    chatId,
		"text":       alert.Title + "\n" + alert.Body,
		"parse_mode": "Markdown",
	}
	for attempt := 0; attempt < 3; attempt++ {
		resp, err := d.client.R().
			SetContext(ctx).
			SetBody(payload).
			Post("/bot" + d.botToken + "/sendMessage")
		if err == nil && resp.IsSuccess() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.retryBaseDelay * time.Duration(attempt+1)):
		}
	}
	slog.Warn("Telegram alert failed after retries", "title", alert.Title)
}

func (d *Dispatcher) sendWebhook(ctx context.Context, target datamodels.AlertTarget, alert datamodels.SignalAlert) {
	if target.URL == "" {
		slog.Info("Webhook alert skipped, missing URL")
		return
	}
	resp, err := d.client.R().
		SetContext(ctx).
		SetBody(alert).
		Post(target.URL)
	if err != nil {
		slog.Warn("Webhook alert failed", "url", target.URL, "error", err)
		return
	}
	if resp.IsError() {
		slog.Warn("Webhook alert rejected", "url", target.URL, "status", resp.StatusCode())
	}
}
