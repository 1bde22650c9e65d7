package live

import (
	"context"
	"log/slog"

	"stratbot/src/brokers"
	"stratbot/src/datamodels"
	"stratbot/src/risk"
)

// Executor is the single path from an order intent to a broker. Every intent
// passes the risk book's atomic check-and-reserve before it reaches an
// adapter; the reservation is released on rejection and converted to a fill
// on success.
type Executor struct {
	riskBook    *risk.Book
	registry    *brokers.Registry
	liveEnabled bool
}

func NewExecutor(riskBook *risk.Book, registry *brokers.Registry, liveEnabled bool) *Executor {
	return &Executor{
		riskBook:    riskBook,
		registry:    registry,
		liveEnabled: liveEnabled,
	}
}

func (e *Executor) Execute(ctx context.Context, intent datamodels.OrderIntent) datamodels.ExecutionResult {
	if !intent.Paper && !e.liveEnabled {
		return datamodels.ExecutionResult{
			OrderId:  "blocked-live",
			Status:   datamodels.OrderStatusBlocked,
			Warnings: []string{"live trading disabled"},
		}
	}
	if !intent.RiskChecked {
		return datamodels.ExecutionResult{
			OrderId:  "blocked-risk",
			Status:   datamodels.OrderStatusBlocked,
			Warnings: []string{"intent was not risk checked"},
		}
	}

	estPrice := intent.Price
	if estPrice == 0 {
		estPrice = 1
	}
	if verdict := e.riskBook.CheckAndReserve(intent, estPrice, nil); !verdict.Ok {
		return datamodels.ExecutionResult{
			OrderId:  "blocked-risk",
			Status:   datamodels.OrderStatusBlocked,
			Warnings: []string{verdict.Reason},
		}
	}

	adapter, ok := e.registry.Get(intent.Broker)
	if !ok {
		e.riskBook.ClearOpenOrder(intent)
		return datamodels.ExecutionResult{
			OrderId:  "unsupported-broker",
			Status:   datamodels.OrderStatusError,
			Warnings: []string{"broker " + string(intent.Broker) + " not supported"},
		}
	}

	result := adapter.Execute(ctx, intent)
	switch result.Status {
	case datamodels.OrderStatusError, datamodels.OrderStatusBlocked:
		e.riskBook.ClearOpenOrder(intent)
		slog.Warn("Order rejected",
			"broker", intent.Broker,
			"symbol", intent.Symbol,
			"status", result.Status,
			"warnings", result.Warnings)
	default:
		e.riskBook.RecordFill(intent, intent.Price)
		slog.Info("Order executed",
			"broker", intent.Broker,
			"symbol", intent.Symbol,
			"side", intent.Side,
			"quantity", intent.Quantity,
			"orderId", result.OrderId,
			"status", result.Status)
	}
	return result
}
