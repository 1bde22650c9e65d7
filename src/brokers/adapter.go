package brokers

import (
	"context"

	"github.com/google/uuid"

	"stratbot/src/datamodels"
)

// Adapter submits orders to one broker. Execute never returns a Go error:
// provider failures come back as OrderStatusError with a warning so the
// caller can log and move on.
type Adapter interface {
	Id() datamodels.Broker
	CanPaperTrade() bool
	Execute(ctx context.Context, intent datamodels.OrderIntent) datamodels.ExecutionResult
}

// Registry holds the configured adapters keyed by broker id.
type Registry struct {
	adapters map[datamodels.Broker]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: map[datamodels.Broker]Adapter{}}
}

func (r *Registry) Register(adapter Adapter) {
	r.adapters[adapter.Id()] = adapter
}

func (r *Registry) Get(id datamodels.Broker) (Adapter, bool) {
	a, ok := r.adapters[id]
	return a, ok
}

// PaperAdapter simulates fills locally. It accepts everything.
type PaperAdapter struct{}

func NewPaperAdapter() *PaperAdapter {
	return &PaperAdapter{}
}

func (p *PaperAdapter) Id() datamodels.Broker {
	return datamodels.BrokerPaper
}

func (p *PaperAdapter) CanPaperTrade() bool {
	return true
}

func (p *PaperAdapter) Execute(ctx context.Context, intent datamodels.OrderIntent) datamodels.ExecutionResult {
	orderId := intent.ClientOrderId
	if orderId == "" {
		orderId = "paper-" + uuid.NewString()
	}
	return datamodels.ExecutionResult{OrderId: orderId, Status: datamodels.OrderStatusPaper}
}

// truncate caps provider error text so a huge response body cannot flood
// warnings and logs.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
