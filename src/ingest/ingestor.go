package ingest

import (
	"context"

	"stratbot/src/datamodels"
)

// Ingestor fetches historical bars for one venue. Provider failures surface
// in the IngestResult, never as a returned error, so callers can continue.
type Ingestor interface {
	GetName() string
	SupportsTimeframe(tf datamodels.Timeframe) bool
	FetchBars(ctx context.Context, req datamodels.FetchBarsRequest) datamodels.IngestResult
}

// LatestBarFetcher is the polling-feed side of a venue: fetch the most recent
// closed bar, or report that none is available.
type LatestBarFetcher interface {
	FetchLatestBar(ctx context.Context, symbol string, tf datamodels.Timeframe) (datamodels.NormalizedBar, bool)
}

// Registry maps venues to their ingestors.
type Registry struct {
	ingestors map[datamodels.Venue]Ingestor
}

func NewRegistry() *Registry {
	return &Registry{ingestors: make(map[datamodels.Venue]Ingestor)}
}

func (r *Registry) Register(venue datamodels.Venue, ing Ingestor) {
	r.ingestors[venue] = ing
}

func (r *Registry) Get(venue datamodels.Venue) (Ingestor, bool) {
	ing, ok := r.ingestors[venue]
	return ing, ok
}
