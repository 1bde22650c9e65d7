package features

import (
	"sync"

	"stratbot/src/datamodels"
)

// Computer turns a bar series into per-bar feature frames. Computers are
// stateless between calls; each Compute sees the full series.
type Computer interface {
	Id() string
	Compute(bars []datamodels.NormalizedBar) []datamodels.FeatureFrame
}

// Provider runs the default computer set concurrently and returns the frames
// keyed by computer id.
type Provider struct {
	computers []Computer
}

func NewProvider() *Provider {
	return &Provider{
		computers: []Computer{
			NewAnchoredVolumeProfile(200, 24, 0.7),
			NewImbalanceComputer(),
			NewMarketStructureComputer(5),
			NewRegimeScoreComputer(),
			NewSessionTagComputer(),
			NewAtrComputer(14),
		},
	}
}

// WithComputers overrides the computer set. Used in tests and by callers that
// only need a subset.
func (p *Provider) WithComputers(computers ...Computer) *Provider {
	p.computers = computers
	return p
}

func (p *Provider) Compute(bars []datamodels.NormalizedBar) datamodels.FeatureSet {
	results := make(datamodels.FeatureSet, len(p.computers))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, c := range p.computers {
		wg.Add(1)
		go func(c Computer) {
			defer wg.Done()
			frames := c.Compute(bars)
			mu.Lock()
			results[c.Id()] = frames
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return results
}
