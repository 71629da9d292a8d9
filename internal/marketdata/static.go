package marketdata

import (
	"context"
	"fmt"

	"github.com/quietgrove/needledrop/internal/common"
	"github.com/quietgrove/needledrop/internal/model"
)

// StaticProvider serves statistics from a fixed map keyed by release id. It
// backs offline mode and tests; results are fully deterministic.
type StaticProvider struct {
	stats map[int64]model.MarketStatistics
}

// NewStaticProvider creates a provider over a fixed statistics table.
func NewStaticProvider(stats map[int64]model.MarketStatistics) *StaticProvider {
	if stats == nil {
		stats = make(map[int64]model.MarketStatistics)
	}
	return &StaticProvider{stats: stats}
}

// StatsFor looks up the listing's release in the fixed table.
func (p *StaticProvider) StatsFor(_ context.Context, listing model.Listing) (*model.MarketStatistics, error) {
	s, ok := p.stats[listing.ReleaseID]
	if !ok {
		return nil, fmt.Errorf("%w: no market data for release %d", common.ErrNotFound, listing.ReleaseID)
	}
	s.Scarcity = model.DeriveScarcity(s.Count)
	return &s, nil
}
