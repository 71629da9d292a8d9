// Package marketdata supplies aggregated sale statistics for a release in a
// given condition. Statistics are computed by an external aggregator; this
// package only fetches and shapes them.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/quietgrove/needledrop/internal/common"
	"github.com/quietgrove/needledrop/internal/model"
)

// Config holds the aggregator endpoint and credentials.
type Config struct {
	BaseURL string
	APIKey  string
}

// Provider fetches market statistics from the aggregator API.
type Provider struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        Config
}

// NewProvider creates an aggregator-backed statistics provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: market data base url", common.ErrMissingConfig)
	}

	return &Provider{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
		cfg:        cfg,
	}, nil
}

type statsResponse struct {
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
	P90    float64 `json:"p90"`
	Count  int     `json:"count"`
}

// StatsFor returns aggregated sale statistics for the listing's release in
// its media condition. A release the aggregator has never seen comes back as
// ErrNotFound; the engine turns that into a flagged item, not a run failure.
func (p *Provider) StatsFor(ctx context.Context, listing model.Listing) (*model.MarketStatistics, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/releases/%d/stats?condition=%s&currency=%s",
		p.cfg.BaseURL, listing.ReleaseID,
		url.QueryEscape(listing.MediaCondition), url.QueryEscape(listing.Currency))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build stats request: %w", err)
	}
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stats for release %d: %w", listing.ReleaseID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: no market data for release %d", common.ErrNotFound, listing.ReleaseID)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, common.ErrRateLimit
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("market data request for release %d returned %s", listing.ReleaseID, resp.Status)
	}

	var body statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode stats for release %d: %w", listing.ReleaseID, err)
	}

	stats := &model.MarketStatistics{
		Median: body.Median,
		Mean:   body.Mean,
		Min:    body.Min,
		Max:    body.Max,
		P25:    body.P25,
		P75:    body.P75,
		P90:    body.P90,
		Count:  body.Count,
	}
	stats.Scarcity = model.DeriveScarcity(stats.Count)

	slog.Debug("Fetched market statistics",
		"release_id", listing.ReleaseID,
		"condition", listing.MediaCondition,
		"count", stats.Count,
		"median", stats.Median)

	return stats, nil
}
