package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietgrove/needledrop/internal/common"
	"github.com/quietgrove/needledrop/internal/model"
)

func testListing() model.Listing {
	return model.Listing{
		ID:             101,
		ReleaseID:      9001,
		Currency:       "USD",
		MediaCondition: model.GradeNearMint,
	}
}

func TestStatsForShapesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/releases/9001/stats", r.URL.Path)
		assert.Equal(t, "NM", r.URL.Query().Get("condition"))
		assert.Equal(t, "USD", r.URL.Query().Get("currency"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"median": 24.0, "mean": 25.1, "min": 12.0, "max": 60.0,
			"p25": 18.0, "p75": 31.0, "p90": 44.0, "count": 8}`)
	}))
	defer server.Close()

	provider, err := NewProvider(Config{BaseURL: server.URL, APIKey: "test-key"})
	require.NoError(t, err)

	stats, err := provider.StatsFor(context.Background(), testListing())
	require.NoError(t, err)
	assert.InDelta(t, 24.0, stats.Median, 1e-9)
	assert.Equal(t, 8, stats.Count)
	assert.Equal(t, model.ScarcityMedium, stats.Scarcity, "scarcity derived from count")
}

func TestStatsForUnknownRelease(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	provider, err := NewProvider(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = provider.StatsFor(context.Background(), testListing())
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestStatsForRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider, err := NewProvider(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = provider.StatsFor(context.Background(), testListing())
	require.ErrorIs(t, err, common.ErrRateLimit)
}

func TestNewProviderRequiresBaseURL(t *testing.T) {
	_, err := NewProvider(Config{})
	require.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestStaticProvider(t *testing.T) {
	provider := NewStaticProvider(map[int64]model.MarketStatistics{
		9001: {Median: 24.0, Count: 2},
	})

	stats, err := provider.StatsFor(context.Background(), testListing())
	require.NoError(t, err)
	assert.InDelta(t, 24.0, stats.Median, 1e-9)
	assert.Equal(t, model.ScarcityHigh, stats.Scarcity)

	missing := testListing()
	missing.ReleaseID = 404
	_, err = provider.StatsFor(context.Background(), missing)
	require.ErrorIs(t, err, common.ErrNotFound)
}
