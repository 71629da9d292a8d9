package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietgrove/needledrop/internal/common"
	"github.com/quietgrove/needledrop/internal/model"
	"github.com/quietgrove/needledrop/internal/service"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		Token:    "test-token",
		Username: "crate-digger",
		BaseURL:  server.URL,
		Retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2.0,
		},
	})
	require.NoError(t, err)
	// Tests should not pace themselves like production traffic.
	client.limiter.SetLimit(1000)
	client.limiter.SetBurst(1000)
	return client
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{Username: "crate-digger"})
	require.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = NewClient(Config{Token: "test-token"})
	require.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestFetchInventoryPaginates(t *testing.T) {
	var authHeader, userAgent string

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		userAgent = r.Header.Get("User-Agent")
		require.Equal(t, "/users/crate-digger/inventory", r.URL.Path)

		page := r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"pagination": {"page": %s, "pages": 2},
			"listings": [{
				"id": %s01,
				"condition": "Near Mint (NM or M-)",
				"sleeve_condition": "Very Good Plus (VG+)",
				"status": "For Sale",
				"price": {"currency": "USD", "value": 42.0},
				"release": {"id": 9001, "artist": "Can", "title": "Tago Mago"}
			}]
		}`, page, page)
	}))

	listings, err := client.FetchInventory(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 2)

	assert.Equal(t, "Discogs token=test-token", authHeader)
	assert.Equal(t, "needledrop/1.0", userAgent)

	assert.Equal(t, int64(101), listings[0].ID)
	assert.Equal(t, int64(201), listings[1].ID)
	assert.Equal(t, "Can", listings[0].Artist)
	assert.Equal(t, model.GradeNearMint, listings[0].MediaCondition)
	assert.Equal(t, model.GradeVGPlus, listings[0].SleeveCondition)
	assert.InDelta(t, 42.0, listings[0].Price, 1e-9)
}

func TestFetchInventoryServerError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.FetchInventory(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 1")
}

func TestUpdatePriceReportsStatus(t *testing.T) {
	var gotPrice float64

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/marketplace/listings/101", r.URL.Path)

		var body map[string]float64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotPrice = body["price"]

		w.Header().Set("X-Discogs-Ratelimit-Remaining", "57")
		w.WriteHeader(http.StatusNoContent)
	}))

	status, err := client.UpdatePrice(context.Background(), 101, 21.50)
	require.NoError(t, err)
	assert.InDelta(t, 21.50, gotPrice, 1e-9)
	assert.Equal(t, http.StatusNoContent, status.HTTPStatus)
	assert.Equal(t, 57, status.RateLimitRemaining)
}

func TestUpdatePriceRetriesRateLimit(t *testing.T) {
	attempts := 0
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	status, err := client.UpdatePrice(context.Background(), 101, 21.50)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, http.StatusOK, status.HTTPStatus)
}

func TestUpdatePriceClientErrorNotRetried(t *testing.T) {
	attempts := 0
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))

	status, err := client.UpdatePrice(context.Background(), 999, 21.50)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, http.StatusNotFound, status.HTTPStatus)
}

func TestNormalizeCondition(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Near Mint (NM or M-)", model.GradeNearMint},
		{"Very Good Plus (VG+)", model.GradeVGPlus},
		{"Mint (M)", model.GradeMint},
		{"Good (G)", model.GradeGood},
		{"VG", model.GradeVG},
		{"Very Good", model.GradeVG},
		{"Generic (mystery)", "Generic"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeCondition(tt.raw))
		})
	}
}
