// Package discogs implements the marketplace collaborator: inventory fetch
// and the external price-apply step. The repricing core never imports this.
package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/quietgrove/needledrop/internal/common"
	"github.com/quietgrove/needledrop/internal/model"
	"github.com/quietgrove/needledrop/internal/service"
)

const defaultBaseURL = "https://api.discogs.com"

// Discogs allows 60 authenticated requests per minute. Stay at one per
// second with a small burst so a batch apply never trips the limit.
const (
	requestsPerSecond = 1
	requestBurst      = 3
)

// Config holds the credentials and identity for the Discogs API.
type Config struct {
	Token     string
	Username  string
	UserAgent string
	BaseURL   string
	Retry     service.RetryOptions
}

// Client talks to the Discogs marketplace API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        Config
}

// NewClient creates a Discogs marketplace client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: discogs token", common.ErrMissingConfig)
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("%w: discogs username", common.ErrMissingConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "needledrop/1.0"
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     time.Minute,
			Multiplier:   2.0,
		}
	}

	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
		cfg:        cfg,
	}, nil
}

type inventoryPage struct {
	Pagination struct {
		Page  int `json:"page"`
		Pages int `json:"pages"`
	} `json:"pagination"`
	Listings []struct {
		Posted          time.Time `json:"posted"`
		Condition       string    `json:"condition"`
		SleeveCondition string    `json:"sleeve_condition"`
		Status          string    `json:"status"`
		Price           struct {
			Currency string  `json:"currency"`
			Value    float64 `json:"value"`
		} `json:"price"`
		Release struct {
			Artist string `json:"artist"`
			Title  string `json:"title"`
			ID     int64  `json:"id"`
		} `json:"release"`
		ID int64 `json:"id"`
	} `json:"listings"`
}

// FetchInventory pulls the seller's full marketplace inventory, following
// pagination.
func (c *Client) FetchInventory(ctx context.Context) ([]model.Listing, error) {
	var listings []model.Listing

	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/users/%s/inventory?page=%d&per_page=100", c.cfg.BaseURL, c.cfg.Username, page)

		var body inventoryPage
		if _, err := c.get(ctx, url, &body); err != nil {
			return nil, fmt.Errorf("failed to fetch inventory page %d: %w", page, err)
		}

		for _, l := range body.Listings {
			listings = append(listings, model.Listing{
				ID:              l.ID,
				ReleaseID:       l.Release.ID,
				Artist:          l.Release.Artist,
				Title:           l.Release.Title,
				Currency:        l.Price.Currency,
				Price:           l.Price.Value,
				MediaCondition:  normalizeCondition(l.Condition),
				SleeveCondition: normalizeCondition(l.SleeveCondition),
				Status:          l.Status,
				ListedAt:        l.Posted,
			})
		}

		if body.Pagination.Page >= body.Pagination.Pages {
			break
		}
	}

	slog.Info("Fetched inventory", "listings", len(listings))
	return listings, nil
}

// UpdatePrice applies one repriced value to the marketplace. Rate-limit
// rejections are retried with backoff; everything else surfaces immediately.
// The returned status is back-filled into the run's audit item by the caller.
func (c *Client) UpdatePrice(ctx context.Context, listingID int64, price float64) (service.ApplyStatus, error) {
	var status service.ApplyStatus

	err := common.WithRetry(ctx, func() error {
		var retryErr error
		status, retryErr = c.postPrice(ctx, listingID, price)
		return retryErr
	}, c.cfg.Retry)

	return status, err
}

func (c *Client) postPrice(ctx context.Context, listingID int64, price float64) (service.ApplyStatus, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return service.ApplyStatus{}, err
	}

	payload, err := json.Marshal(map[string]any{"price": price})
	if err != nil {
		return service.ApplyStatus{}, fmt.Errorf("failed to encode price update: %w", err)
	}

	url := fmt.Sprintf("%s/marketplace/listings/%d", c.cfg.BaseURL, listingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
	if err != nil {
		return service.ApplyStatus{}, fmt.Errorf("failed to build request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return service.ApplyStatus{}, fmt.Errorf("%w: %v", common.ErrDiscogsConnection, err)
	}
	defer func() { _ = resp.Body.Close() }()

	status := service.ApplyStatus{
		HTTPStatus:         resp.StatusCode,
		DiscogsStatus:      resp.Status,
		RateLimitRemaining: rateLimitRemaining(resp),
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return status, fmt.Errorf("%w: listing %d", common.ErrRateLimit, listingID)
	case resp.StatusCode >= 400:
		return status, &common.RetryableError{
			Err:       fmt.Errorf("price update for listing %d rejected: %s", listingID, resp.Status),
			Retryable: resp.StatusCode >= 500,
		}
	}

	slog.Debug("Applied price update",
		"listing_id", listingID,
		"price", price,
		"rate_limit_remaining", status.RateLimitRemaining)

	return status, nil
}

func (c *Client) get(ctx context.Context, url string, out any) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDiscogsConnection, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return resp, common.ErrRateLimit
	}
	if resp.StatusCode >= 400 {
		return resp, fmt.Errorf("discogs returned %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp, fmt.Errorf("failed to decode response: %w", err)
	}

	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Discogs token="+c.cfg.Token)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
}

func rateLimitRemaining(resp *http.Response) int {
	v := resp.Header.Get("X-Discogs-Ratelimit-Remaining")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// normalizeCondition strips the descriptive suffix Discogs appends to grade
// codes, e.g. "Near Mint (NM or M-)" becomes "NM".
func normalizeCondition(condition string) string {
	open := strings.LastIndex(condition, "(")
	if open == -1 {
		return mapLongGrade(condition)
	}
	inner := strings.TrimSuffix(condition[open+1:], ")")
	if code, ok := parseGradeCode(inner); ok {
		return code
	}
	return mapLongGrade(strings.TrimSpace(condition[:open]))
}

func parseGradeCode(inner string) (string, bool) {
	// Forms like "NM or M-" and "VG+".
	code := strings.TrimSpace(strings.Split(inner, " or ")[0])
	switch code {
	case model.GradeMint, model.GradeNearMint, model.GradeVGPlus, model.GradeVG,
		model.GradeGoodPlus, model.GradeGood, model.GradeFair, model.GradePoor:
		return code, true
	}
	return "", false
}

func mapLongGrade(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mint":
		return model.GradeMint
	case "near mint":
		return model.GradeNearMint
	case "very good plus":
		return model.GradeVGPlus
	case "very good":
		return model.GradeVG
	case "good plus":
		return model.GradeGoodPlus
	case "good":
		return model.GradeGood
	case "fair":
		return model.GradeFair
	case "poor":
		return model.GradePoor
	default:
		return name
	}
}
