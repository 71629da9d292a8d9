// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/quietgrove/needledrop/internal/model"
)

// ListingFilter defines filtering options for inventory queries. It is how
// the CLI resolves scope=selection before the repricing core runs.
type ListingFilter struct {
	MinPrice  *float64
	MaxPrice  *float64
	Condition string
	Status    string
	Limit     int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Strategy operations
	SaveStrategy(ctx context.Context, strategy *model.Strategy) error
	GetStrategy(ctx context.Context, name string) (*model.Strategy, error)
	GetActiveStrategy(ctx context.Context) (*model.Strategy, error)
	ListStrategies(ctx context.Context) ([]model.Strategy, error)
	ActivateStrategy(ctx context.Context, name string) error
	DeleteStrategy(ctx context.Context, name string) error

	// Automation rules (singleton policy row)
	GetAutomationRules(ctx context.Context) (model.AutomationRules, error)
	SaveAutomationRules(ctx context.Context, rules model.AutomationRules) error

	// Listing operations
	SaveListings(ctx context.Context, listings []model.Listing) error
	GetListing(ctx context.Context, id int64) (*model.Listing, error)
	GetListings(ctx context.Context, filter ListingFilter) ([]model.Listing, error)

	// Run audit log
	SaveRun(ctx context.Context, run *model.RepriceResponse) error
	GetRun(ctx context.Context, runID int64) (*model.RepriceResponse, error)
	ListRuns(ctx context.Context, limit int) ([]model.RepriceResponse, error)
	MaxRunID(ctx context.Context) (int64, error)
	BackfillItemStatus(ctx context.Context, runID, listingID int64, status ApplyStatus) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// MarketData supplies aggregated market statistics for a listing's reference
// release. How the statistics are computed is the provider's business.
type MarketData interface {
	StatsFor(ctx context.Context, listing model.Listing) (*model.MarketStatistics, error)
}

// ApplyStatus is what the marketplace reports back for one price update.
type ApplyStatus struct {
	DiscogsStatus      string
	HTTPStatus         int
	RateLimitRemaining int
}

// Marketplace is the external price-apply collaborator. The repricing core
// never calls it; the CLI does, after classification, for items whose
// decision permits application.
type Marketplace interface {
	FetchInventory(ctx context.Context) ([]model.Listing, error)
	UpdatePrice(ctx context.Context, listingID int64, price float64) (ApplyStatus, error)
}

// RetryOptions configures retry behavior for service operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
