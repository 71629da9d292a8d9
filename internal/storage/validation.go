package storage

import (
	"context"
	"fmt"

	"github.com/quietgrove/needledrop/internal/common"
	"github.com/quietgrove/needledrop/internal/model"
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}
	return ctx.Err()
}

func validateString(value, name string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	return nil
}

func validateStrategy(strategy *model.Strategy) error {
	if strategy == nil {
		return fmt.Errorf("strategy cannot be nil")
	}
	return strategy.Validate()
}

func validateListings(listings []model.Listing) error {
	for i, l := range listings {
		if l.ID == 0 {
			return fmt.Errorf("%w: listing at index %d has no id", common.ErrInvalidListing, i)
		}
		if l.Price < 0 {
			return fmt.Errorf("%w: listing %d has negative price %.2f", common.ErrInvalidListing, l.ID, l.Price)
		}
	}
	return nil
}

func validateRun(run *model.RepriceResponse) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}
	if run.RunID <= 0 {
		return fmt.Errorf("run id must be positive, got %d", run.RunID)
	}
	if len(run.Items) != run.Summary.Scanned {
		return fmt.Errorf("summary scanned %d does not match %d items", run.Summary.Scanned, len(run.Items))
	}
	for i, item := range run.Items {
		if !item.Decision.IsValid() {
			return fmt.Errorf("item at position %d has invalid decision %q", i, item.Decision)
		}
		if item.Reason == "" {
			return fmt.Errorf("item at position %d has no reason", i)
		}
	}
	return nil
}
