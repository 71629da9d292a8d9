// Package engine orchestrates batch repricing runs over the pricing core.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/quietgrove/needledrop/internal/model"
	"github.com/quietgrove/needledrop/internal/pricing"
	"github.com/quietgrove/needledrop/internal/service"
)

// Engine runs the compute → enforce → classify pipeline across a batch of
// listings and produces exactly one audit item per input listing, whatever
// happens to the individual listings.
type Engine struct {
	storage    service.Storage
	calculator *pricing.Calculator
	runID      atomic.Int64
}

// RunOptions controls a single batch run.
type RunOptions struct {
	// Progress, when set, is called after each processed listing.
	Progress func(done, total int)
	// ApprovedIDs are listings the user explicitly approved for this run.
	ApprovedIDs []int64
	// DryRun computes and classifies without permitting any application.
	DryRun bool
	// Persist saves the finished run to the audit log.
	Persist bool
}

// New creates an engine. The run-id counter is seeded from the audit log so
// ids stay monotonic across process restarts.
func New(ctx context.Context, storage service.Storage, grades model.GradeScale) (*Engine, error) {
	e := &Engine{
		storage:    storage,
		calculator: pricing.NewCalculator(grades),
	}

	maxID, err := storage.MaxRunID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to seed run id counter: %w", err)
	}
	e.runID.Store(maxID)

	return e, nil
}

// Run reprices the given listings in order. Statistics are looked up per
// listing from statsByListing; a missing or invalid entry flags that listing
// and counts as an error without aborting the batch. Cancellation between
// listings returns the partial response with Truncated set.
func (e *Engine) Run(
	ctx context.Context,
	listings []model.Listing,
	statsByListing map[int64]model.MarketStatistics,
	strategy model.Strategy,
	rules model.AutomationRules,
	opts RunOptions,
) (*model.RepriceResponse, error) {
	resp := &model.RepriceResponse{
		RunID:     e.runID.Add(1),
		RunToken:  uuid.NewString(),
		Strategy:  strategy.Name,
		DryRun:    opts.DryRun,
		StartedAt: time.Now(),
		Items:     make([]model.RepriceItemResult, 0, len(listings)),
	}

	slog.Info("Starting reprice run",
		"run_id", resp.RunID,
		"strategy", strategy.Name,
		"listings", len(listings),
		"dry_run", opts.DryRun,
		"automation_enabled", rules.Enabled)

	approved := make(map[int64]bool, len(opts.ApprovedIDs))
	for _, id := range opts.ApprovedIDs {
		approved[id] = true
	}

	// BatchLimit is a cross-listing invariant, so the counter advances only
	// here, between pipeline invocations.
	autoApplied := 0

	for i, listing := range listings {
		select {
		case <-ctx.Done():
			resp.Truncated = true
			resp.FinishedAt = time.Now()
			slog.Warn("Reprice run aborted",
				"run_id", resp.RunID,
				"processed", len(resp.Items),
				"remaining", len(listings)-len(resp.Items))
			return e.finish(resp, opts)
		default:
		}

		item := e.repriceOne(listing, statsByListing, strategy, rules, approved[listing.ID], autoApplied, opts.DryRun, resp)
		if item.Decision == model.DecisionAutoApplied {
			autoApplied++
		}
		resp.Items = append(resp.Items, item)

		if opts.Progress != nil {
			opts.Progress(i+1, len(listings))
		}
	}

	resp.FinishedAt = time.Now()

	slog.Info("Reprice run complete",
		"run_id", resp.RunID,
		"scanned", resp.Summary.Scanned,
		"auto_applied", resp.Summary.AutoApplied,
		"user_applied", resp.Summary.UserApplied,
		"flagged", resp.Summary.Flagged,
		"errors", resp.Summary.Errors)

	return e.finish(resp, opts)
}

// repriceOne runs one listing through the pipeline and always returns an
// item. Pipeline failures become flagged items with zero confidence.
func (e *Engine) repriceOne(
	listing model.Listing,
	statsByListing map[int64]model.MarketStatistics,
	strategy model.Strategy,
	rules model.AutomationRules,
	approved bool,
	autoAppliedSoFar int,
	dryRun bool,
	resp *model.RepriceResponse,
) model.RepriceItemResult {
	stats, ok := statsByListing[listing.ID]
	if !ok {
		return e.errorItem(listing, "no market statistics available", resp)
	}

	raw, err := e.calculator.Compute(strategy, stats, listing.MediaCondition, listing.SleeveCondition)
	if err != nil {
		return e.errorItem(listing, fmt.Sprintf("price computation failed: %v", err), resp)
	}

	guarded, err := pricing.Enforce(raw, listing.Price, strategy, rules)
	if err != nil {
		return e.errorItem(listing, fmt.Sprintf("guardrail check failed: %v", err), resp)
	}

	anchor, _ := pricing.AnchorValue(strategy.Anchor, stats)

	outcome := pricing.Classify(pricing.Input{
		Rules:            rules,
		Stats:            stats,
		Guardrail:        guarded,
		MediaCondition:   listing.MediaCondition,
		SleeveCondition:  listing.SleeveCondition,
		OldPrice:         listing.Price,
		NewPrice:         guarded.FinalPrice,
		AnchorValue:      anchor,
		AutoAppliedSoFar: autoAppliedSoFar,
		DryRun:           dryRun,
		Approved:         approved,
	})

	resp.Summary.Add(outcome.Decision)

	slog.Debug("Classified listing",
		"run_id", resp.RunID,
		"listing_id", listing.ID,
		"old_price", listing.Price,
		"new_price", guarded.FinalPrice,
		"decision", outcome.Decision,
		"rule", outcome.Rule)

	return model.RepriceItemResult{
		ListingID:  listing.ID,
		OldPrice:   listing.Price,
		NewPrice:   guarded.FinalPrice,
		Currency:   listing.Currency,
		Decision:   outcome.Decision,
		Reason:     outcome.Reason,
		Confidence: outcome.Confidence,
	}
}

// errorItem records a listing-local failure: one flagged item, zero
// confidence, error counter bumped. The batch carries on.
func (e *Engine) errorItem(listing model.Listing, reason string, resp *model.RepriceResponse) model.RepriceItemResult {
	resp.Summary.AddError()

	slog.Warn("Listing failed before classification",
		"run_id", resp.RunID,
		"listing_id", listing.ID,
		"reason", reason)

	return model.RepriceItemResult{
		ListingID:  listing.ID,
		OldPrice:   listing.Price,
		NewPrice:   listing.Price,
		Currency:   listing.Currency,
		Decision:   model.DecisionFlagged,
		Reason:     reason,
		Confidence: 0,
	}
}

// finish optionally persists the run. Persistence failures do not invalidate
// the in-memory response; the caller still gets the full audit record.
func (e *Engine) finish(resp *model.RepriceResponse, opts RunOptions) (*model.RepriceResponse, error) {
	if opts.Persist {
		if err := e.storage.SaveRun(context.Background(), resp); err != nil {
			slog.Error("Failed to persist reprice run", "run_id", resp.RunID, "error", err)
			return resp, fmt.Errorf("failed to persist run %d: %w", resp.RunID, err)
		}
	}
	return resp, nil
}
