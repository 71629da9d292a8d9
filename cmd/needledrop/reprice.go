package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/quietgrove/needledrop/internal/cli"
	"github.com/quietgrove/needledrop/internal/common"
	"github.com/quietgrove/needledrop/internal/engine"
	"github.com/quietgrove/needledrop/internal/model"
	"github.com/quietgrove/needledrop/internal/service"
)

func repriceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reprice",
		Short: "Reprice listings against current market statistics",
		Long: `Run the repricing pipeline over your inventory: compute a candidate price
per listing, clamp it with guardrails, and classify the outcome. Increases
within the automation policy are applied to Discogs; everything else is
flagged for review or declined. Use --dry-run to simulate without touching
any listing.`,
		RunE: runReprice,
	}

	cmd.Flags().String("strategy", "", "strategy name (default: the active strategy)")
	cmd.Flags().Bool("dry-run", false, "simulate only; no price is ever applied")
	cmd.Flags().Int64Slice("listing", nil, "reprice only these listing ids")
	cmd.Flags().Int64Slice("approve", nil, "listing ids pre-approved for application this run")
	cmd.Flags().Float64("min-price", 0, "only listings priced at or above this")
	cmd.Flags().Float64("max-price", 0, "only listings priced at or below this")
	cmd.Flags().String("condition", "", "only listings in this media condition (e.g. NM)")
	cmd.Flags().String("status", "", "only listings with this marketplace status")
	cmd.Flags().Int("limit", 0, "process at most this many listings")
	cmd.Flags().Bool("offline", false, "skip the market data API; listings without cached stats are flagged")
	cmd.Flags().Bool("show-items", false, "print the per-listing outcome table")

	return cmd
}

func runReprice(cmd *cobra.Command, _ []string) error {
	strategyName, _ := cmd.Flags().GetString("strategy")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	listingIDs, _ := cmd.Flags().GetInt64Slice("listing")
	approvedIDs, _ := cmd.Flags().GetInt64Slice("approve")
	offline, _ := cmd.Flags().GetBool("offline")
	showItems, _ := cmd.Flags().GetBool("show-items")

	handler := cli.NewInterruptHandler(os.Stdout)
	ctx := handler.HandleInterrupts(cmd.Context())

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	strategy, err := resolveStrategy(ctx, store, strategyName)
	if err != nil {
		return fmt.Errorf("failed to load strategy: %w", err)
	}

	rules, err := store.GetAutomationRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load automation rules: %w", err)
	}

	listings, err := selectListings(ctx, cmd, store, listingIDs)
	if err != nil {
		return err
	}
	if len(listings) == 0 {
		fmt.Println(cli.FormatInfo("No listings match the given scope."))
		return nil
	}

	provider, err := initMarketData(offline)
	if err != nil {
		return fmt.Errorf("failed to initialize market data provider: %w", err)
	}

	stats := gatherStats(ctx, provider, listings)

	eng, err := engine.New(ctx, store, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	bar := cli.NewRepriceProgress(os.Stdout, len(listings), dryRun)

	run, err := eng.Run(ctx, listings, stats, *strategy, rules, engine.RunOptions{
		Progress:    func(_, _ int) { _ = bar.Add(1) },
		ApprovedIDs: approvedIDs,
		DryRun:      dryRun,
		Persist:     true,
	})
	if err != nil {
		return err
	}
	_ = bar.Finish()

	if !dryRun {
		if err := applyRun(ctx, store, run); err != nil {
			return err
		}
	}

	fmt.Println(cli.RenderRunSummary(run))
	if showItems {
		fmt.Println(cli.RenderItems(run.Items, listingMap(listings)))
	}

	// A truncated run persisted everything it processed, but the caller
	// should still see a non-zero exit.
	if run.Truncated {
		return fmt.Errorf("%w: run %d processed %d of %d listings", common.ErrRunAborted, run.RunID, len(run.Items), len(listings))
	}

	return nil
}

// selectListings resolves the run scope: explicit ids win, otherwise the
// filter flags select from the synced inventory.
func selectListings(ctx context.Context, cmd *cobra.Command, store service.Storage, ids []int64) ([]model.Listing, error) {
	if len(ids) > 0 {
		listings := make([]model.Listing, 0, len(ids))
		for _, id := range ids {
			l, err := store.GetListing(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("failed to load listing %d: %w", id, err)
			}
			listings = append(listings, *l)
		}
		return listings, nil
	}

	var filter service.ListingFilter
	if v, _ := cmd.Flags().GetFloat64("min-price"); v > 0 {
		filter.MinPrice = &v
	}
	if v, _ := cmd.Flags().GetFloat64("max-price"); v > 0 {
		filter.MaxPrice = &v
	}
	filter.Condition, _ = cmd.Flags().GetString("condition")
	filter.Status, _ = cmd.Flags().GetString("status")
	filter.Limit, _ = cmd.Flags().GetInt("limit")

	listings, err := store.GetListings(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load listings: %w", err)
	}
	return listings, nil
}

// gatherStats fetches statistics per listing. Lookup failures are left out of
// the map; the engine flags those listings individually.
func gatherStats(ctx context.Context, provider service.MarketData, listings []model.Listing) map[int64]model.MarketStatistics {
	stats := make(map[int64]model.MarketStatistics, len(listings))
	for _, l := range listings {
		s, err := provider.StatsFor(ctx, l)
		if err != nil {
			if !errors.Is(err, common.ErrNotFound) {
				slog.Warn("Market data lookup failed", "listing_id", l.ID, "error", err)
			}
			continue
		}
		stats[l.ID] = *s
	}
	return stats
}

// applyRun pushes applied decisions to the marketplace and back-fills the
// response status into the persisted audit items. An apply failure downgrades
// nothing: the decision stands, the failure is logged against the item.
func applyRun(ctx context.Context, store service.Storage, run *model.RepriceResponse) error {
	var toApply []model.RepriceItemResult
	for _, item := range run.Items {
		if item.Decision.Applies() {
			toApply = append(toApply, item)
		}
	}
	if len(toApply) == 0 {
		return nil
	}

	market, err := initMarketplace()
	if err != nil {
		return fmt.Errorf("failed to initialize marketplace client: %w", err)
	}

	applied := 0
	for _, item := range toApply {
		status, err := market.UpdatePrice(ctx, item.ListingID, item.NewPrice)
		if err != nil {
			slog.Error("Failed to apply price",
				"run_id", run.RunID,
				"listing_id", item.ListingID,
				"price", item.NewPrice,
				"error", err)
		} else {
			applied++
		}

		if status.HTTPStatus != 0 {
			if err := store.BackfillItemStatus(ctx, run.RunID, item.ListingID, status); err != nil {
				slog.Warn("Failed to record apply status",
					"run_id", run.RunID,
					"listing_id", item.ListingID,
					"error", err)
			}
		}
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Applied %d of %d price changes to Discogs", applied, len(toApply))))
	return nil
}

func listingMap(listings []model.Listing) map[int64]model.Listing {
	m := make(map[int64]model.Listing, len(listings))
	for _, l := range listings {
		m[l.ID] = l
	}
	return m
}
