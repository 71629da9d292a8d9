package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quietgrove/needledrop/internal/cli"
	"github.com/quietgrove/needledrop/internal/service"
)

func listingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Manage the local inventory snapshot",
	}

	cmd.AddCommand(listingsSyncCmd())
	cmd.AddCommand(listingsListCmd())

	return cmd
}

func listingsSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull the full inventory from Discogs into the local database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			market, err := initMarketplace()
			if err != nil {
				return fmt.Errorf("failed to initialize marketplace client: %w", err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			listings, err := market.FetchInventory(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch inventory: %w", err)
			}
			if len(listings) == 0 {
				fmt.Println(cli.FormatInfo("Inventory is empty."))
				return nil
			}

			if err := store.SaveListings(ctx, listings); err != nil {
				return fmt.Errorf("failed to save listings: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Synced %d listings", len(listings))))
			return nil
		},
	}
}

func listingsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the synced inventory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

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
				return err
			}
			if len(listings) == 0 {
				fmt.Println(cli.FormatInfo("No listings match. Run: needledrop listings sync"))
				return nil
			}

			fmt.Println(cli.FormatTitle("Inventory"))
			for _, l := range listings {
				fmt.Printf("%-10d %-40s %8.2f %s  %s/%s  %s\n",
					l.ID, truncate(l.Artist+" — "+l.Title, 40), l.Price, l.Currency,
					l.MediaCondition, l.SleeveCondition, cli.SubtleStyle.Render(l.Status))
			}
			return nil
		},
	}

	cmd.Flags().Float64("min-price", 0, "only listings priced at or above this")
	cmd.Flags().Float64("max-price", 0, "only listings priced at or below this")
	cmd.Flags().String("condition", "", "only listings in this media condition")
	cmd.Flags().String("status", "", "only listings with this status")
	cmd.Flags().Int("limit", 0, "show at most this many listings")

	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
