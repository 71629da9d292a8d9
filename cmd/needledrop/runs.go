package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/quietgrove/needledrop/internal/cli"
	"github.com/quietgrove/needledrop/internal/model"
	"github.com/quietgrove/needledrop/internal/report"
	"github.com/quietgrove/needledrop/internal/service"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect past reprice runs",
	}

	cmd.AddCommand(runsListCmd())
	cmd.AddCommand(runsShowCmd())
	cmd.AddCommand(runsExportCmd())

	return cmd
}

func runsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println(cli.FormatInfo("No runs yet."))
				return nil
			}

			fmt.Println(cli.FormatTitle("Reprice runs"))
			for i := range runs {
				fmt.Println(report.Summarize(&runs[i]))
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "show at most this many runs")
	return cmd
}

func runsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its per-listing outcomes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			run, err := store.GetRun(ctx, runID)
			if err != nil {
				return err
			}

			fmt.Println(cli.RenderRunSummary(run))
			fmt.Println(cli.RenderItems(run.Items, runListings(ctx, store, run)))
			return nil
		},
	}
}

func runsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export a run's items as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			out, _ := cmd.Flags().GetString("output")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			run, err := store.GetRun(ctx, runID)
			if err != nil {
				return err
			}

			w := os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			if err := report.WriteRunCSV(w, run, runListings(ctx, store, run)); err != nil {
				return err
			}
			if out != "" {
				fmt.Println(cli.FormatSuccess("Exported run to " + out))
			}
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")
	return cmd
}

// runListings loads the listings referenced by a run so reports can show
// artist and title. Missing listings are simply omitted.
func runListings(ctx context.Context, store service.Storage, run *model.RepriceResponse) map[int64]model.Listing {
	listings := make(map[int64]model.Listing, len(run.Items))
	for _, item := range run.Items {
		l, err := store.GetListing(ctx, item.ListingID)
		if err != nil {
			continue
		}
		listings[item.ListingID] = *l
	}
	return listings
}
