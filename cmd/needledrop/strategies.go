package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quietgrove/needledrop/internal/cli"
	"github.com/quietgrove/needledrop/internal/model"
)

func strategiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategies",
		Short: "Manage pricing strategies",
	}

	cmd.AddCommand(strategiesListCmd())
	cmd.AddCommand(strategiesShowCmd())
	cmd.AddCommand(strategiesCreateCmd())
	cmd.AddCommand(strategiesActivateCmd())
	cmd.AddCommand(strategiesDeleteCmd())
	cmd.AddCommand(strategiesExportCmd())
	cmd.AddCommand(strategiesImportCmd())

	return cmd
}

func strategiesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all strategies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			strategies, err := store.ListStrategies(ctx)
			if err != nil {
				return fmt.Errorf("failed to list strategies: %w", err)
			}
			if len(strategies) == 0 {
				fmt.Println(cli.FormatInfo("No strategies yet. Create one with: needledrop strategies create"))
				return nil
			}

			fmt.Println(cli.FormatTitle("Strategies"))
			for _, s := range strategies {
				marker := "  "
				if s.Active {
					marker = cli.SuccessStyle.Render("* ")
				}
				fmt.Printf("%s%-20s v%-3d %s %+.1f%% off %s\n",
					marker, s.Name, s.Version, s.Anchor, s.OffsetValue, offsetUnit(s.OffsetType))
			}
			return nil
		},
	}
}

func offsetUnit(t model.OffsetType) string {
	if t == model.OffsetFixed {
		return "(fixed)"
	}
	return ""
}

func strategiesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show one strategy in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			strategy, err := store.GetStrategy(ctx, args[0])
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(strategy)
			if err != nil {
				return fmt.Errorf("failed to render strategy: %w", err)
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func strategiesCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create or update a strategy",
		Args:  cobra.ExactArgs(1),
		RunE:  runStrategiesCreate,
	}

	cmd.Flags().String("anchor", string(model.AnchorMedian), "anchor statistic (mean, median, mode, cheapest, most_expensive, percentile)")
	cmd.Flags().String("offset-type", string(model.OffsetPercentage), "offset type (percentage, fixed)")
	cmd.Flags().Float64("offset", 0, "offset value; negative undercuts the anchor")
	cmd.Flags().Float64("weight-media", 0.7, "media condition weight [0,1]")
	cmd.Flags().Float64("weight-sleeve", 0.3, "sleeve condition weight [0,1]")
	cmd.Flags().Int("scarcity-threshold", 0, "sample count at or below which the scarcity boost triggers (0: no boost)")
	cmd.Flags().Float64("scarcity-boost", 0, "scarcity boost as percent of anchor")
	cmd.Flags().Float64("floor", 0, "never price below this (0: no floor)")
	cmd.Flags().Float64("ceiling", 0, "never price above this (0: no ceiling)")
	cmd.Flags().Float64("rounding", 0.50, "round prices to this increment")
	cmd.Flags().Float64("max-change", 0, "cap a single change at this percent of the old price (0: no cap)")
	cmd.Flags().Bool("activate", false, "activate the strategy after saving")

	return cmd
}

func runStrategiesCreate(cmd *cobra.Command, args []string) error {
	anchor, _ := cmd.Flags().GetString("anchor")
	offsetType, _ := cmd.Flags().GetString("offset-type")

	strategy := &model.Strategy{
		Name:       args[0],
		Anchor:     model.Anchor(anchor),
		OffsetType: model.OffsetType(offsetType),
	}
	strategy.OffsetValue, _ = cmd.Flags().GetFloat64("offset")
	strategy.ConditionWeights.Media, _ = cmd.Flags().GetFloat64("weight-media")
	strategy.ConditionWeights.Sleeve, _ = cmd.Flags().GetFloat64("weight-sleeve")
	strategy.Rounding, _ = cmd.Flags().GetFloat64("rounding")
	strategy.MaxChangePercent, _ = cmd.Flags().GetFloat64("max-change")

	if threshold, _ := cmd.Flags().GetInt("scarcity-threshold"); threshold > 0 {
		boost, _ := cmd.Flags().GetFloat64("scarcity-boost")
		strategy.ScarcityBoost = &model.ScarcityBoost{Threshold: threshold, BoostPercent: boost}
	}
	if floor, _ := cmd.Flags().GetFloat64("floor"); floor > 0 {
		strategy.Floor = &floor
	}
	if ceiling, _ := cmd.Flags().GetFloat64("ceiling"); ceiling > 0 {
		strategy.Ceiling = &ceiling
	}

	if err := strategy.Validate(); err != nil {
		return fmt.Errorf("invalid strategy: %w", err)
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveStrategy(ctx, strategy); err != nil {
		return fmt.Errorf("failed to save strategy: %w", err)
	}

	if activate, _ := cmd.Flags().GetBool("activate"); activate {
		if err := store.ActivateStrategy(ctx, strategy.Name); err != nil {
			return fmt.Errorf("failed to activate strategy: %w", err)
		}
	}

	fmt.Println(cli.FormatSuccess("Saved strategy " + strategy.Name))
	return nil
}

func strategiesActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <name>",
		Short: "Make a strategy the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.ActivateStrategy(ctx, args[0]); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess("Activated strategy " + args[0]))
			return nil
		},
	}
}

func strategiesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a strategy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteStrategy(ctx, args[0]); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess("Deleted strategy " + args[0]))
			return nil
		},
	}
}

func strategiesExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Export a strategy as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("output")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			strategy, err := store.GetStrategy(ctx, args[0])
			if err != nil {
				return err
			}

			data, err := yaml.Marshal(strategy)
			if err != nil {
				return fmt.Errorf("failed to encode strategy: %w", err)
			}

			if out == "" {
				fmt.Print(string(data))
				return nil
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Println(cli.FormatSuccess("Exported strategy to " + out))
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")
	return cmd
}

func strategiesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a strategy from YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			var strategy model.Strategy
			if err := yaml.Unmarshal(data, &strategy); err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}
			if err := strategy.Validate(); err != nil {
				return fmt.Errorf("invalid strategy in %s: %w", args[0], err)
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.SaveStrategy(ctx, &strategy); err != nil {
				return fmt.Errorf("failed to save strategy: %w", err)
			}
			fmt.Println(cli.FormatSuccess("Imported strategy " + strategy.Name))
			return nil
		},
	}
}
