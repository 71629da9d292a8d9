package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quietgrove/needledrop/internal/cli"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage the automation policy",
	}

	cmd.AddCommand(rulesShowCmd())
	cmd.AddCommand(rulesSetCmd())

	return cmd
}

func rulesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current automation policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rules, err := store.GetAutomationRules(ctx)
			if err != nil {
				return err
			}

			enabled := cli.ErrorStyle.Render("disabled")
			if rules.Enabled {
				enabled = cli.SuccessStyle.Render("enabled")
			}

			fmt.Println(cli.FormatTitle("Automation policy"))
			fmt.Printf("Automation:          %s\n", enabled)
			fmt.Printf("Auto-apply increases: %t (threshold %.1f%%)\n", rules.AutoApplyIncreases, rules.AutoApplyThreshold)
			fmt.Printf("Require review:      %t\n", rules.RequireReview)
			fmt.Printf("Max price change:    %.1f%%\n", rules.MaxPriceChange)
			fmt.Printf("Price floor/ceiling: %.2f / %.2f\n", rules.MinPriceFloor, rules.MaxPriceCeiling)
			fmt.Printf("Only underpriced:    %t\n", rules.OnlyUnderpriced)
			fmt.Printf("Batch limit:         %d auto-applies per run\n", rules.BatchLimit)
			if len(rules.ExcludeConditions) > 0 {
				fmt.Printf("Excluded conditions: %s\n", strings.Join(rules.ExcludeConditions, ", "))
			}
			return nil
		},
	}
}

func rulesSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update automation policy fields",
		Long: `Update one or more automation policy fields. Only the flags you pass
change; everything else keeps its current value.`,
		RunE: runRulesSet,
	}

	cmd.Flags().Bool("enabled", false, "master switch for any automatic application")
	cmd.Flags().Bool("auto-apply-increases", false, "permit automatic application of increases")
	cmd.Flags().Float64("threshold", 0, "auto-apply increases up to this percent")
	cmd.Flags().Float64("max-change", 0, "policy-wide cap on a single change percent")
	cmd.Flags().Float64("min-floor", 0, "policy-wide price floor")
	cmd.Flags().Float64("max-ceiling", 0, "policy-wide price ceiling")
	cmd.Flags().StringSlice("exclude-conditions", nil, "media conditions excluded from automation (e.g. F,P)")
	cmd.Flags().Bool("only-underpriced", false, "automate only listings priced below the anchor")
	cmd.Flags().Int("batch-limit", 0, "max auto-applies per run")
	cmd.Flags().Bool("require-review", false, "flag everything for review regardless of thresholds")

	return cmd
}

func runRulesSet(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rules, err := store.GetAutomationRules(ctx)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("enabled") {
		rules.Enabled, _ = cmd.Flags().GetBool("enabled")
	}
	if cmd.Flags().Changed("auto-apply-increases") {
		rules.AutoApplyIncreases, _ = cmd.Flags().GetBool("auto-apply-increases")
	}
	if cmd.Flags().Changed("threshold") {
		rules.AutoApplyThreshold, _ = cmd.Flags().GetFloat64("threshold")
	}
	if cmd.Flags().Changed("max-change") {
		rules.MaxPriceChange, _ = cmd.Flags().GetFloat64("max-change")
	}
	if cmd.Flags().Changed("min-floor") {
		rules.MinPriceFloor, _ = cmd.Flags().GetFloat64("min-floor")
	}
	if cmd.Flags().Changed("max-ceiling") {
		rules.MaxPriceCeiling, _ = cmd.Flags().GetFloat64("max-ceiling")
	}
	if cmd.Flags().Changed("exclude-conditions") {
		rules.ExcludeConditions, _ = cmd.Flags().GetStringSlice("exclude-conditions")
	}
	if cmd.Flags().Changed("only-underpriced") {
		rules.OnlyUnderpriced, _ = cmd.Flags().GetBool("only-underpriced")
	}
	if cmd.Flags().Changed("batch-limit") {
		rules.BatchLimit, _ = cmd.Flags().GetInt("batch-limit")
	}
	if cmd.Flags().Changed("require-review") {
		rules.RequireReview, _ = cmd.Flags().GetBool("require-review")
	}

	if err := rules.Validate(); err != nil {
		return fmt.Errorf("invalid automation policy: %w", err)
	}

	if err := store.SaveAutomationRules(ctx, rules); err != nil {
		return fmt.Errorf("failed to save automation rules: %w", err)
	}

	fmt.Println(cli.FormatSuccess("Automation policy updated"))
	return nil
}
