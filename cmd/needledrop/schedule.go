package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quietgrove/needledrop/internal/cli"
	"github.com/quietgrove/needledrop/internal/common"
	"github.com/quietgrove/needledrop/internal/engine"
	"github.com/quietgrove/needledrop/internal/scheduler"
)

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run repricing on a cron schedule",
		Long: `Stay resident and run the full pipeline (inventory sync, reprice, apply)
on a cron cadence. The schedule comes from the automation.schedule config
key or the --cron flag, standard five-field syntax.

Scheduled passes always honor the persisted automation policy; nothing is
applied unless automation is enabled.`,
		RunE: runSchedule,
	}

	cmd.Flags().String("cron", "", "cron expression (overrides automation.schedule)")
	cmd.Flags().Bool("now", false, "run one pass immediately, then exit")
	cmd.Flags().Duration("timeout", 30*time.Minute, "per-pass timeout")

	return cmd
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	spec, _ := cmd.Flags().GetString("cron")
	if spec == "" {
		spec = viper.GetString("automation.schedule")
	}
	now, _ := cmd.Flags().GetBool("now")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	sched, err := scheduler.New(spec, timeout, scheduledPass)
	if err != nil {
		return err
	}

	if now {
		return sched.RunOnce(cmd.Context())
	}

	if err := sched.Start(cmd.Context()); err != nil {
		return err
	}
	fmt.Println(cli.FormatInfo(fmt.Sprintf("Scheduler running; next pass at %s", sched.Next(time.Now()).Format(time.RFC1123))))

	<-cmd.Context().Done()
	sched.Stop()
	return nil
}

// scheduledPass is one unattended pipeline pass: sync inventory, reprice
// everything with the active strategy, apply what the policy permits.
func scheduledPass(ctx context.Context) error {
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	market, err := initMarketplace()
	if err != nil {
		return err
	}

	listings, err := market.FetchInventory(ctx)
	if err != nil {
		return fmt.Errorf("failed to sync inventory: %w", err)
	}
	if len(listings) > 0 {
		if err := store.SaveListings(ctx, listings); err != nil {
			return fmt.Errorf("failed to save inventory: %w", err)
		}
	}

	strategy, err := store.GetActiveStrategy(ctx)
	if err != nil {
		return fmt.Errorf("no active strategy for scheduled pass: %w", err)
	}
	rules, err := store.GetAutomationRules(ctx)
	if err != nil {
		return err
	}

	provider, err := initMarketData(false)
	if err != nil {
		return err
	}
	stats := gatherStats(ctx, provider, listings)

	eng, err := engine.New(ctx, store, nil)
	if err != nil {
		return err
	}

	run, err := eng.Run(ctx, listings, stats, *strategy, rules, engine.RunOptions{Persist: true})
	if err != nil {
		return err
	}

	// Apply what was decided even when the pass timed out mid-run, then
	// surface the truncation so the scheduler logs the pass as failed.
	if err := applyRun(ctx, store, run); err != nil {
		return err
	}
	if run.Truncated {
		return fmt.Errorf("%w: run %d", common.ErrRunAborted, run.RunID)
	}
	return nil
}
