package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/quietgrove/needledrop/internal/model"
)

// NewRepriceProgress builds the progress bar shown during a batch run.
func NewRepriceProgress(w io.Writer, total int, dryRun bool) *progressbar.ProgressBar {
	desc := "Repricing listings"
	if dryRun {
		desc = "Simulating reprice"
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)
}

// RenderRunSummary renders the post-run summary box.
func RenderRunSummary(run *model.RepriceResponse) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Scanned:      %d\n", run.Summary.Scanned)
	if run.DryRun {
		fmt.Fprintf(&b, "Simulated:    %s\n", InfoStyle.Render(fmt.Sprintf("%d", run.Summary.Simulated)))
	} else {
		fmt.Fprintf(&b, "Auto-applied: %s\n", SuccessStyle.Render(fmt.Sprintf("%d", run.Summary.AutoApplied)))
		fmt.Fprintf(&b, "User-applied: %s\n", SuccessStyle.Render(fmt.Sprintf("%d", run.Summary.UserApplied)))
		fmt.Fprintf(&b, "Flagged:      %s\n", WarningStyle.Render(fmt.Sprintf("%d", run.Summary.Flagged)))
		fmt.Fprintf(&b, "Declined:     %s\n", SubtleStyle.Render(fmt.Sprintf("%d", run.Summary.Declined)))
	}
	if run.Summary.Errors > 0 {
		fmt.Fprintf(&b, "Errors:       %s\n", ErrorStyle.Render(fmt.Sprintf("%d", run.Summary.Errors)))
	}
	if run.Truncated {
		b.WriteString(WarningStyle.Render("Run was interrupted before finishing") + "\n")
	}

	title := fmt.Sprintf("Run %d — %s", run.RunID, run.Strategy)
	if run.DryRun {
		title += " (dry run)"
	}
	return RenderBox(title, strings.TrimRight(b.String(), "\n"))
}

// RenderItems renders a run's per-listing outcomes as an aligned table.
// Titles come from the listing map when available.
func RenderItems(items []model.RepriceItemResult, listings map[int64]model.Listing) string {
	if len(items) == 0 {
		return SubtleStyle.Render("no items")
	}

	var b strings.Builder
	header := fmt.Sprintf("%-10s %-30s %9s %9s  %-12s %s",
		"LISTING", "TITLE", "OLD", "NEW", "DECISION", "REASON")
	b.WriteString(TableHeaderStyle.Render(header) + "\n")

	for _, item := range items {
		title := ""
		if l, ok := listings[item.ListingID]; ok {
			title = l.Artist + " — " + l.Title
		}
		if len(title) > 30 {
			title = title[:27] + "..."
		}

		// Pad before styling so ANSI codes don't skew the columns.
		decision := DecisionStyle(item.Decision).Render(fmt.Sprintf("%-12s", item.Decision))
		line := fmt.Sprintf("%-10d %-30s %9.2f %9.2f  %s %s",
			item.ListingID, title, item.OldPrice, item.NewPrice,
			decision, SubtleStyle.Render(item.Reason))
		b.WriteString(line + "\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
