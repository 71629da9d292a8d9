// Package report renders persisted reprice runs for export.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/quietgrove/needledrop/internal/model"
)

var runCSVHeader = []string{
	"run_id", "listing_id", "artist", "title", "old_price", "new_price",
	"currency", "decision", "reason", "confidence", "discogs_status",
	"http_status",
}

// WriteRunCSV writes one run's items as CSV. Listing titles come from the
// caller so the report can include artist/title without the report package
// touching storage; pass nil to omit them.
func WriteRunCSV(w io.Writer, run *model.RepriceResponse, listings map[int64]model.Listing) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(runCSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, item := range run.Items {
		var artist, title string
		if l, ok := listings[item.ListingID]; ok {
			artist = l.Artist
			title = l.Title
		}

		row := escapeRow([]string{
			strconv.FormatInt(run.RunID, 10),
			strconv.FormatInt(item.ListingID, 10),
			artist,
			title,
			formatPrice(item.OldPrice),
			formatPrice(item.NewPrice),
			item.Currency,
			string(item.Decision),
			item.Reason,
			strconv.FormatFloat(item.Confidence, 'f', 2, 64),
			item.DiscogsStatus,
			formatHTTPStatus(item.HTTPStatus),
		})
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write item for listing %d: %w", item.ListingID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatHTTPStatus(code int) string {
	if code == 0 {
		return ""
	}
	return strconv.Itoa(code)
}

// escapeCell protects against spreadsheet formula injection. A cell starting
// with a formula indicator gets a leading single quote so it renders as text.
func escapeCell(value string) string {
	if value == "" {
		return value
	}

	switch value[0] {
	case '=', '+', '-', '@', '|', '%', '\t', '\r', '\n':
		return "'" + value
	}

	return value
}

func escapeRow(row []string) []string {
	escaped := make([]string, len(row))
	for i, cell := range row {
		escaped[i] = escapeCell(cell)
	}
	return escaped
}

// Summarize renders a one-line text summary of a run, used by the CLI and
// the scheduler log.
func Summarize(run *model.RepriceResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %d (%s): %d scanned", run.RunID, run.Strategy, run.Summary.Scanned)
	if run.DryRun {
		fmt.Fprintf(&b, ", %d simulated", run.Summary.Simulated)
	} else {
		fmt.Fprintf(&b, ", %d auto-applied, %d user-applied, %d flagged, %d declined",
			run.Summary.AutoApplied, run.Summary.UserApplied,
			run.Summary.Flagged, run.Summary.Declined)
	}
	if run.Summary.Errors > 0 {
		fmt.Fprintf(&b, ", %d errors", run.Summary.Errors)
	}
	if run.Truncated {
		b.WriteString(" (truncated)")
	}
	return b.String()
}
