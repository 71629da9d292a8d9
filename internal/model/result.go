package model

import "time"

// RepriceItemResult is the atomic audit unit: exactly one per listing per
// run, immutable once emitted. HTTPStatus, DiscogsStatus and the rate-limit
// hint are back-filled by the marketplace apply step after the run; the
// engine core never sets them.
type RepriceItemResult struct {
	ListingID          int64    `json:"listing_id"`
	OldPrice           float64  `json:"old_price"`
	NewPrice           float64  `json:"new_price"`
	Currency           string   `json:"currency"`
	Decision           Decision `json:"decision"`
	Reason             string   `json:"reason"`
	Confidence         float64  `json:"confidence"`
	DiscogsStatus      string   `json:"discogs_status,omitempty"`
	HTTPStatus         int      `json:"http_status,omitempty"`
	RateLimitRemaining int      `json:"rate_limit_remaining,omitempty"`
}

// RunSummary counts run items by decision; Errors counts items that failed
// before a decision could be computed (those items are emitted as flagged).
type RunSummary struct {
	Scanned     int `json:"scanned"`
	AutoApplied int `json:"auto_applied"`
	UserApplied int `json:"user_applied"`
	Flagged     int `json:"flagged"`
	Declined    int `json:"declined"`
	Simulated   int `json:"simulated"`
	Errors      int `json:"errors"`
}

// Add records one item's decision in the summary.
func (s *RunSummary) Add(d Decision) {
	s.Scanned++
	switch d {
	case DecisionAutoApplied:
		s.AutoApplied++
	case DecisionUserApplied:
		s.UserApplied++
	case DecisionFlagged:
		s.Flagged++
	case DecisionDeclined:
		s.Declined++
	case DecisionSimulated:
		s.Simulated++
	}
}

// AddError records an item that failed before a decision could be reached.
// Such items are emitted as flagged, so they land in the flagged bucket and
// additionally bump the error overlay counter.
func (s *RunSummary) AddError() {
	s.Add(DecisionFlagged)
	s.Errors++
}

// Partitioned reports whether the decision counters exactly partition the
// scanned count.
func (s RunSummary) Partitioned() bool {
	return s.AutoApplied+s.UserApplied+s.Flagged+s.Declined+s.Simulated == s.Scanned
}

// RepriceResponse is the audit record for one batch run.
type RepriceResponse struct {
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	RunToken   string              `json:"run_token"`
	Strategy   string              `json:"strategy"`
	Items      []RepriceItemResult `json:"items"`
	Summary    RunSummary          `json:"summary"`
	RunID      int64               `json:"run_id"`
	DryRun     bool                `json:"dry_run"`
	Truncated  bool                `json:"truncated"`
}
