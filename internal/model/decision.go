// Package model defines the core domain models used throughout the application.
package model

// Decision is the classified outcome of repricing a single listing in one run.
type Decision string

// Decision constants. The set is closed; anything else is a bug.
const (
	// DecisionAutoApplied means the price change was safe to apply without review.
	DecisionAutoApplied Decision = "auto_applied"
	// DecisionUserApplied means the user explicitly approved this listing for the run.
	DecisionUserApplied Decision = "user_applied"
	// DecisionFlagged means the change needs manual review before it may be applied.
	DecisionFlagged Decision = "flagged"
	// DecisionDeclined means the user rejected the suggested change.
	DecisionDeclined Decision = "declined"
	// DecisionSimulated means the run was a dry run; nothing was applied.
	DecisionSimulated Decision = "simulated"
)

// AllDecisions lists every valid decision, in summary-partition order.
var AllDecisions = []Decision{
	DecisionAutoApplied,
	DecisionUserApplied,
	DecisionFlagged,
	DecisionDeclined,
	DecisionSimulated,
}

// IsValid reports whether d is one of the closed decision constants.
func (d Decision) IsValid() bool {
	switch d {
	case DecisionAutoApplied, DecisionUserApplied, DecisionFlagged, DecisionDeclined, DecisionSimulated:
		return true
	}
	return false
}

// Applies reports whether the decision results in a marketplace price update.
func (d Decision) Applies() bool {
	return d == DecisionAutoApplied || d == DecisionUserApplied
}
