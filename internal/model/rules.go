package model

import "time"

// AutomationRules is the user-controlled safety policy for automatic price
// changes. Loaded once per run and never mutated mid-run.
type AutomationRules struct {
	UpdatedAt          time.Time
	ExcludeConditions  []string
	AutoApplyThreshold float64
	MaxPriceChange     float64
	MinPriceFloor      float64
	MaxPriceCeiling    float64
	BatchLimit         int
	Enabled            bool
	AutoApplyIncreases bool
	OnlyUnderpriced    bool
	RequireReview      bool
}

// DefaultAutomationRules returns a conservative policy: automation off,
// 10% auto-apply threshold, 25% hard change cap, 50 items per run.
func DefaultAutomationRules() AutomationRules {
	return AutomationRules{
		Enabled:            false,
		AutoApplyIncreases: true,
		AutoApplyThreshold: 10,
		MaxPriceChange:     25,
		BatchLimit:         50,
		RequireReview:      true,
	}
}

// ConditionExcluded reports whether the given condition code is in the
// never-auto-apply set. Matching is exact on the Discogs grade code.
func (r AutomationRules) ConditionExcluded(condition string) bool {
	for _, c := range r.ExcludeConditions {
		if c == condition {
			return true
		}
	}
	return false
}

// Validate checks the rules for values that would make guardrail arithmetic
// undefined.
func (r AutomationRules) Validate() error {
	if r.AutoApplyThreshold < 0 {
		return &ValidationError{Field: "auto_apply_threshold", Message: "threshold cannot be negative"}
	}
	if r.MaxPriceChange < 0 {
		return &ValidationError{Field: "max_price_change", Message: "max change cannot be negative"}
	}
	if r.BatchLimit < 0 {
		return &ValidationError{Field: "batch_limit", Message: "batch limit cannot be negative"}
	}
	if r.MinPriceFloor < 0 {
		return &ValidationError{Field: "min_price_floor", Message: "floor cannot be negative"}
	}
	if r.MaxPriceCeiling > 0 && r.MinPriceFloor > r.MaxPriceCeiling {
		return &ValidationError{Field: "min_price_floor", Message: "floor exceeds ceiling"}
	}
	return nil
}
