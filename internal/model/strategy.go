package model

import "time"

// Anchor selects which market statistic a strategy prices from.
type Anchor string

// Anchor constants.
const (
	AnchorMean          Anchor = "mean"
	AnchorMedian        Anchor = "median"
	AnchorMode          Anchor = "mode"
	AnchorCheapest      Anchor = "cheapest"
	AnchorMostExpensive Anchor = "most_expensive"
	AnchorPercentile    Anchor = "percentile"
)

// IsValid reports whether a is a known anchor.
func (a Anchor) IsValid() bool {
	switch a {
	case AnchorMean, AnchorMedian, AnchorMode, AnchorCheapest, AnchorMostExpensive, AnchorPercentile:
		return true
	}
	return false
}

// OffsetType determines how a strategy's offset is applied to the anchor.
type OffsetType string

// Offset type constants.
const (
	// OffsetPercentage multiplies the anchor by (1 + value/100).
	OffsetPercentage OffsetType = "percentage"
	// OffsetFixed adds the value directly to the anchor.
	OffsetFixed OffsetType = "fixed"
)

// ConditionWeights blends media and sleeve condition into the offset
// contribution. Each weight is in [0,1]; they typically sum to 1.
type ConditionWeights struct {
	Media  float64 `yaml:"media"`
	Sleeve float64 `yaml:"sleeve"`
}

// ScarcityBoost adds a premium when the comparable sample is thin.
type ScarcityBoost struct {
	// Threshold is the sample count at or below which the boost triggers.
	Threshold int `yaml:"threshold"`
	// BoostPercent is added as a percentage of the anchor value.
	BoostPercent float64 `yaml:"boost_percent"`
}

// Strategy is a named, versioned pricing configuration. It is plain data:
// created and edited by the user, never mutated by the engine. Exactly one
// strategy is active at a time.
type Strategy struct {
	CreatedAt        time.Time        `yaml:"-"`
	UpdatedAt        time.Time        `yaml:"-"`
	Name             string           `yaml:"name"`
	Anchor           Anchor           `yaml:"anchor"`
	OffsetType       OffsetType       `yaml:"offset_type"`
	ScarcityBoost    *ScarcityBoost   `yaml:"scarcity_boost,omitempty"`
	Floor            *float64         `yaml:"floor,omitempty"`
	Ceiling          *float64         `yaml:"ceiling,omitempty"`
	ConditionWeights ConditionWeights `yaml:"condition_weights"`
	OffsetValue      float64          `yaml:"offset_value"`
	Rounding         float64          `yaml:"rounding"`
	MaxChangePercent float64          `yaml:"max_change_percent"`
	Version          int              `yaml:"version"`
	ID               int64            `yaml:"-"`
	Active           bool             `yaml:"-"`
}

// Validate checks the strategy for configuration errors that would make
// pricing arithmetic undefined.
func (s *Strategy) Validate() error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Message: "strategy name is required"}
	}
	if !s.Anchor.IsValid() {
		return &ValidationError{Field: "anchor", Message: "unknown anchor " + string(s.Anchor)}
	}
	if s.OffsetType != OffsetPercentage && s.OffsetType != OffsetFixed {
		return &ValidationError{Field: "offset_type", Message: "unknown offset type " + string(s.OffsetType)}
	}
	if s.Rounding <= 0 {
		return &ValidationError{Field: "rounding", Message: "rounding increment must be positive"}
	}
	if s.MaxChangePercent < 0 {
		return &ValidationError{Field: "max_change_percent", Message: "max change percent cannot be negative"}
	}
	if s.ConditionWeights.Media < 0 || s.ConditionWeights.Media > 1 {
		return &ValidationError{Field: "condition_weights.media", Message: "weight must be in [0,1]"}
	}
	if s.ConditionWeights.Sleeve < 0 || s.ConditionWeights.Sleeve > 1 {
		return &ValidationError{Field: "condition_weights.sleeve", Message: "weight must be in [0,1]"}
	}
	if s.Floor != nil && s.Ceiling != nil && *s.Floor > *s.Ceiling {
		return &ValidationError{Field: "floor", Message: "floor exceeds ceiling"}
	}
	return nil
}

// ValidationError describes a single invalid strategy or rules field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
