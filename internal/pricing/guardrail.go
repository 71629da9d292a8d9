package pricing

import (
	"fmt"
	"math"

	"github.com/quietgrove/needledrop/internal/common"
	"github.com/quietgrove/needledrop/internal/model"
)

// GuardrailResult describes what the guardrail did to a candidate price.
type GuardrailResult struct {
	Notes      []string
	FinalPrice float64
	Clamped    bool
}

// Enforce rounds the raw candidate to the strategy's increment, clamps it to
// the strategy and policy floor/ceiling, and caps the percent change against
// the tighter of the strategy and policy limits. The returned price is always
// an exact multiple of strategy.Rounding and inside every configured bound.
func Enforce(rawPrice, oldPrice float64, strategy model.Strategy, rules model.AutomationRules) (GuardrailResult, error) {
	if strategy.Rounding <= 0 {
		return GuardrailResult{}, fmt.Errorf("%w: rounding increment %.2f", common.ErrStrategyMisconfigured, strategy.Rounding)
	}
	if strategy.Floor != nil && strategy.Ceiling != nil && *strategy.Floor > *strategy.Ceiling {
		return GuardrailResult{}, fmt.Errorf("%w: floor %.2f exceeds ceiling %.2f", common.ErrStrategyMisconfigured, *strategy.Floor, *strategy.Ceiling)
	}
	if oldPrice <= 0 {
		return GuardrailResult{}, fmt.Errorf("%w: current price %.2f", common.ErrDegeneratePrice, oldPrice)
	}

	res := GuardrailResult{FinalPrice: roundHalfUp(rawPrice, strategy.Rounding)}

	// Strategy bounds first, then policy bounds; the tighter constraint wins
	// because both are applied.
	res.clampFloor(strategy.Floor, strategy.Rounding, "strategy floor")
	res.clampCeiling(strategy.Ceiling, strategy.Rounding, "strategy ceiling")
	if rules.MinPriceFloor > 0 {
		res.clampFloor(&rules.MinPriceFloor, strategy.Rounding, "policy floor")
	}
	if rules.MaxPriceCeiling > 0 {
		res.clampCeiling(&rules.MaxPriceCeiling, strategy.Rounding, "policy ceiling")
	}

	// Percent-change cap: the tighter of the strategy and policy limits.
	// A zero limit means the corresponding side sets no cap.
	limit := changeLimit(strategy.MaxChangePercent, rules.MaxPriceChange)
	if limit > 0 {
		change := PercentChange(oldPrice, res.FinalPrice)
		if math.Abs(change) > limit {
			bound := oldPrice * (1 + limit/100)
			rounded := roundDown(bound, strategy.Rounding)
			if change < 0 {
				bound = oldPrice * (1 - limit/100)
				rounded = roundUp(bound, strategy.Rounding)
			}
			res.FinalPrice = rounded
			res.Clamped = true
			res.Notes = append(res.Notes, fmt.Sprintf("change capped at %.1f%% (was %.1f%%)", limit, change))
		}
	}

	return res, nil
}

// PercentChange returns the percent change from old to new.
func PercentChange(oldPrice, newPrice float64) float64 {
	return (newPrice - oldPrice) / oldPrice * 100
}

func (r *GuardrailResult) clampFloor(floor *float64, rounding float64, note string) {
	if floor == nil || r.FinalPrice >= *floor {
		return
	}
	// Round up so the result stays a multiple of the increment without
	// dipping back below the floor.
	r.FinalPrice = roundUp(*floor, rounding)
	r.Clamped = true
	r.Notes = append(r.Notes, fmt.Sprintf("raised to %s %.2f", note, *floor))
}

func (r *GuardrailResult) clampCeiling(ceiling *float64, rounding float64, note string) {
	if ceiling == nil || r.FinalPrice <= *ceiling {
		return
	}
	r.FinalPrice = roundDown(*ceiling, rounding)
	r.Clamped = true
	r.Notes = append(r.Notes, fmt.Sprintf("lowered to %s %.2f", note, *ceiling))
}

// changeLimit picks the tighter of two percent-change caps, treating zero as
// unset.
func changeLimit(strategyLimit, policyLimit float64) float64 {
	switch {
	case strategyLimit <= 0:
		return policyLimit
	case policyLimit <= 0:
		return strategyLimit
	default:
		return math.Min(strategyLimit, policyLimit)
	}
}

func roundHalfUp(v, increment float64) float64 {
	return snap(math.Floor(v/increment+0.5) * increment)
}

func roundUp(v, increment float64) float64 {
	return snap(math.Ceil(v/increment-1e-9) * increment)
}

func roundDown(v, increment float64) float64 {
	return snap(math.Floor(v/increment+1e-9) * increment)
}

// snap trims float noise so prices compare cleanly to two decimal places.
func snap(v float64) float64 {
	return math.Round(v*100) / 100
}
