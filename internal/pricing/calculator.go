// Package pricing implements the repricing decision core: candidate price
// computation, guardrail enforcement, and automation classification. All of
// it is pure and side-effect free; orchestration lives in the engine package.
package pricing

import (
	"fmt"

	"github.com/quietgrove/needledrop/internal/common"
	"github.com/quietgrove/needledrop/internal/model"
)

// Calculator turns a strategy plus one listing's market statistics into a
// raw candidate price. The result is neither rounded nor clamped; that is
// the guardrail's job.
type Calculator struct {
	grades model.GradeScale
}

// NewCalculator creates a calculator using the given condition grade scale.
// A nil scale falls back to the default Mint=1.0..Poor=0.2 mapping.
func NewCalculator(grades model.GradeScale) *Calculator {
	if grades == nil {
		grades = model.DefaultGradeScale()
	}
	return &Calculator{grades: grades}
}

// Compute applies the strategy to the statistics for a listing in the given
// media and sleeve condition. It fails with ErrInvalidStatistics when the
// comparable sample is empty or the anchor value is not a positive amount.
func (c *Calculator) Compute(strategy model.Strategy, stats model.MarketStatistics, mediaCondition, sleeveCondition string) (float64, error) {
	if stats.Count == 0 {
		return 0, fmt.Errorf("%w: empty comparable sample", common.ErrInvalidStatistics)
	}

	anchor, err := AnchorValue(strategy.Anchor, stats)
	if err != nil {
		return 0, err
	}
	if anchor <= 0 {
		return 0, fmt.Errorf("%w: anchor %s is %.2f", common.ErrInvalidStatistics, strategy.Anchor, anchor)
	}

	var offset float64
	switch strategy.OffsetType {
	case model.OffsetPercentage:
		offset = anchor * strategy.OffsetValue / 100
	case model.OffsetFixed:
		offset = strategy.OffsetValue
	default:
		return 0, fmt.Errorf("%w: unknown offset type %q", common.ErrStrategyMisconfigured, strategy.OffsetType)
	}

	// The offset contribution is scaled by a deterministic blend of the
	// listing's media and sleeve grades:
	//   weightedOffset = offset * (wMedia*mediaGrade + wSleeve*sleeveGrade)
	blend := strategy.ConditionWeights.Media*c.grades.Grade(mediaCondition) +
		strategy.ConditionWeights.Sleeve*c.grades.Grade(sleeveCondition)
	price := anchor + offset*blend

	if boost := strategy.ScarcityBoost; boost != nil && stats.Count <= boost.Threshold {
		price += anchor * boost.BoostPercent / 100
	}

	return price, nil
}

// AnchorValue selects the statistic a strategy prices from. There is no mode
// statistic in the supplied data; the mode anchor deliberately falls back to
// the median rather than failing.
func AnchorValue(anchor model.Anchor, stats model.MarketStatistics) (float64, error) {
	switch anchor {
	case model.AnchorMean:
		return stats.Mean, nil
	case model.AnchorMedian, model.AnchorMode:
		return stats.Median, nil
	case model.AnchorCheapest:
		return stats.Min, nil
	case model.AnchorMostExpensive:
		return stats.Max, nil
	case model.AnchorPercentile:
		return stats.P75, nil
	default:
		return 0, fmt.Errorf("%w: unknown anchor %q", common.ErrStrategyMisconfigured, anchor)
	}
}
