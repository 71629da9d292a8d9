package pricing

import (
	"testing"

	"github.com/quietgrove/needledrop/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enabledRules() model.AutomationRules {
	return model.AutomationRules{
		Enabled:            true,
		AutoApplyIncreases: true,
		AutoApplyThreshold: 10,
		BatchLimit:         50,
	}
}

func classifierInput() Input {
	return Input{
		Rules:           enabledRules(),
		Stats:           testStats(),
		OldPrice:        20.00,
		NewPrice:        21.00,
		AnchorValue:     22.00,
		MediaCondition:  model.GradeNearMint,
		SleeveCondition: model.GradeVGPlus,
	}
}

// The rule order is part of the engine's contract; lock it down.
func TestClassificationOrderIsStable(t *testing.T) {
	want := []RuleName{
		RuleDryRun,
		RuleApproved,
		RuleDecrease,
		RuleAutomationOff,
		RuleExcluded,
		RuleNotUnderpriced,
		RuleClamped,
		RuleWithinThreshold,
		RuleDefault,
	}

	require.Len(t, ClassificationOrder, len(want))
	for i, rule := range ClassificationOrder {
		assert.Equal(t, want[i], rule.Name, "rule at position %d", i)
	}
}

func TestClassifyDryRun(t *testing.T) {
	in := classifierInput()
	in.DryRun = true
	// Dry run outranks everything, even explicit approval.
	in.Approved = true

	out := Classify(in)
	assert.Equal(t, model.DecisionSimulated, out.Decision)
	assert.Equal(t, RuleDryRun, out.Rule)
}

func TestClassifyApproved(t *testing.T) {
	in := classifierInput()
	in.Approved = true
	in.Rules.Enabled = false

	out := Classify(in)
	assert.Equal(t, model.DecisionUserApplied, out.Decision)
	assert.Equal(t, RuleApproved, out.Rule)
}

func TestClassifyDecreaseNeverAutomatic(t *testing.T) {
	in := classifierInput()
	in.NewPrice = 19.00

	out := Classify(in)
	assert.Equal(t, model.DecisionFlagged, out.Decision)
	assert.Equal(t, RuleDecrease, out.Rule)
	assert.Equal(t, "decrease requires manual approval", out.Reason)
}

func TestClassifyAutomationOff(t *testing.T) {
	in := classifierInput()
	in.Rules.Enabled = false

	out := Classify(in)
	assert.Equal(t, model.DecisionFlagged, out.Decision)
	assert.Equal(t, RuleAutomationOff, out.Rule)
}

func TestClassifyExcludedCondition(t *testing.T) {
	in := classifierInput()
	in.Rules.ExcludeConditions = []string{model.GradeVGPlus}

	out := Classify(in)
	assert.Equal(t, model.DecisionFlagged, out.Decision)
	assert.Equal(t, RuleExcluded, out.Rule)
	assert.Contains(t, out.Reason, model.GradeVGPlus)
}

func TestClassifyOnlyUnderpriced(t *testing.T) {
	in := classifierInput()
	in.Rules.OnlyUnderpriced = true
	in.OldPrice = 25.00
	in.NewPrice = 25.50
	in.AnchorValue = 22.00

	out := Classify(in)
	assert.Equal(t, model.DecisionFlagged, out.Decision)
	assert.Equal(t, RuleNotUnderpriced, out.Rule)
}

func TestClassifyClampedSuggestion(t *testing.T) {
	in := classifierInput()
	in.Guardrail = GuardrailResult{
		FinalPrice: 21.00,
		Clamped:    true,
		Notes:      []string{"change capped at 10.0% (was 32.5%)"},
	}

	out := Classify(in)
	assert.Equal(t, model.DecisionFlagged, out.Decision)
	assert.Equal(t, RuleClamped, out.Rule)
	assert.Contains(t, out.Reason, "change capped")
}

func TestClassifyAutoApply(t *testing.T) {
	in := classifierInput()

	out := Classify(in)
	assert.Equal(t, model.DecisionAutoApplied, out.Decision)
	assert.Equal(t, RuleWithinThreshold, out.Rule)
	assert.Equal(t, "within auto-apply threshold (5.0% <= 10.0%)", out.Reason)
}

func TestClassifyNoChangeNeverAutoApplied(t *testing.T) {
	// A candidate that rounds back to the old price is not an increase, even
	// though it trivially sits inside any threshold.
	in := classifierInput()
	in.OldPrice = 21.00
	in.NewPrice = 21.00

	out := Classify(in)
	assert.Equal(t, model.DecisionFlagged, out.Decision)
	assert.Equal(t, RuleDefault, out.Rule)
	assert.Equal(t, "no price change", out.Reason)
}

func TestClassifyExceedsThreshold(t *testing.T) {
	in := classifierInput()
	in.NewPrice = 23.60

	out := Classify(in)
	assert.Equal(t, model.DecisionFlagged, out.Decision)
	assert.Equal(t, RuleDefault, out.Rule)
	assert.Equal(t, "exceeds auto-apply threshold (18.0% > 10.0%)", out.Reason)
}

func TestClassifyBatchLimitReached(t *testing.T) {
	in := classifierInput()
	in.AutoAppliedSoFar = 50

	out := Classify(in)
	assert.Equal(t, model.DecisionFlagged, out.Decision)
	assert.Equal(t, RuleDefault, out.Rule)
	assert.Contains(t, out.Reason, "batch limit reached")
}

func TestClassifyRequireReviewBlocksAutoApply(t *testing.T) {
	in := classifierInput()
	in.Rules.RequireReview = true

	out := Classify(in)
	assert.Equal(t, model.DecisionFlagged, out.Decision)
	assert.NotEqual(t, model.DecisionAutoApplied, out.Decision)
}

func TestConfidence(t *testing.T) {
	assert.InDelta(t, 0.5, Confidence(1, false), 1e-9)
	assert.InDelta(t, 0.65, Confidence(5, false), 1e-9)
	assert.InDelta(t, 0.8, Confidence(10, false), 1e-9)
	assert.InDelta(t, 0.9, Confidence(25, false), 1e-9)
	assert.InDelta(t, 0.95, Confidence(50, false), 1e-9)
	// Saturates: more samples never push past the cap.
	assert.InDelta(t, 0.95, Confidence(5000, false), 1e-9)
	// Clamping costs a flat penalty.
	assert.InDelta(t, 0.75, Confidence(50, true), 1e-9)
	assert.InDelta(t, 0.3, Confidence(1, true), 1e-9)
}

// The three worked scenarios from the engine's contract, end to end through
// compute, enforce and classify.
func TestScenarioDiscountedMedianDecrease(t *testing.T) {
	calc := NewCalculator(nil)
	strategy := model.Strategy{
		Name:             "undercut",
		Anchor:           model.AnchorMedian,
		OffsetType:       model.OffsetPercentage,
		OffsetValue:      -5,
		ConditionWeights: model.ConditionWeights{Media: 0.5, Sleeve: 0.5},
		Rounding:         0.50,
	}
	stats := model.MarketStatistics{Median: 20.00, Mean: 20.00, Min: 20.00, Max: 20.00, Count: 50}

	raw, err := calc.Compute(strategy, stats, model.GradeMint, model.GradeMint)
	require.NoError(t, err)
	assert.InDelta(t, 19.00, raw, 1e-9)

	res, err := Enforce(raw, 25.00, strategy, model.AutomationRules{})
	require.NoError(t, err)
	assert.InDelta(t, 19.00, res.FinalPrice, 1e-9)

	out := Classify(Input{
		Rules:       model.AutomationRules{}, // automation disabled
		Stats:       stats,
		Guardrail:   res,
		OldPrice:    25.00,
		NewPrice:    res.FinalPrice,
		AnchorValue: 20.00,
	})
	assert.Equal(t, model.DecisionFlagged, out.Decision)
	assert.Equal(t, "decrease requires manual approval", out.Reason)
}

func TestScenarioIncreaseBeyondThreshold(t *testing.T) {
	calc := NewCalculator(nil)
	strategy := model.Strategy{
		Name:             "premium",
		Anchor:           model.AnchorMedian,
		OffsetType:       model.OffsetPercentage,
		OffsetValue:      8,
		ConditionWeights: model.ConditionWeights{Media: 0.5, Sleeve: 0.5},
		Rounding:         0.50,
	}
	stats := model.MarketStatistics{Median: 20.00, Mean: 20.00, Min: 20.00, Max: 20.00, Count: 50}

	raw, err := calc.Compute(strategy, stats, model.GradeMint, model.GradeMint)
	require.NoError(t, err)
	assert.InDelta(t, 21.60, raw, 1e-9)

	res, err := Enforce(raw, 18.00, strategy, enabledRules())
	require.NoError(t, err)
	assert.InDelta(t, 21.50, res.FinalPrice, 1e-9)
	assert.False(t, res.Clamped)

	out := Classify(Input{
		Rules:       enabledRules(),
		Stats:       stats,
		Guardrail:   res,
		OldPrice:    18.00,
		NewPrice:    res.FinalPrice,
		AnchorValue: 20.00,
	})
	assert.Equal(t, model.DecisionFlagged, out.Decision)
	assert.Equal(t, "exceeds auto-apply threshold (19.4% > 10.0%)", out.Reason)
}

func TestScenarioModestIncreaseAutoApplied(t *testing.T) {
	calc := NewCalculator(nil)
	strategy := model.Strategy{
		Name:             "gentle",
		Anchor:           model.AnchorMedian,
		OffsetType:       model.OffsetPercentage,
		OffsetValue:      5,
		ConditionWeights: model.ConditionWeights{Media: 0.5, Sleeve: 0.5},
		Rounding:         0.50,
	}
	stats := model.MarketStatistics{Median: 20.00, Mean: 20.00, Min: 20.00, Max: 20.00, Count: 50}

	raw, err := calc.Compute(strategy, stats, model.GradeMint, model.GradeMint)
	require.NoError(t, err)
	assert.InDelta(t, 21.00, raw, 1e-9)

	res, err := Enforce(raw, 20.00, strategy, enabledRules())
	require.NoError(t, err)
	assert.InDelta(t, 21.00, res.FinalPrice, 1e-9)

	out := Classify(Input{
		Rules:            enabledRules(),
		Stats:            stats,
		Guardrail:        res,
		OldPrice:         20.00,
		NewPrice:         res.FinalPrice,
		AnchorValue:      20.00,
		AutoAppliedSoFar: 49,
	})
	assert.Equal(t, model.DecisionAutoApplied, out.Decision)
}
