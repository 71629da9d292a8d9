package pricing

import (
	"fmt"
	"math"

	"github.com/quietgrove/needledrop/internal/model"
)

// Input carries everything the classifier needs about one listing. The
// running auto-applied count comes from the batch orchestrator, which is the
// only caller allowed to mutate it between listings.
type Input struct {
	Rules            model.AutomationRules
	Stats            model.MarketStatistics
	Guardrail        GuardrailResult
	MediaCondition   string
	SleeveCondition  string
	OldPrice         float64
	NewPrice         float64
	AnchorValue      float64
	AutoAppliedSoFar int
	DryRun           bool
	Approved         bool
}

// Outcome is the classifier's verdict for one listing.
type Outcome struct {
	Rule       RuleName
	Reason     string
	Decision   model.Decision
	Confidence float64
}

// RuleName identifies one classification rule.
type RuleName string

// Classification rule names, in evaluation order.
const (
	RuleDryRun          RuleName = "dry_run"
	RuleApproved        RuleName = "approved"
	RuleDecrease        RuleName = "decrease"
	RuleAutomationOff   RuleName = "automation_off"
	RuleExcluded        RuleName = "excluded_condition"
	RuleNotUnderpriced  RuleName = "not_underpriced"
	RuleClamped         RuleName = "clamped"
	RuleWithinThreshold RuleName = "within_threshold"
	RuleDefault         RuleName = "default"
)

// Rule pairs a name with its predicate. A predicate returns the decision and
// reason when it matches; the first match wins.
type Rule struct {
	Evaluate func(Input) (model.Decision, string, bool)
	Name     RuleName
}

// ClassificationOrder is the ordered rule table. The order is part of the
// contract between the engine and its users, so it lives here as an explicit
// constant rather than as implicit code flow, and has its own test.
var ClassificationOrder = []Rule{
	{Name: RuleDryRun, Evaluate: func(in Input) (model.Decision, string, bool) {
		if in.DryRun {
			return model.DecisionSimulated, "dry run: no changes applied", true
		}
		return "", "", false
	}},
	{Name: RuleApproved, Evaluate: func(in Input) (model.Decision, string, bool) {
		if in.Approved {
			return model.DecisionUserApplied, "explicitly approved for this run", true
		}
		return "", "", false
	}},
	// The decrease rule outranks automation-off: both flag, but the audit
	// reason should name the more specific cause.
	{Name: RuleDecrease, Evaluate: func(in Input) (model.Decision, string, bool) {
		if in.NewPrice < in.OldPrice {
			return model.DecisionFlagged, "decrease requires manual approval", true
		}
		return "", "", false
	}},
	{Name: RuleAutomationOff, Evaluate: func(in Input) (model.Decision, string, bool) {
		if !in.Rules.Enabled {
			return model.DecisionFlagged, "automation disabled; manual review required", true
		}
		return "", "", false
	}},
	{Name: RuleExcluded, Evaluate: func(in Input) (model.Decision, string, bool) {
		for _, cond := range []string{in.MediaCondition, in.SleeveCondition} {
			if cond != "" && in.Rules.ConditionExcluded(cond) {
				return model.DecisionFlagged, fmt.Sprintf("condition %s is excluded from automation", cond), true
			}
		}
		return "", "", false
	}},
	{Name: RuleNotUnderpriced, Evaluate: func(in Input) (model.Decision, string, bool) {
		if in.Rules.OnlyUnderpriced && in.OldPrice >= in.AnchorValue {
			return model.DecisionFlagged, fmt.Sprintf("not underpriced (%.2f >= anchor %.2f)", in.OldPrice, in.AnchorValue), true
		}
		return "", "", false
	}},
	{Name: RuleClamped, Evaluate: func(in Input) (model.Decision, string, bool) {
		if in.Guardrail.Clamped {
			reason := "suggestion exceeded guardrail limits"
			if len(in.Guardrail.Notes) > 0 {
				reason = fmt.Sprintf("%s: %s", reason, in.Guardrail.Notes[0])
			}
			return model.DecisionFlagged, reason, true
		}
		return "", "", false
	}},
	{Name: RuleWithinThreshold, Evaluate: func(in Input) (model.Decision, string, bool) {
		// Auto-apply is strictly for increases: new price must exceed old.
		if in.NewPrice <= in.OldPrice {
			return "", "", false
		}
		increase := PercentChange(in.OldPrice, in.NewPrice)
		if increase > in.Rules.AutoApplyThreshold {
			return "", "", false
		}
		if !in.Rules.AutoApplyIncreases || in.Rules.RequireReview {
			return "", "", false
		}
		if in.AutoAppliedSoFar >= in.Rules.BatchLimit {
			return "", "", false
		}
		return model.DecisionAutoApplied,
			fmt.Sprintf("within auto-apply threshold (%.1f%% <= %.1f%%)", increase, in.Rules.AutoApplyThreshold),
			true
	}},
	{Name: RuleDefault, Evaluate: func(in Input) (model.Decision, string, bool) {
		increase := PercentChange(in.OldPrice, in.NewPrice)
		switch {
		case in.NewPrice == in.OldPrice:
			return model.DecisionFlagged, "no price change", true
		case increase > in.Rules.AutoApplyThreshold:
			return model.DecisionFlagged,
				fmt.Sprintf("exceeds auto-apply threshold (%.1f%% > %.1f%%)", increase, in.Rules.AutoApplyThreshold),
				true
		case in.AutoAppliedSoFar >= in.Rules.BatchLimit:
			return model.DecisionFlagged,
				fmt.Sprintf("auto-apply batch limit reached (%d)", in.Rules.BatchLimit),
				true
		default:
			return model.DecisionFlagged, "requires manual review", true
		}
	}},
}

// Classify evaluates the rule table in order and returns the first match.
// The final rule always matches, so every listing gets exactly one decision.
func Classify(in Input) Outcome {
	for _, rule := range ClassificationOrder {
		if decision, reason, ok := rule.Evaluate(in); ok {
			return Outcome{
				Decision:   decision,
				Rule:       rule.Name,
				Reason:     reason,
				Confidence: Confidence(in.Stats.Count, in.Guardrail.Clamped),
			}
		}
	}
	// Unreachable: RuleDefault matches everything.
	return Outcome{Decision: model.DecisionFlagged, Rule: RuleDefault, Reason: "requires manual review"}
}

// Confidence derives a score from the comparable sample size, saturating as
// the sample grows. Guardrail clamping means the raw suggestion was out of
// policy, so it costs a flat penalty.
func Confidence(sampleCount int, clamped bool) float64 {
	score := 0.5
	if sampleCount >= 5 {
		score += 0.15
	}
	if sampleCount >= 10 {
		score += 0.15
	}
	if sampleCount >= 25 {
		score += 0.1
	}
	if sampleCount >= 50 {
		score += 0.05
	}
	if clamped {
		score -= 0.2
	}
	return math.Max(0.05, math.Min(score, 0.95))
}
