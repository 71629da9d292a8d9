package pricing

import (
	"math"
	"testing"

	"github.com/quietgrove/needledrop/internal/common"
	"github.com/quietgrove/needledrop/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseStrategy() model.Strategy {
	return model.Strategy{
		Name:             "test",
		Anchor:           model.AnchorMedian,
		OffsetType:       model.OffsetPercentage,
		ConditionWeights: model.ConditionWeights{Media: 0.5, Sleeve: 0.5},
		Rounding:         0.25,
	}
}

func TestEnforceRounding(t *testing.T) {
	tests := []struct {
		name     string
		raw      float64
		rounding float64
		want     float64
	}{
		{"round down", 21.10, 0.25, 21.00},
		{"round up", 21.15, 0.25, 21.25},
		{"half rounds up", 21.125, 0.25, 21.25},
		{"half dollar", 21.60, 0.50, 21.50},
		{"whole dollar", 21.49, 1.00, 21.00},
		{"already exact", 21.25, 0.25, 21.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategy := baseStrategy()
			strategy.Rounding = tt.rounding
			res, err := Enforce(tt.raw, 20.00, strategy, model.AutomationRules{})
			require.NoError(t, err)
			assert.InDelta(t, tt.want, res.FinalPrice, 1e-9)
			assert.False(t, res.Clamped)
		})
	}
}

func TestEnforceStrategyBounds(t *testing.T) {
	floor, ceiling := 15.00, 25.00
	strategy := baseStrategy()
	strategy.Floor = &floor
	strategy.Ceiling = &ceiling

	res, err := Enforce(12.00, 20.00, strategy, model.AutomationRules{})
	require.NoError(t, err)
	assert.InDelta(t, 15.00, res.FinalPrice, 1e-9)
	assert.True(t, res.Clamped)
	require.Len(t, res.Notes, 1)
	assert.Contains(t, res.Notes[0], "strategy floor")

	res, err = Enforce(30.00, 20.00, strategy, model.AutomationRules{})
	require.NoError(t, err)
	assert.InDelta(t, 25.00, res.FinalPrice, 1e-9)
	assert.True(t, res.Clamped)
}

func TestEnforcePolicyBoundsWinWhenTighter(t *testing.T) {
	floor, ceiling := 10.00, 40.00
	strategy := baseStrategy()
	strategy.Floor = &floor
	strategy.Ceiling = &ceiling

	rules := model.AutomationRules{MinPriceFloor: 18.00, MaxPriceCeiling: 22.00}

	res, err := Enforce(12.00, 20.00, strategy, rules)
	require.NoError(t, err)
	assert.InDelta(t, 18.00, res.FinalPrice, 1e-9)

	res, err = Enforce(35.00, 20.00, strategy, rules)
	require.NoError(t, err)
	assert.InDelta(t, 22.00, res.FinalPrice, 1e-9)
}

func TestEnforceClampStaysOnRoundingGrid(t *testing.T) {
	// A floor that is not itself a multiple must round up, never below it.
	floor := 10.30
	strategy := baseStrategy()
	strategy.Floor = &floor

	res, err := Enforce(8.00, 20.00, strategy, model.AutomationRules{})
	require.NoError(t, err)
	assert.InDelta(t, 10.50, res.FinalPrice, 1e-9)
	assert.GreaterOrEqual(t, res.FinalPrice, floor)

	remainder := math.Mod(math.Round(res.FinalPrice*100), 25)
	assert.Zero(t, remainder, "price must stay an exact multiple of 0.25")
}

func TestEnforceMaxChangeTighterLimitWins(t *testing.T) {
	strategy := baseStrategy()
	strategy.MaxChangePercent = 30

	rules := model.AutomationRules{MaxPriceChange: 10}

	// +50% suggestion against a 10% policy cap.
	res, err := Enforce(30.00, 20.00, strategy, rules)
	require.NoError(t, err)
	assert.True(t, res.Clamped)
	assert.LessOrEqual(t, res.FinalPrice, 22.00)
	assert.InDelta(t, 22.00, res.FinalPrice, 1e-9)
	require.Len(t, res.Notes, 1)
	assert.Contains(t, res.Notes[0], "change capped at 10.0%")
}

func TestEnforceMaxChangeDecrease(t *testing.T) {
	strategy := baseStrategy()
	strategy.MaxChangePercent = 15

	res, err := Enforce(10.00, 20.00, strategy, model.AutomationRules{})
	require.NoError(t, err)
	assert.True(t, res.Clamped)
	// Bound is 17.00; rounding up keeps the decrease within -15%.
	assert.InDelta(t, 17.00, res.FinalPrice, 1e-9)
	assert.GreaterOrEqual(t, PercentChange(20.00, res.FinalPrice), -15.0)
}

func TestEnforceZeroLimitsMeanUncapped(t *testing.T) {
	res, err := Enforce(60.00, 20.00, baseStrategy(), model.AutomationRules{})
	require.NoError(t, err)
	assert.False(t, res.Clamped)
	assert.InDelta(t, 60.00, res.FinalPrice, 1e-9)
}

func TestEnforceDegeneratePrice(t *testing.T) {
	_, err := Enforce(21.00, 0, baseStrategy(), model.AutomationRules{})
	require.ErrorIs(t, err, common.ErrDegeneratePrice)

	_, err = Enforce(21.00, -5, baseStrategy(), model.AutomationRules{})
	require.ErrorIs(t, err, common.ErrDegeneratePrice)
}

func TestEnforceMisconfiguredStrategy(t *testing.T) {
	strategy := baseStrategy()
	strategy.Rounding = 0
	_, err := Enforce(21.00, 20.00, strategy, model.AutomationRules{})
	require.ErrorIs(t, err, common.ErrStrategyMisconfigured)

	strategy = baseStrategy()
	floor, ceiling := 30.00, 10.00
	strategy.Floor = &floor
	strategy.Ceiling = &ceiling
	_, err = Enforce(21.00, 20.00, strategy, model.AutomationRules{})
	require.ErrorIs(t, err, common.ErrStrategyMisconfigured)
}
