package storage

import (
	"context"
	"testing"
	"time"

	"github.com/quietgrove/needledrop/internal/common"
	"github.com/quietgrove/needledrop/internal/model"
	"github.com/quietgrove/needledrop/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	db, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testStrategy(name string) *model.Strategy {
	floor := 5.00
	return &model.Strategy{
		Name:             name,
		Anchor:           model.AnchorMedian,
		OffsetType:       model.OffsetPercentage,
		OffsetValue:      -5,
		ConditionWeights: model.ConditionWeights{Media: 0.7, Sleeve: 0.3},
		ScarcityBoost:    &model.ScarcityBoost{Threshold: 5, BoostPercent: 15},
		Floor:            &floor,
		Rounding:         0.25,
		MaxChangePercent: 20,
	}
}

func TestStrategyRoundTrip(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()

	require.NoError(t, db.SaveStrategy(ctx, testStrategy("undercut")))

	got, err := db.GetStrategy(ctx, "undercut")
	require.NoError(t, err)
	assert.Equal(t, "undercut", got.Name)
	assert.Equal(t, model.AnchorMedian, got.Anchor)
	assert.Equal(t, model.OffsetPercentage, got.OffsetType)
	assert.InDelta(t, -5, got.OffsetValue, 1e-9)
	assert.InDelta(t, 0.7, got.ConditionWeights.Media, 1e-9)
	require.NotNil(t, got.ScarcityBoost)
	assert.Equal(t, 5, got.ScarcityBoost.Threshold)
	require.NotNil(t, got.Floor)
	assert.InDelta(t, 5.00, *got.Floor, 1e-9)
	assert.Nil(t, got.Ceiling)
	assert.Equal(t, 1, got.Version)
	assert.False(t, got.Active)
}

func TestStrategyUpdateBumpsVersion(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()

	strategy := testStrategy("undercut")
	require.NoError(t, db.SaveStrategy(ctx, strategy))

	strategy.OffsetValue = -8
	require.NoError(t, db.SaveStrategy(ctx, strategy))

	got, err := db.GetStrategy(ctx, "undercut")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.InDelta(t, -8, got.OffsetValue, 1e-9)
}

func TestActivateStrategyIsExclusive(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()

	require.NoError(t, db.SaveStrategy(ctx, testStrategy("first")))
	require.NoError(t, db.SaveStrategy(ctx, testStrategy("second")))

	require.NoError(t, db.ActivateStrategy(ctx, "first"))
	require.NoError(t, db.ActivateStrategy(ctx, "second"))

	active, err := db.GetActiveStrategy(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", active.Name)

	first, err := db.GetStrategy(ctx, "first")
	require.NoError(t, err)
	assert.False(t, first.Active)
}

func TestActivateMissingStrategy(t *testing.T) {
	db := testStorage(t)
	err := db.ActivateStrategy(context.Background(), "ghost")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetActiveStrategyNoneActive(t *testing.T) {
	db := testStorage(t)
	_, err := db.GetActiveStrategy(context.Background())
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteStrategy(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()

	require.NoError(t, db.SaveStrategy(ctx, testStrategy("doomed")))
	require.NoError(t, db.DeleteStrategy(ctx, "doomed"))

	_, err := db.GetStrategy(ctx, "doomed")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestAutomationRulesDefaultsSeeded(t *testing.T) {
	db := testStorage(t)

	rules, err := db.GetAutomationRules(context.Background())
	require.NoError(t, err)
	assert.False(t, rules.Enabled)
	assert.True(t, rules.AutoApplyIncreases)
	assert.InDelta(t, 10, rules.AutoApplyThreshold, 1e-9)
	assert.Equal(t, 50, rules.BatchLimit)
	assert.True(t, rules.RequireReview)
	assert.Empty(t, rules.ExcludeConditions)
}

func TestAutomationRulesRoundTrip(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()

	rules := model.AutomationRules{
		Enabled:            true,
		AutoApplyIncreases: true,
		AutoApplyThreshold: 12.5,
		MaxPriceChange:     30,
		MinPriceFloor:      2,
		MaxPriceCeiling:    500,
		ExcludeConditions:  []string{model.GradeFair, model.GradePoor},
		OnlyUnderpriced:    true,
		BatchLimit:         25,
	}
	require.NoError(t, db.SaveAutomationRules(ctx, rules))

	got, err := db.GetAutomationRules(ctx)
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.InDelta(t, 12.5, got.AutoApplyThreshold, 1e-9)
	assert.Equal(t, []string{model.GradeFair, model.GradePoor}, got.ExcludeConditions)
	assert.True(t, got.OnlyUnderpriced)
	assert.False(t, got.RequireReview)
	assert.Equal(t, 25, got.BatchLimit)
}

func testListings() []model.Listing {
	return []model.Listing{
		{ID: 101, ReleaseID: 9001, Artist: "Can", Title: "Tago Mago", Currency: "USD", Price: 42.00, MediaCondition: model.GradeNearMint, SleeveCondition: model.GradeVGPlus, Status: "For Sale", ListedAt: time.Now().AddDate(0, -2, 0)},
		{ID: 102, ReleaseID: 9002, Artist: "Neu!", Title: "Neu! 75", Currency: "USD", Price: 28.50, MediaCondition: model.GradeVG, SleeveCondition: model.GradeVG, Status: "For Sale", ListedAt: time.Now().AddDate(0, -1, 0)},
		{ID: 103, ReleaseID: 9003, Artist: "Faust", Title: "IV", Currency: "USD", Price: 15.00, MediaCondition: model.GradeGood, SleeveCondition: model.GradeFair, Status: "Draft", ListedAt: time.Now()},
	}
}

func TestListingsUpsertAndFilter(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()

	require.NoError(t, db.SaveListings(ctx, testListings()))

	all, err := db.GetListings(ctx, service.ListingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(101), all[0].ID, "listings are ordered by id")

	minPrice := 20.0
	expensive, err := db.GetListings(ctx, service.ListingFilter{MinPrice: &minPrice})
	require.NoError(t, err)
	assert.Len(t, expensive, 2)

	forSale, err := db.GetListings(ctx, service.ListingFilter{Status: "For Sale"})
	require.NoError(t, err)
	assert.Len(t, forSale, 2)

	// Upsert replaces the price in place.
	updated := testListings()
	updated[0].Price = 45.00
	require.NoError(t, db.SaveListings(ctx, updated))

	got, err := db.GetListing(ctx, 101)
	require.NoError(t, err)
	assert.InDelta(t, 45.00, got.Price, 1e-9)
}

func testRun() *model.RepriceResponse {
	run := &model.RepriceResponse{
		RunID:     1,
		RunToken:  "11111111-2222-3333-4444-555555555555",
		Strategy:  "undercut",
		StartedAt: time.Now().Add(-time.Minute),
		Items: []model.RepriceItemResult{
			{ListingID: 101, OldPrice: 42.00, NewPrice: 43.00, Currency: "USD", Decision: model.DecisionAutoApplied, Reason: "within auto-apply threshold (2.4% <= 10.0%)", Confidence: 0.95},
			{ListingID: 102, OldPrice: 28.50, NewPrice: 26.00, Currency: "USD", Decision: model.DecisionFlagged, Reason: "decrease requires manual approval", Confidence: 0.8},
			{ListingID: 103, OldPrice: 15.00, NewPrice: 15.00, Currency: "USD", Decision: model.DecisionFlagged, Reason: "no market statistics available", Confidence: 0},
		},
		FinishedAt: time.Now(),
	}
	run.Summary.Add(model.DecisionAutoApplied)
	run.Summary.Add(model.DecisionFlagged)
	run.Summary.AddError()
	return run
}

func TestRunRoundTrip(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()

	require.NoError(t, db.SaveRun(ctx, testRun()))

	got, err := db.GetRun(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "undercut", got.Strategy)
	assert.False(t, got.DryRun)
	require.Len(t, got.Items, 3)
	assert.Equal(t, int64(101), got.Items[0].ListingID, "item order survives the round trip")
	assert.Equal(t, model.DecisionAutoApplied, got.Items[0].Decision)
	assert.Equal(t, 3, got.Summary.Scanned)
	assert.Equal(t, 1, got.Summary.Errors)
	assert.True(t, got.Summary.Partitioned())
}

func TestSaveRunDuplicateRunID(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()

	require.NoError(t, db.SaveRun(ctx, testRun()))
	err := db.SaveRun(ctx, testRun())
	require.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestSaveListingsRejectsInvalid(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()

	err := db.SaveListings(ctx, []model.Listing{{ID: 0, Price: 10}})
	require.ErrorIs(t, err, common.ErrInvalidListing)

	err = db.SaveListings(ctx, []model.Listing{{ID: 1, Price: -4}})
	require.ErrorIs(t, err, common.ErrInvalidListing)
}

func TestRunRejectsMismatchedSummary(t *testing.T) {
	db := testStorage(t)

	run := testRun()
	run.Summary.Scanned = 99
	err := db.SaveRun(context.Background(), run)
	require.Error(t, err)
}

func TestMaxRunID(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()

	maxID, err := db.MaxRunID(ctx)
	require.NoError(t, err)
	assert.Zero(t, maxID)

	require.NoError(t, db.SaveRun(ctx, testRun()))

	run2 := testRun()
	run2.RunID = 7
	require.NoError(t, db.SaveRun(ctx, run2))

	maxID, err = db.MaxRunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), maxID)
}

func TestBackfillItemStatus(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()

	require.NoError(t, db.SaveRun(ctx, testRun()))

	status := service.ApplyStatus{DiscogsStatus: "updated", HTTPStatus: 200, RateLimitRemaining: 57}
	require.NoError(t, db.BackfillItemStatus(ctx, 1, 101, status))

	got, err := db.GetRun(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Items[0].DiscogsStatus)
	assert.Equal(t, 200, got.Items[0].HTTPStatus)
	assert.Equal(t, 57, got.Items[0].RateLimitRemaining)
	// Untouched items keep their zero values.
	assert.Zero(t, got.Items[1].HTTPStatus)

	err = db.BackfillItemStatus(ctx, 1, 999, status)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestListRuns(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		run := testRun()
		run.RunID = i
		require.NoError(t, db.SaveRun(ctx, run))
	}

	runs, err := db.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, int64(3), runs[0].RunID, "newest first")
	assert.Empty(t, runs[0].Items, "list omits items")
}
