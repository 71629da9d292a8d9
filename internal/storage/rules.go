package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quietgrove/needledrop/internal/model"
)

// GetAutomationRules loads the singleton safety policy row. The row is
// seeded by migrations, so a missing row means the database is corrupt.
func (s *SQLiteStorage) GetAutomationRules(ctx context.Context) (model.AutomationRules, error) {
	var rules model.AutomationRules
	if err := validateContext(ctx); err != nil {
		return rules, err
	}

	var enabled, autoIncreases, onlyUnderpriced, requireReview int
	var excludeJSON string

	err := s.db.QueryRowContext(ctx, `
		SELECT enabled, auto_apply_increases, auto_apply_threshold,
			max_price_change, min_price_floor, max_price_ceiling,
			exclude_conditions, only_underpriced, batch_limit,
			require_review, updated_at
		FROM automation_rules WHERE id = 1
	`).Scan(
		&enabled,
		&autoIncreases,
		&rules.AutoApplyThreshold,
		&rules.MaxPriceChange,
		&rules.MinPriceFloor,
		&rules.MaxPriceCeiling,
		&excludeJSON,
		&onlyUnderpriced,
		&rules.BatchLimit,
		&requireReview,
		&rules.UpdatedAt,
	)
	if err != nil {
		return rules, fmt.Errorf("failed to load automation rules: %w", err)
	}

	rules.Enabled = enabled == 1
	rules.AutoApplyIncreases = autoIncreases == 1
	rules.OnlyUnderpriced = onlyUnderpriced == 1
	rules.RequireReview = requireReview == 1

	if err := json.Unmarshal([]byte(excludeJSON), &rules.ExcludeConditions); err != nil {
		return rules, fmt.Errorf("failed to decode excluded conditions: %w", err)
	}

	return rules, nil
}

// SaveAutomationRules replaces the singleton safety policy row.
func (s *SQLiteStorage) SaveAutomationRules(ctx context.Context, rules model.AutomationRules) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := rules.Validate(); err != nil {
		return err
	}

	exclude := rules.ExcludeConditions
	if exclude == nil {
		exclude = []string{}
	}
	excludeJSON, err := json.Marshal(exclude)
	if err != nil {
		return fmt.Errorf("failed to encode excluded conditions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE automation_rules SET
			enabled = ?,
			auto_apply_increases = ?,
			auto_apply_threshold = ?,
			max_price_change = ?,
			min_price_floor = ?,
			max_price_ceiling = ?,
			exclude_conditions = ?,
			only_underpriced = ?,
			batch_limit = ?,
			require_review = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`,
		boolToInt(rules.Enabled),
		boolToInt(rules.AutoApplyIncreases),
		rules.AutoApplyThreshold,
		rules.MaxPriceChange,
		rules.MinPriceFloor,
		rules.MaxPriceCeiling,
		string(excludeJSON),
		boolToInt(rules.OnlyUnderpriced),
		rules.BatchLimit,
		boolToInt(rules.RequireReview),
	)
	if err != nil {
		return fmt.Errorf("failed to save automation rules: %w", err)
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
