package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/quietgrove/needledrop/internal/common"
	"github.com/quietgrove/needledrop/internal/model"
)

// SaveStrategy inserts or updates a strategy by name. Updates bump the
// version; the engine never calls this.
func (s *SQLiteStorage) SaveStrategy(ctx context.Context, strategy *model.Strategy) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateStrategy(strategy); err != nil {
		return err
	}

	var scarcityThreshold any
	var scarcityBoost any
	if strategy.ScarcityBoost != nil {
		scarcityThreshold = strategy.ScarcityBoost.Threshold
		scarcityBoost = strategy.ScarcityBoost.BoostPercent
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO strategies (
			name, version, anchor, offset_type, offset_value,
			weight_media, weight_sleeve, scarcity_threshold,
			scarcity_boost_percent, floor, ceiling, rounding,
			max_change_percent
		) VALUES (?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			version = version + 1,
			anchor = excluded.anchor,
			offset_type = excluded.offset_type,
			offset_value = excluded.offset_value,
			weight_media = excluded.weight_media,
			weight_sleeve = excluded.weight_sleeve,
			scarcity_threshold = excluded.scarcity_threshold,
			scarcity_boost_percent = excluded.scarcity_boost_percent,
			floor = excluded.floor,
			ceiling = excluded.ceiling,
			rounding = excluded.rounding,
			max_change_percent = excluded.max_change_percent,
			updated_at = CURRENT_TIMESTAMP
	`,
		strategy.Name,
		string(strategy.Anchor),
		string(strategy.OffsetType),
		strategy.OffsetValue,
		strategy.ConditionWeights.Media,
		strategy.ConditionWeights.Sleeve,
		scarcityThreshold,
		scarcityBoost,
		strategy.Floor,
		strategy.Ceiling,
		strategy.Rounding,
		strategy.MaxChangePercent,
	)
	if err != nil {
		return fmt.Errorf("failed to save strategy %q: %w", strategy.Name, err)
	}

	return nil
}

// GetStrategy retrieves a strategy by name.
func (s *SQLiteStorage) GetStrategy(ctx context.Context, name string) (*model.Strategy, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, selectStrategy+` WHERE name = ?`, name)
	return scanStrategy(row)
}

// GetActiveStrategy retrieves the single active strategy.
func (s *SQLiteStorage) GetActiveStrategy(ctx context.Context) (*model.Strategy, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, selectStrategy+` WHERE active = 1`)
	strategy, err := scanStrategy(row)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: no active strategy", common.ErrNotFound)
	}
	return strategy, err
}

// ListStrategies returns all strategies ordered by name.
func (s *SQLiteStorage) ListStrategies(ctx context.Context) ([]model.Strategy, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, selectStrategy+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var strategies []model.Strategy
	for rows.Next() {
		strategy, err := scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, *strategy)
	}

	return strategies, rows.Err()
}

// ActivateStrategy marks the named strategy active and deactivates the rest.
// Exactly one strategy is active at a time.
func (s *SQLiteStorage) ActivateStrategy(ctx context.Context, name string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(name, "name"); err != nil {
		return err
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE strategies SET active = 1, updated_at = CURRENT_TIMESTAMP WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to activate strategy %q: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check activation: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: strategy %q", common.ErrNotFound, name)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE strategies SET active = 0 WHERE name != ?`, name); err != nil {
		return fmt.Errorf("failed to deactivate other strategies: %w", err)
	}

	return tx.Commit()
}

// DeleteStrategy removes a strategy by name.
func (s *SQLiteStorage) DeleteStrategy(ctx context.Context, name string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(name, "name"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM strategies WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete strategy %q: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deletion: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: strategy %q", common.ErrNotFound, name)
	}

	return nil
}

const selectStrategy = `
	SELECT id, name, version, anchor, offset_type, offset_value,
		weight_media, weight_sleeve, scarcity_threshold,
		scarcity_boost_percent, floor, ceiling, rounding,
		max_change_percent, active, created_at, updated_at
	FROM strategies`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStrategy(row rowScanner) (*model.Strategy, error) {
	var strategy model.Strategy
	var anchor, offsetType string
	var scarcityThreshold sql.NullInt64
	var scarcityBoost sql.NullFloat64
	var floor, ceiling sql.NullFloat64
	var active int
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&strategy.ID,
		&strategy.Name,
		&strategy.Version,
		&anchor,
		&offsetType,
		&strategy.OffsetValue,
		&strategy.ConditionWeights.Media,
		&strategy.ConditionWeights.Sleeve,
		&scarcityThreshold,
		&scarcityBoost,
		&floor,
		&ceiling,
		&strategy.Rounding,
		&strategy.MaxChangePercent,
		&active,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan strategy: %w", err)
	}

	strategy.Anchor = model.Anchor(anchor)
	strategy.OffsetType = model.OffsetType(offsetType)
	strategy.Active = active == 1
	strategy.CreatedAt = createdAt
	strategy.UpdatedAt = updatedAt

	if scarcityThreshold.Valid || scarcityBoost.Valid {
		strategy.ScarcityBoost = &model.ScarcityBoost{
			Threshold:    int(scarcityThreshold.Int64),
			BoostPercent: scarcityBoost.Float64,
		}
	}
	if floor.Valid {
		strategy.Floor = &floor.Float64
	}
	if ceiling.Valid {
		strategy.Ceiling = &ceiling.Float64
	}

	return &strategy, nil
}
