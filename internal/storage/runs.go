package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quietgrove/needledrop/internal/common"
	"github.com/quietgrove/needledrop/internal/model"
	"github.com/quietgrove/needledrop/internal/service"
)

// SaveRun persists a finished run and its items atomically. Items are stored
// with their position so the input order survives the round trip.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run *model.RepriceResponse) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reprice_runs (
			run_id, run_token, strategy, dry_run, truncated,
			scanned, auto_applied, user_applied, flagged, declined,
			simulated, errors, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID, run.RunToken, run.Strategy,
		boolToInt(run.DryRun), boolToInt(run.Truncated),
		run.Summary.Scanned, run.Summary.AutoApplied, run.Summary.UserApplied,
		run.Summary.Flagged, run.Summary.Declined, run.Summary.Simulated,
		run.Summary.Errors, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: run %d", common.ErrDuplicateEntry, run.RunID)
		}
		return fmt.Errorf("failed to save run %d: %w", run.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reprice_items (
			run_id, position, listing_id, old_price, new_price, currency,
			decision, reason, confidence, discogs_status, http_status,
			rate_limit_remaining
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, item := range run.Items {
		if _, err := stmt.ExecContext(ctx,
			run.RunID, i, item.ListingID, item.OldPrice, item.NewPrice,
			item.Currency, string(item.Decision), item.Reason, item.Confidence,
			nullString(item.DiscogsStatus), nullInt(item.HTTPStatus),
			nullInt(item.RateLimitRemaining),
		); err != nil {
			return fmt.Errorf("failed to save item %d of run %d: %w", i, run.RunID, err)
		}
	}

	return tx.Commit()
}

// GetRun loads one run and its ordered items.
func (s *SQLiteStorage) GetRun(ctx context.Context, runID int64) (*model.RepriceResponse, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	run, err := s.scanRunRow(s.db.QueryRowContext(ctx, selectRun+` WHERE run_id = ?`, runID))
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT listing_id, old_price, new_price, currency, decision, reason,
			confidence, discogs_status, http_status, rate_limit_remaining
		FROM reprice_items WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items of run %d: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item model.RepriceItemResult
		var decision string
		var discogsStatus sql.NullString
		var httpStatus, rateLimit sql.NullInt64
		if err := rows.Scan(
			&item.ListingID, &item.OldPrice, &item.NewPrice, &item.Currency,
			&decision, &item.Reason, &item.Confidence,
			&discogsStatus, &httpStatus, &rateLimit,
		); err != nil {
			return nil, fmt.Errorf("failed to scan item of run %d: %w", runID, err)
		}
		item.Decision = model.Decision(decision)
		item.DiscogsStatus = discogsStatus.String
		item.HTTPStatus = int(httpStatus.Int64)
		item.RateLimitRemaining = int(rateLimit.Int64)
		run.Items = append(run.Items, item)
	}

	return run, rows.Err()
}

// ListRuns returns the most recent runs without their items.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]model.RepriceResponse, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, selectRun+` ORDER BY run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.RepriceResponse
	for rows.Next() {
		run, err := s.scanRunRow(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// MaxRunID returns the highest persisted run id, or zero for a fresh
// database. The engine seeds its monotonic counter from this.
func (s *SQLiteStorage) MaxRunID(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var maxID int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(run_id), 0) FROM reprice_runs`).Scan(&maxID)
	if err != nil {
		return 0, fmt.Errorf("failed to read max run id: %w", err)
	}

	return maxID, nil
}

// BackfillItemStatus records the marketplace's response for one applied item
// after the run was persisted. Decisions and prices are immutable; only the
// apply-step fields change.
func (s *SQLiteStorage) BackfillItemStatus(ctx context.Context, runID, listingID int64, status service.ApplyStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE reprice_items SET
			discogs_status = ?,
			http_status = ?,
			rate_limit_remaining = ?
		WHERE run_id = ? AND listing_id = ?
	`, status.DiscogsStatus, status.HTTPStatus, status.RateLimitRemaining, runID, listingID)
	if err != nil {
		return fmt.Errorf("failed to backfill status for listing %d in run %d: %w", listingID, runID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check backfill: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: listing %d in run %d", common.ErrNotFound, listingID, runID)
	}

	return nil
}

const selectRun = `
	SELECT run_id, run_token, strategy, dry_run, truncated,
		scanned, auto_applied, user_applied, flagged, declined,
		simulated, errors, started_at, finished_at
	FROM reprice_runs`

func (s *SQLiteStorage) scanRunRow(row rowScanner) (*model.RepriceResponse, error) {
	var run model.RepriceResponse
	var dryRun, truncated int
	var finishedAt sql.NullTime

	err := row.Scan(
		&run.RunID, &run.RunToken, &run.Strategy, &dryRun, &truncated,
		&run.Summary.Scanned, &run.Summary.AutoApplied, &run.Summary.UserApplied,
		&run.Summary.Flagged, &run.Summary.Declined, &run.Summary.Simulated,
		&run.Summary.Errors, &run.StartedAt, &finishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.DryRun = dryRun == 1
	run.Truncated = truncated == 1
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}

	return &run, nil
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
