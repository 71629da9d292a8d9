package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/quietgrove/needledrop/internal/common"
	"github.com/quietgrove/needledrop/internal/model"
	"github.com/quietgrove/needledrop/internal/service"
)

// SaveListings upserts the seller's inventory snapshot.
func (s *SQLiteStorage) SaveListings(ctx context.Context, listings []model.Listing) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateListings(listings); err != nil {
		return err
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO listings (
			id, release_id, artist, title, currency, price,
			media_condition, sleeve_condition, status, listed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			release_id = excluded.release_id,
			artist = excluded.artist,
			title = excluded.title,
			currency = excluded.currency,
			price = excluded.price,
			media_condition = excluded.media_condition,
			sleeve_condition = excluded.sleeve_condition,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare listing upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, l := range listings {
		if _, err := stmt.ExecContext(ctx,
			l.ID, l.ReleaseID, l.Artist, l.Title, l.Currency, l.Price,
			l.MediaCondition, l.SleeveCondition, l.Status, l.ListedAt,
		); err != nil {
			return fmt.Errorf("failed to save listing %d: %w", l.ID, err)
		}
	}

	return tx.Commit()
}

// GetListing retrieves a single listing by id.
func (s *SQLiteStorage) GetListing(ctx context.Context, id int64) (*model.Listing, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var l model.Listing
	var listedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, release_id, artist, title, currency, price,
			media_condition, sleeve_condition, status, listed_at, updated_at
		FROM listings WHERE id = ?
	`, id).Scan(
		&l.ID, &l.ReleaseID, &l.Artist, &l.Title, &l.Currency, &l.Price,
		&l.MediaCondition, &l.SleeveCondition, &l.Status, &listedAt, &l.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: listing %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing %d: %w", id, err)
	}
	if listedAt.Valid {
		l.ListedAt = listedAt.Time
	}

	return &l, nil
}

// GetListings returns listings matching the filter, ordered by id for
// reproducible batch runs.
func (s *SQLiteStorage) GetListings(ctx context.Context, filter service.ListingFilter) ([]model.Listing, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var conditions []string
	var args []any

	if filter.MinPrice != nil {
		conditions = append(conditions, "price >= ?")
		args = append(args, *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		conditions = append(conditions, "price <= ?")
		args = append(args, *filter.MaxPrice)
	}
	if filter.Condition != "" {
		conditions = append(conditions, "media_condition = ?")
		args = append(args, filter.Condition)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	query := `
		SELECT id, release_id, artist, title, currency, price,
			media_condition, sleeve_condition, status, listed_at, updated_at
		FROM listings`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var listings []model.Listing
	for rows.Next() {
		var l model.Listing
		var listedAt sql.NullTime
		if err := rows.Scan(
			&l.ID, &l.ReleaseID, &l.Artist, &l.Title, &l.Currency, &l.Price,
			&l.MediaCondition, &l.SleeveCondition, &l.Status, &listedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		if listedAt.Valid {
			l.ListedAt = listedAt.Time
		}
		listings = append(listings, l)
	}

	return listings, rows.Err()
}
