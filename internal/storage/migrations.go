package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: strategies, automation rules, listings",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS strategies (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT UNIQUE NOT NULL,
					version INTEGER NOT NULL DEFAULT 1,
					anchor TEXT NOT NULL,
					offset_type TEXT NOT NULL,
					offset_value REAL NOT NULL DEFAULT 0,
					weight_media REAL NOT NULL DEFAULT 0.5,
					weight_sleeve REAL NOT NULL DEFAULT 0.5,
					scarcity_threshold INTEGER,
					scarcity_boost_percent REAL,
					floor REAL,
					ceiling REAL,
					rounding REAL NOT NULL,
					max_change_percent REAL NOT NULL DEFAULT 0,
					active INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_strategies_active ON strategies(active)`,

				`CREATE TABLE IF NOT EXISTS automation_rules (
					id INTEGER PRIMARY KEY CHECK (id = 1),
					enabled INTEGER NOT NULL DEFAULT 0,
					auto_apply_increases INTEGER NOT NULL DEFAULT 1,
					auto_apply_threshold REAL NOT NULL DEFAULT 10,
					max_price_change REAL NOT NULL DEFAULT 25,
					min_price_floor REAL NOT NULL DEFAULT 0,
					max_price_ceiling REAL NOT NULL DEFAULT 0,
					exclude_conditions TEXT NOT NULL DEFAULT '[]',
					only_underpriced INTEGER NOT NULL DEFAULT 0,
					batch_limit INTEGER NOT NULL DEFAULT 50,
					require_review INTEGER NOT NULL DEFAULT 1,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS listings (
					id INTEGER PRIMARY KEY,
					release_id INTEGER NOT NULL DEFAULT 0,
					artist TEXT,
					title TEXT,
					currency TEXT NOT NULL DEFAULT 'USD',
					price REAL NOT NULL,
					media_condition TEXT,
					sleeve_condition TEXT,
					status TEXT NOT NULL DEFAULT 'For Sale',
					listed_at DATETIME,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_listings_status ON listings(status)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Run audit log",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS reprice_runs (
					run_id INTEGER PRIMARY KEY,
					run_token TEXT NOT NULL,
					strategy TEXT NOT NULL,
					dry_run INTEGER NOT NULL DEFAULT 0,
					truncated INTEGER NOT NULL DEFAULT 0,
					scanned INTEGER NOT NULL DEFAULT 0,
					auto_applied INTEGER NOT NULL DEFAULT 0,
					user_applied INTEGER NOT NULL DEFAULT 0,
					flagged INTEGER NOT NULL DEFAULT 0,
					declined INTEGER NOT NULL DEFAULT 0,
					simulated INTEGER NOT NULL DEFAULT 0,
					errors INTEGER NOT NULL DEFAULT 0,
					started_at DATETIME NOT NULL,
					finished_at DATETIME
				)`,

				`CREATE TABLE IF NOT EXISTS reprice_items (
					run_id INTEGER NOT NULL,
					position INTEGER NOT NULL,
					listing_id INTEGER NOT NULL,
					old_price REAL NOT NULL,
					new_price REAL NOT NULL,
					currency TEXT NOT NULL DEFAULT 'USD',
					decision TEXT NOT NULL,
					reason TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 0,
					discogs_status TEXT,
					http_status INTEGER,
					rate_limit_remaining INTEGER,
					PRIMARY KEY (run_id, position),
					FOREIGN KEY (run_id) REFERENCES reprice_runs(run_id)
				)`,
				`CREATE INDEX idx_reprice_items_listing ON reprice_items(listing_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Seed default automation rules row",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`INSERT OR IGNORE INTO automation_rules (id) VALUES (1)`)
			if err != nil {
				return fmt.Errorf("failed to seed automation rules: %w", err)
			}
			return nil
		},
	},
}

// Migrate brings the database schema up to the expected version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := s.beginTx(ctx)
		if err != nil {
			return err
		}

		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}

		slog.Info("Applied migration", "version", m.Version, "description", m.Description)
	}

	return nil
}
