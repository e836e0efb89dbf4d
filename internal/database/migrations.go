package database

import (
	"fmt"
	"log/slog"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

const schemaVersionSQL = `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	);
`

// migrations contains all journal migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_batch_results_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS batch_results (
				id TEXT PRIMARY KEY,
				kind TEXT NOT NULL,
				input TEXT NOT NULL,
				status TEXT NOT NULL,
				output TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				completed_at TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_batch_results_created_at ON batch_results(created_at);
		`,
	},
	{
		Version: 2,
		Name:    "add_status_index",
		SQL: `
			CREATE INDEX IF NOT EXISTS idx_batch_results_status ON batch_results(status);
		`,
	},
}

// Migrate runs all pending migrations, each in its own transaction
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(schemaVersionSQL); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var currentVersion int
	err := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	slog.Debug("checked journal schema version", "version", currentVersion)

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		slog.Info("applied journal migration", "version", migration.Version, "name", migration.Name)
	}

	return nil
}

// Version returns the highest applied migration
func (db *DB) Version() (int, error) {
	var version int
	if err := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}
