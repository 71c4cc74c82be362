// Package hubtest runs an in-memory HubSpot portal exposing the properties
// API surface the syncer talks to. Tests point a hubspot.Client at it
// instead of a live portal.
package hubtest

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// openDB opens an in-memory SQLite database and applies the portal schema.
func openDB(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection so the in-memory database is shared and lock-free.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// schema is the portal's property storage. The database is always fresh, so
// there is no version tracking.
var schema = []string{
	`CREATE TABLE property_definitions (
		object_type TEXT NOT NULL,
		name TEXT NOT NULL,
		label TEXT NOT NULL,
		type TEXT NOT NULL,
		field_type TEXT NOT NULL,
		group_name TEXT NOT NULL DEFAULT '',
		description TEXT DEFAULT '',
		display_order INTEGER NOT NULL DEFAULT 0,
		has_unique_value BOOLEAN NOT NULL DEFAULT FALSE,
		hidden BOOLEAN NOT NULL DEFAULT FALSE,
		form_field BOOLEAN NOT NULL DEFAULT FALSE,
		calculated BOOLEAN NOT NULL DEFAULT FALSE,
		external_options BOOLEAN NOT NULL DEFAULT FALSE,
		hubspot_defined BOOLEAN NOT NULL DEFAULT FALSE,
		options TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (object_type, name)
	)`,

	`CREATE TABLE property_groups (
		object_type TEXT NOT NULL,
		name TEXT NOT NULL,
		label TEXT NOT NULL,
		display_order INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (object_type, name)
	)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
