// Package migration tracks per-store schema versions so an old binary
// refuses to run against a newer database.
package migration

import (
	"database/sql"
	"fmt"
	"time"
)

func ensureTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS _schema_version (
		store_name TEXT PRIMARY KEY,
		version    INTEGER NOT NULL,
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create schema version table: %w", err)
	}
	return nil
}

// CurrentVersion returns the recorded schema version, or 0 when none is set.
func CurrentVersion(db *sql.DB) (int, error) {
	if err := ensureTable(db); err != nil {
		return 0, err
	}
	var version int
	err := db.QueryRow(`SELECT version FROM _schema_version LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// EnsureVersion stamps a fresh database with initialVersion. An already
// stamped database is left alone.
func EnsureVersion(db *sql.DB, initialVersion int) error {
	current, err := CurrentVersion(db)
	if err != nil {
		return err
	}
	if current != 0 {
		return nil
	}
	_, err = db.Exec(
		`INSERT INTO _schema_version (store_name, version, applied_at) VALUES ('', ?, ?)`,
		initialVersion, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("set initial schema version: %w", err)
	}
	return nil
}

// CheckVersion fails when the stored schema version is newer than what this
// binary understands.
func CheckVersion(db *sql.DB, binaryVersion int) error {
	current, err := CurrentVersion(db)
	if err != nil {
		return err
	}
	if current > binaryVersion {
		return fmt.Errorf(
			"database schema version %d is newer than binary version %d, refusing to start",
			current, binaryVersion,
		)
	}
	return nil
}
