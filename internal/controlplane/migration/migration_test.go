package migration

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEnsureVersionStampsOnce(t *testing.T) {
	db := newTestDB(t)

	if err := EnsureVersion(db, 1); err != nil {
		t.Fatalf("EnsureVersion: %v", err)
	}
	got, err := CurrentVersion(db)
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if got != 1 {
		t.Errorf("version = %d, want 1", got)
	}

	// A second call with a different version must not restamp.
	if err := EnsureVersion(db, 5); err != nil {
		t.Fatalf("EnsureVersion again: %v", err)
	}
	got, _ = CurrentVersion(db)
	if got != 1 {
		t.Errorf("version after restamp attempt = %d, want 1", got)
	}
}

func TestCurrentVersionUnstamped(t *testing.T) {
	db := newTestDB(t)
	got, err := CurrentVersion(db)
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if got != 0 {
		t.Errorf("version = %d, want 0 for a fresh database", got)
	}
}

func TestCheckVersionRefusesNewerSchema(t *testing.T) {
	db := newTestDB(t)
	if err := EnsureVersion(db, 2); err != nil {
		t.Fatalf("EnsureVersion: %v", err)
	}

	if err := CheckVersion(db, 1); err == nil {
		t.Error("CheckVersion should refuse a schema newer than the binary")
	}
	if err := CheckVersion(db, 2); err != nil {
		t.Errorf("CheckVersion same version = %v, want nil", err)
	}
	if err := CheckVersion(db, 3); err != nil {
		t.Errorf("CheckVersion older schema = %v, want nil", err)
	}
}
