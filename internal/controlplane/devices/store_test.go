package devices

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/nettriq/rosfleet/internal/controlplane/migration"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "devices.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewStoreRefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := migration.EnsureVersion(db, schemaVersion+1); err != nil {
		t.Fatalf("EnsureVersion: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := NewStore(path); err == nil {
		t.Fatal("NewStore should refuse a database stamped by a newer binary")
	}
}

func TestCreateAppliesDefaults(t *testing.T) {
	store := newTestStore(t)

	device, err := store.Create(Device{
		Name:            "edge-1",
		Host:            "10.0.0.1",
		Username:        "admin",
		EncryptedSecret: "iv:tag:cipher",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if device.ID == "" {
		t.Error("ID not generated")
	}
	if device.APIPort != 8728 {
		t.Errorf("APIPort = %d, want default 8728", device.APIPort)
	}
	if device.SSHPort != 22 {
		t.Errorf("SSHPort = %d, want default 22", device.SSHPort)
	}
	if device.Status != StatusActive {
		t.Errorf("Status = %q, want default ACTIVE", device.Status)
	}
	if device.LastSeen != nil {
		t.Error("LastSeen set on a freshly created device")
	}
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get("missing"); !IsNotFound(err) {
		t.Errorf("Get err = %v, want not-found", err)
	}
}

func TestUpdateOverlaysNonZeroFields(t *testing.T) {
	store := newTestStore(t)
	device, err := store.Create(Device{
		Name: "edge-1", Host: "10.0.0.1", Username: "admin", EncryptedSecret: "s1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := store.Update(device.ID, Device{Status: "maintenance", SSHPort: 2222})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != StatusMaintenance {
		t.Errorf("Status = %q, want MAINTENANCE", updated.Status)
	}
	if updated.SSHPort != 2222 {
		t.Errorf("SSHPort = %d, want 2222", updated.SSHPort)
	}
	// Untouched fields survive.
	if updated.Name != "edge-1" || updated.Host != "10.0.0.1" || updated.EncryptedSecret != "s1" {
		t.Errorf("unrelated fields changed: %+v", updated)
	}
}

func TestListByStatus(t *testing.T) {
	store := newTestStore(t)
	mk := func(name, status string) {
		t.Helper()
		if _, err := store.Create(Device{
			Name: name, Host: "h", Username: "u", EncryptedSecret: "s", Status: status,
		}); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}
	mk("a", StatusActive)
	mk("b", StatusInactive)
	mk("c", StatusActive)

	active, err := store.ListByStatus(StatusActive)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("len(active) = %d, want 2", len(active))
	}
	if active[0].Name != "a" || active[1].Name != "c" {
		t.Errorf("active = %v, want name order a, c", []string{active[0].Name, active[1].Name})
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	device, _ := store.Create(Device{Name: "x", Host: "h", Username: "u", EncryptedSecret: "s"})

	if err := store.Delete(device.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(device.ID); !IsNotFound(err) {
		t.Errorf("second Delete err = %v, want not-found", err)
	}
}

func TestTouchLastSeenAndSetVersion(t *testing.T) {
	store := newTestStore(t)
	device, _ := store.Create(Device{Name: "x", Host: "h", Username: "u", EncryptedSecret: "s"})

	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.TouchLastSeen(device.ID, seen); err != nil {
		t.Fatalf("TouchLastSeen: %v", err)
	}
	if err := store.SetVersion(device.ID, "7.14.2"); err != nil {
		t.Fatalf("SetVersion: %v", err)
	}

	got, err := store.Get(device.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.LastSeen == nil || !got.LastSeen.Equal(seen) {
		t.Errorf("LastSeen = %v, want %v", got.LastSeen, seen)
	}
	if got.Version != "7.14.2" {
		t.Errorf("Version = %q, want 7.14.2", got.Version)
	}
}
