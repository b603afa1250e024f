package devices

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nettriq/rosfleet/internal/controlplane/migration"
)

// schemaVersion is the devices schema this binary understands.
const schemaVersion = 1

// Store persists managed devices in SQLite.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open devices db: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS devices (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		host             TEXT NOT NULL,
		api_port         INTEGER NOT NULL,
		ssh_port         INTEGER NOT NULL,
		username         TEXT NOT NULL,
		encrypted_secret TEXT NOT NULL,
		status           TEXT NOT NULL,
		version          TEXT NOT NULL DEFAULT '',
		last_seen        TEXT,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create devices: %w", err)
	}

	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_devices_host ON devices(host)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_devices_status ON devices(status)`)

	if err := migration.EnsureVersion(db, schemaVersion); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema version: %w", err)
	}
	if err := migration.CheckVersion(db, schemaVersion); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const deviceColumns = `id, name, host, api_port, ssh_port, username, encrypted_secret, status, version, last_seen, created_at, updated_at`

func (s *Store) List() ([]Device, error) {
	rows, err := s.db.Query(`SELECT ` + deviceColumns + ` FROM devices ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Device, 0)
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			continue
		}
		out = append(out, *device)
	}
	return out, rows.Err()
}

// ListByStatus returns devices in the given lifecycle status.
func (s *Store) ListByStatus(status string) ([]Device, error) {
	rows, err := s.db.Query(`SELECT `+deviceColumns+` FROM devices WHERE status = ? ORDER BY name`, normalizeStatus(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Device, 0)
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			continue
		}
		out = append(out, *device)
	}
	return out, rows.Err()
}

func (s *Store) Get(id string) (*Device, error) {
	row := s.db.QueryRow(`SELECT `+deviceColumns+` FROM devices WHERE id = ?`, strings.TrimSpace(id))
	return scanDevice(row)
}

func (s *Store) Create(device Device) (*Device, error) {
	now := time.Now().UTC()
	if strings.TrimSpace(device.ID) == "" {
		device.ID = uuid.NewString()
	}
	device.Name = strings.TrimSpace(device.Name)
	device.Host = strings.TrimSpace(device.Host)
	device.APIPort = normalizePort(device.APIPort, 8728)
	device.SSHPort = normalizePort(device.SSHPort, 22)
	device.Username = strings.TrimSpace(device.Username)
	device.Status = normalizeStatus(device.Status)
	device.CreatedAt = now
	device.UpdatedAt = now

	if _, err := s.db.Exec(`INSERT INTO devices
		(id, name, host, api_port, ssh_port, username, encrypted_secret, status, version, last_seen, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		device.ID,
		device.Name,
		device.Host,
		device.APIPort,
		device.SSHPort,
		device.Username,
		device.EncryptedSecret,
		device.Status,
		device.Version,
		device.CreatedAt.Format(time.RFC3339Nano),
		device.UpdatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("insert device: %w", err)
	}
	return s.Get(device.ID)
}

// Update applies non-zero fields of update over the stored device.
func (s *Store) Update(id string, update Device) (*Device, error) {
	existing, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if v := strings.TrimSpace(update.Name); v != "" {
		existing.Name = v
	}
	if v := strings.TrimSpace(update.Host); v != "" {
		existing.Host = v
	}
	if update.APIPort > 0 {
		existing.APIPort = normalizePort(update.APIPort, 8728)
	}
	if update.SSHPort > 0 {
		existing.SSHPort = normalizePort(update.SSHPort, 22)
	}
	if v := strings.TrimSpace(update.Username); v != "" {
		existing.Username = v
	}
	if update.EncryptedSecret != "" {
		existing.EncryptedSecret = update.EncryptedSecret
	}
	if v := strings.TrimSpace(update.Status); v != "" {
		existing.Status = normalizeStatus(v)
	}
	existing.UpdatedAt = time.Now().UTC()

	result, err := s.db.Exec(`UPDATE devices
		SET name = ?, host = ?, api_port = ?, ssh_port = ?, username = ?, encrypted_secret = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		existing.Name,
		existing.Host,
		existing.APIPort,
		existing.SSHPort,
		existing.Username,
		existing.EncryptedSecret,
		existing.Status,
		existing.UpdatedAt.Format(time.RFC3339Nano),
		strings.TrimSpace(id),
	)
	if err != nil {
		return nil, fmt.Errorf("update device: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, sql.ErrNoRows
	}
	return s.Get(id)
}

func (s *Store) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM devices WHERE id = ?`, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TouchLastSeen records a successful device contact. This is the only
// mutation the integration layer performs on a device.
func (s *Store) TouchLastSeen(id string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE devices SET last_seen = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339Nano), strings.TrimSpace(id))
	return err
}

// SetVersion records the firmware version observed during a backup.
func (s *Store) SetVersion(id, version string) error {
	_, err := s.db.Exec(`UPDATE devices SET version = ? WHERE id = ?`,
		strings.TrimSpace(version), strings.TrimSpace(id))
	return err
}

func normalizePort(port, fallback int) int {
	if port <= 0 {
		return fallback
	}
	if port > 65535 {
		return 65535
	}
	return port
}

func normalizeStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case StatusInactive:
		return StatusInactive
	case StatusMaintenance:
		return StatusMaintenance
	default:
		return StatusActive
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(row scanner) (*Device, error) {
	var (
		device   Device
		lastSeen sql.NullString
		created  string
		updated  string
	)
	if err := row.Scan(
		&device.ID,
		&device.Name,
		&device.Host,
		&device.APIPort,
		&device.SSHPort,
		&device.Username,
		&device.EncryptedSecret,
		&device.Status,
		&device.Version,
		&lastSeen,
		&created,
		&updated,
	); err != nil {
		return nil, err
	}

	if lastSeen.Valid {
		if t, err := time.Parse(time.RFC3339Nano, lastSeen.String); err == nil {
			device.LastSeen = &t
		}
	}
	device.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	device.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &device, nil
}

// IsNotFound reports whether err means the device does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
