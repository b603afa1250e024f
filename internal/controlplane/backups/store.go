package backups

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nettriq/rosfleet/internal/controlplane/migration"
)

// schemaVersion is the backups schema this binary understands.
const schemaVersion = 1

// Store persists backup and restore records in SQLite.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open backups db: %w", err)
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

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS backups (
		id               TEXT PRIMARY KEY,
		device_id        TEXT NOT NULL,
		storage_key      TEXT NOT NULL,
		file_size        INTEGER NOT NULL DEFAULT 0,
		checksum         TEXT NOT NULL DEFAULT '',
		device_version   TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL,
		trigger_type     TEXT NOT NULL,
		export_mode      TEXT NOT NULL,
		is_pinned        INTEGER NOT NULL DEFAULT 0,
		is_safety_backup INTEGER NOT NULL DEFAULT 0,
		retain_until     TEXT,
		summary_json     TEXT,
		error            TEXT NOT NULL DEFAULT '',
		created_at       TEXT NOT NULL,
		completed_at     TEXT
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create backups: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS restores (
		id               TEXT PRIMARY KEY,
		backup_id        TEXT NOT NULL,
		device_id        TEXT NOT NULL,
		status           TEXT NOT NULL,
		safety_backup_id TEXT NOT NULL DEFAULT '',
		error_message    TEXT NOT NULL DEFAULT '',
		restore_log      TEXT NOT NULL DEFAULT '',
		created_at       TEXT NOT NULL,
		completed_at     TEXT
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create restores: %w", err)
	}

	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_backups_device ON backups(device_id, created_at DESC)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_backups_status ON backups(status)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_restores_backup ON restores(backup_id, created_at DESC)`)

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

// CreateBackup inserts a new PENDING backup row.
func (s *Store) CreateBackup(b Backup) (*Backup, error) {
	if strings.TrimSpace(b.ID) == "" {
		b.ID = uuid.NewString()
	}
	b.Status = StatusPending
	b.CreatedAt = time.Now().UTC()

	if _, err := s.db.Exec(`INSERT INTO backups
		(id, device_id, storage_key, status, trigger_type, export_mode, is_pinned, is_safety_backup, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		b.ID,
		b.DeviceID,
		b.StorageKey,
		b.Status,
		b.TriggerType,
		b.ExportMode,
		boolToInt(b.IsSafetyBackup),
		b.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("insert backup: %w", err)
	}
	return s.GetBackup(b.ID)
}

// CompleteBackup moves a backup to COMPLETED with its final metadata.
// Terminal rows are never moved again.
func (s *Store) CompleteBackup(id string, size int64, checksum, version string, summary *ConfigSummary) (*Backup, error) {
	var summaryJSON sql.NullString
	if summary != nil {
		if data, err := json.Marshal(summary); err == nil {
			summaryJSON = sql.NullString{String: string(data), Valid: true}
		}
	}

	result, err := s.db.Exec(`UPDATE backups
		SET status = ?, file_size = ?, checksum = ?, device_version = ?, summary_json = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		StatusCompleted, size, checksum, version, summaryJSON,
		time.Now().UTC().Format(time.RFC3339Nano),
		strings.TrimSpace(id), StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("complete backup: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, fmt.Errorf("backup %s is not pending", id)
	}
	return s.GetBackup(id)
}

// FailBackup moves a backup to FAILED, recording the triggering error. The
// row is retained as an audit trail of the failed attempt.
func (s *Store) FailBackup(id string, cause error) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	_, err := s.db.Exec(`UPDATE backups
		SET status = ?, error = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		StatusFailed, message,
		time.Now().UTC().Format(time.RFC3339Nano),
		strings.TrimSpace(id), StatusPending,
	)
	if err != nil {
		return fmt.Errorf("fail backup: %w", err)
	}
	return nil
}

const backupColumns = `id, device_id, storage_key, file_size, checksum, device_version, status,
	trigger_type, export_mode, is_pinned, is_safety_backup, retain_until, summary_json, error, created_at, completed_at`

func (s *Store) GetBackup(id string) (*Backup, error) {
	row := s.db.QueryRow(`SELECT `+backupColumns+` FROM backups WHERE id = ?`, strings.TrimSpace(id))
	return scanBackup(row)
}

// ListBackups returns backups matching the filter, newest first.
func (s *Store) ListBackups(filter ListFilter) ([]Backup, error) {
	query := `SELECT ` + backupColumns + ` FROM backups WHERE 1=1`
	var args []any
	if filter.DeviceID != "" {
		query += ` AND device_id = ?`
		args = append(args, filter.DeviceID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.SafetyOnly {
		query += ` AND is_safety_backup = 1`
	}
	if filter.ExcludeSafety {
		query += ` AND is_safety_backup = 0`
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Backup, 0)
	for rows.Next() {
		backup, err := scanBackup(rows)
		if err != nil {
			continue
		}
		out = append(out, *backup)
	}
	return out, rows.Err()
}

// SetPinned pins or unpins a backup. Pinning clears any retention expiry.
func (s *Store) SetPinned(id string, pinned bool) (*Backup, error) {
	var err error
	if pinned {
		_, err = s.db.Exec(`UPDATE backups SET is_pinned = 1, retain_until = NULL WHERE id = ?`, strings.TrimSpace(id))
	} else {
		_, err = s.db.Exec(`UPDATE backups SET is_pinned = 0 WHERE id = ?`, strings.TrimSpace(id))
	}
	if err != nil {
		return nil, fmt.Errorf("set pinned: %w", err)
	}
	return s.GetBackup(id)
}

// SetRetainUntil stamps a retention expiry. Pinned rows are skipped; the
// pin already guarantees indefinite retention.
func (s *Store) SetRetainUntil(id string, until time.Time) error {
	_, err := s.db.Exec(`UPDATE backups SET retain_until = ? WHERE id = ? AND is_pinned = 0`,
		until.UTC().Format(time.RFC3339Nano), strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("set retain_until: %w", err)
	}
	return nil
}

// ListExpired returns unpinned backups whose retention expiry has passed.
func (s *Store) ListExpired(now time.Time) ([]Backup, error) {
	rows, err := s.db.Query(`SELECT `+backupColumns+` FROM backups
		WHERE retain_until IS NOT NULL AND retain_until <= ? AND is_pinned = 0`,
		now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Backup, 0)
	for rows.Next() {
		backup, err := scanBackup(rows)
		if err != nil {
			continue
		}
		out = append(out, *backup)
	}
	return out, rows.Err()
}

// DeleteBackup removes a backup row. Pinned backups are refused.
func (s *Store) DeleteBackup(id string) (*Backup, error) {
	backup, err := s.GetBackup(id)
	if err != nil {
		return nil, err
	}
	if backup.IsPinned {
		return nil, fmt.Errorf("backup %s is pinned", id)
	}
	if _, err := s.db.Exec(`DELETE FROM backups WHERE id = ?`, strings.TrimSpace(id)); err != nil {
		return nil, fmt.Errorf("delete backup: %w", err)
	}
	return backup, nil
}

// CreateRestore inserts a new PENDING restore row.
func (s *Store) CreateRestore(r Restore) (*Restore, error) {
	if strings.TrimSpace(r.ID) == "" {
		r.ID = uuid.NewString()
	}
	r.Status = StatusPending
	r.CreatedAt = time.Now().UTC()

	if _, err := s.db.Exec(`INSERT INTO restores
		(id, backup_id, device_id, status, safety_backup_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.BackupID, r.DeviceID, r.Status, r.SafetyBackupID,
		r.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("insert restore: %w", err)
	}
	return s.GetRestore(r.ID)
}

// CompleteRestore moves a restore to COMPLETED with its log.
func (s *Store) CompleteRestore(id, restoreLog string) (*Restore, error) {
	_, err := s.db.Exec(`UPDATE restores
		SET status = ?, restore_log = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		StatusCompleted, restoreLog,
		time.Now().UTC().Format(time.RFC3339Nano),
		strings.TrimSpace(id), StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("complete restore: %w", err)
	}
	return s.GetRestore(id)
}

// FailRestore moves a restore to FAILED with its error and partial log.
func (s *Store) FailRestore(id, restoreLog string, cause error) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	_, err := s.db.Exec(`UPDATE restores
		SET status = ?, error_message = ?, restore_log = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		StatusFailed, message, restoreLog,
		time.Now().UTC().Format(time.RFC3339Nano),
		strings.TrimSpace(id), StatusPending,
	)
	if err != nil {
		return fmt.Errorf("fail restore: %w", err)
	}
	return nil
}

const restoreColumns = `id, backup_id, device_id, status, safety_backup_id, error_message, restore_log, created_at, completed_at`

func (s *Store) GetRestore(id string) (*Restore, error) {
	row := s.db.QueryRow(`SELECT `+restoreColumns+` FROM restores WHERE id = ?`, strings.TrimSpace(id))
	return scanRestore(row)
}

// ListRestoresForBackup returns the restore history of one backup.
func (s *Store) ListRestoresForBackup(backupID string) ([]Restore, error) {
	rows, err := s.db.Query(`SELECT `+restoreColumns+` FROM restores
		WHERE backup_id = ? ORDER BY created_at DESC`, strings.TrimSpace(backupID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Restore, 0)
	for rows.Next() {
		restore, err := scanRestore(rows)
		if err != nil {
			continue
		}
		out = append(out, *restore)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBackup(row scanner) (*Backup, error) {
	var (
		b           Backup
		pinned      int
		safety      int
		retainUntil sql.NullString
		summaryJSON sql.NullString
		created     string
		completed   sql.NullString
	)
	if err := row.Scan(
		&b.ID,
		&b.DeviceID,
		&b.StorageKey,
		&b.FileSize,
		&b.Checksum,
		&b.DeviceVersion,
		&b.Status,
		&b.TriggerType,
		&b.ExportMode,
		&pinned,
		&safety,
		&retainUntil,
		&summaryJSON,
		&b.Error,
		&created,
		&completed,
	); err != nil {
		return nil, err
	}

	b.IsPinned = pinned != 0
	b.IsSafetyBackup = safety != 0
	if retainUntil.Valid {
		if t, err := time.Parse(time.RFC3339Nano, retainUntil.String); err == nil {
			b.RetainUntil = &t
		}
	}
	if summaryJSON.Valid && summaryJSON.String != "" {
		var summary ConfigSummary
		if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err == nil {
			b.Summary = &summary
		}
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	if completed.Valid {
		if t, err := time.Parse(time.RFC3339Nano, completed.String); err == nil {
			b.CompletedAt = &t
		}
	}
	return &b, nil
}

func scanRestore(row scanner) (*Restore, error) {
	var (
		r         Restore
		created   string
		completed sql.NullString
	)
	if err := row.Scan(
		&r.ID,
		&r.BackupID,
		&r.DeviceID,
		&r.Status,
		&r.SafetyBackupID,
		&r.ErrorMessage,
		&r.RestoreLog,
		&created,
		&completed,
	); err != nil {
		return nil, err
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	if completed.Valid {
		if t, err := time.Parse(time.RFC3339Nano, completed.String); err == nil {
			r.CompletedAt = &t
		}
	}
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
