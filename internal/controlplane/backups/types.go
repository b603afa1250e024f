// Package backups orchestrates configuration snapshots and restores for
// managed devices. A backup moves PENDING → COMPLETED | FAILED exactly
// once; failed rows are kept as an audit trail. A restore never writes to
// a device before a safety backup exists (unless the caller opted out) and
// never before the downloaded payload's checksum has been re-verified.
//
// Known gap carried over deliberately: nothing prevents a backup and a
// restore from racing on the same device. Operator discipline is assumed.
package backups

import "time"

const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"

	TriggerManual     = "manual"
	TriggerScheduled  = "scheduled"
	TriggerPreRestore = "pre-restore"
)

// Backup is one configuration snapshot record.
type Backup struct {
	ID             string         `json:"id"`
	DeviceID       string         `json:"device_id"`
	StorageKey     string         `json:"storage_key"`
	FileSize       int64          `json:"file_size"`
	Checksum       string         `json:"checksum"`
	DeviceVersion  string         `json:"device_version,omitempty"`
	Status         string         `json:"status"`
	TriggerType    string         `json:"trigger_type"`
	ExportMode     string         `json:"export_mode"`
	IsPinned       bool           `json:"is_pinned"`
	IsSafetyBackup bool           `json:"is_safety_backup"`
	RetainUntil    *time.Time     `json:"retain_until,omitempty"`
	Summary        *ConfigSummary `json:"summary,omitempty"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// Restore is one restore attempt. SafetyBackupID is a back-reference to a
// Backup this restore created as its own prerequisite; the safety backup's
// lifecycle stays independent and it is never deleted by its restore.
type Restore struct {
	ID             string     `json:"id"`
	BackupID       string     `json:"backup_id"`
	DeviceID       string     `json:"device_id"`
	Status         string     `json:"status"`
	SafetyBackupID string     `json:"safety_backup_id,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	RestoreLog     string     `json:"restore_log,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// ConfigSummary counts configuration sections in an export. Advisory
// metadata only; extraction failures never block a backup.
type ConfigSummary struct {
	Interfaces    int `json:"interfaces"`
	Addresses     int `json:"addresses"`
	FirewallRules int `json:"firewall_rules"`
	NATRules      int `json:"nat_rules"`
	Routes        int `json:"routes"`
	Users         int `json:"users"`
	Scripts       int `json:"scripts"`
}

// ListFilter narrows Backup listings.
type ListFilter struct {
	DeviceID      string
	Status        string
	SafetyOnly    bool
	ExcludeSafety bool
	Limit         int
}

// IntegrityError reports a checksum mismatch between a stored backup and
// its downloaded payload. Always fatal: the restore aborts before any
// device write.
type IntegrityError struct {
	BackupID string
	Want     string
	Got      string
}

func (e *IntegrityError) Error() string {
	return "backup " + e.BackupID + ": checksum mismatch (stored " + e.Want + ", downloaded " + e.Got + ")"
}
