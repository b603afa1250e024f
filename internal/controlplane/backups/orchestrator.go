package backups

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nettriq/rosfleet/internal/controlplane/blob"
	"github.com/nettriq/rosfleet/internal/controlplane/credentials"
	"github.com/nettriq/rosfleet/internal/controlplane/devices"
	"github.com/nettriq/rosfleet/internal/routeros"
	"github.com/nettriq/rosfleet/internal/routeros/cli"
)

// APIClient is the slice of the binary transport the orchestrator uses.
type APIClient interface {
	Connect(ctx context.Context) error
	Execute(ctx context.Context, command string, args map[string]string) *routeros.CommandResult
	ImportScript(ctx context.Context, script string) *routeros.ImportResult
	Close()
}

// CLIClient is the slice of the SSH transport the orchestrator uses.
type CLIClient interface {
	Connect(ctx context.Context) error
	Export(ctx context.Context, mode cli.ExportMode) (string, error)
	Version(ctx context.Context) (string, error)
	Close() error
}

// Transports creates per-operation transport sessions. Sessions are never
// pooled; the orchestrator opens and closes one per logical step.
type Transports interface {
	API(params credentials.ConnectionParams) APIClient
	CLI(params credentials.ConnectionParams) CLIClient
}

// Resolver loads decrypted connection parameters for a device.
type Resolver interface {
	Resolve(ctx context.Context, deviceID string) (credentials.ConnectionParams, error)
}

// DeviceRegistry is the slice of the device store the orchestrator touches.
type DeviceRegistry interface {
	Get(id string) (*devices.Device, error)
	TouchLastSeen(id string, at time.Time) error
	SetVersion(id, version string) error
}

// Observer receives terminal-state notifications, typically for metrics.
type Observer interface {
	BackupFinished(trigger, result string)
	RestoreFinished(result string)
}

// Orchestrator drives the backup and restore state machines.
type Orchestrator struct {
	devices    DeviceRegistry
	store      *Store
	blobs      blob.Store
	resolver   Resolver
	transports Transports
	observer   Observer
	logger     *zap.Logger
}

// NewOrchestrator wires the orchestrator. observer may be nil.
func NewOrchestrator(registry DeviceRegistry, store *Store, blobs blob.Store, resolver Resolver, transports Transports, observer Observer, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		devices:    registry,
		store:      store,
		blobs:      blobs,
		resolver:   resolver,
		transports: transports,
		observer:   observer,
		logger:     logger,
	}
}

// CreateOptions configures one backup run.
type CreateOptions struct {
	// Trigger records what started the backup (manual, scheduled, pre-restore).
	Trigger string
	// Mode selects the export depth; defaults to verbose, safety backups
	// default to compact.
	Mode cli.ExportMode
	// Safety marks the backup as a pre-restore safety snapshot.
	Safety bool
}

// CreateBackup exports a device's configuration, uploads it, and records
// the outcome. The PENDING row is only created once the device is known to
// be ACTIVE, so a refused request leaves no orphan record; any later
// failure flips the row to FAILED and re-raises.
func (o *Orchestrator) CreateBackup(ctx context.Context, deviceID string, opts CreateOptions) (*Backup, error) {
	device, err := o.devices.Get(deviceID)
	if err != nil {
		return nil, fmt.Errorf("load device %s: %w", deviceID, err)
	}
	if !device.Active() {
		return nil, fmt.Errorf("device %s is %s, backups require ACTIVE", deviceID, device.Status)
	}

	if opts.Trigger == "" {
		opts.Trigger = TriggerManual
	}
	if opts.Mode == "" {
		if opts.Safety {
			opts.Mode = cli.ExportCompact
		} else {
			opts.Mode = cli.ExportVerbose
		}
	}

	backup, err := o.store.CreateBackup(Backup{
		DeviceID:       device.ID,
		StorageKey:     storageKey(device.ID, string(opts.Mode)),
		TriggerType:    opts.Trigger,
		ExportMode:     string(opts.Mode),
		IsSafetyBackup: opts.Safety,
	})
	if err != nil {
		return nil, fmt.Errorf("create backup record: %w", err)
	}

	completed, err := o.runBackup(ctx, device, backup, opts)
	if err != nil {
		if failErr := o.store.FailBackup(backup.ID, err); failErr != nil {
			o.logger.Error("cannot record backup failure",
				zap.String("backup_id", backup.ID), zap.Error(failErr))
		}
		if o.observer != nil {
			o.observer.BackupFinished(opts.Trigger, "failed")
		}
		if failed, loadErr := o.store.GetBackup(backup.ID); loadErr == nil {
			backup = failed
		}
		return backup, fmt.Errorf("backup %s: %w", backup.ID, err)
	}
	if o.observer != nil {
		o.observer.BackupFinished(opts.Trigger, "completed")
	}
	return completed, nil
}

func (o *Orchestrator) runBackup(ctx context.Context, device *devices.Device, backup *Backup, opts CreateOptions) (*Backup, error) {
	params, err := o.resolver.Resolve(ctx, device.ID)
	if err != nil {
		return nil, err
	}

	// Export goes over SSH: the binary protocol has no /export equivalent.
	console := o.transports.CLI(params)
	if err := console.Connect(ctx); err != nil {
		return nil, err
	}
	defer console.Close()

	export, err := console.Export(ctx, opts.Mode)
	if err != nil {
		return nil, fmt.Errorf("export configuration: %w", err)
	}

	version := o.deviceVersion(ctx, params, console)

	// Advisory metadata; a weird export must not block the backup.
	summary := Summarize(export)

	data := []byte(export)
	object, err := o.blobs.Upload(ctx, backup.StorageKey, data, "text/plain; charset=utf-8")
	if err != nil {
		return nil, fmt.Errorf("upload backup payload: %w", err)
	}
	checksum := blob.Checksum(data)
	if object.Checksum != "" && object.Checksum != checksum {
		return nil, &IntegrityError{BackupID: backup.ID, Want: checksum, Got: object.Checksum}
	}

	completed, err := o.store.CompleteBackup(backup.ID, object.Size, checksum, version, summary)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := o.devices.TouchLastSeen(device.ID, now); err != nil {
		o.logger.Warn("cannot touch last_seen", zap.String("device_id", device.ID), zap.Error(err))
	}
	if version != "" {
		if err := o.devices.SetVersion(device.ID, version); err != nil {
			o.logger.Warn("cannot record device version", zap.String("device_id", device.ID), zap.Error(err))
		}
	}

	o.logger.Info("backup completed",
		zap.String("backup_id", completed.ID),
		zap.String("device_id", device.ID),
		zap.Int64("size", completed.FileSize),
		zap.String("trigger", completed.TriggerType))
	return completed, nil
}

// deviceVersion probes firmware over the binary transport, falling back to
// the already-open CLI session. The version is advisory; probe failures
// are logged, never fatal.
func (o *Orchestrator) deviceVersion(ctx context.Context, params credentials.ConnectionParams, console CLIClient) string {
	apiSession := o.transports.API(params)
	if err := apiSession.Connect(ctx); err == nil {
		defer apiSession.Close()
		res := apiSession.Execute(ctx, "/system/resource/print", nil)
		if res.Success && len(res.Records) > 0 {
			if v := res.Records[0]["version"]; v != "" {
				return v
			}
		}
	}

	version, err := console.Version(ctx)
	if err != nil {
		o.logger.Warn("version probe failed", zap.String("device_id", params.DeviceID), zap.Error(err))
		return ""
	}
	return version
}

// RestoreOptions configures one restore run.
type RestoreOptions struct {
	// DeviceID overrides the restore target; defaults to the backup's device.
	DeviceID string
	// SkipSafetyBackup disables the pre-restore snapshot. Callers opting
	// out accept that no rollback path will exist.
	SkipSafetyBackup bool
}

// RestoreBackup applies a completed backup to a device. Ordering is the
// safety invariant this whole package exists for: no byte reaches the
// device before (a) a safety backup has completed (unless opted out) and
// (b) the downloaded payload matches the stored checksum.
func (o *Orchestrator) RestoreBackup(ctx context.Context, backupID string, opts RestoreOptions) (*Restore, error) {
	backup, err := o.store.GetBackup(backupID)
	if err != nil {
		return nil, fmt.Errorf("load backup %s: %w", backupID, err)
	}
	if backup.Status != StatusCompleted {
		return nil, fmt.Errorf("backup %s is %s, restores require COMPLETED", backupID, backup.Status)
	}

	deviceID := opts.DeviceID
	if deviceID == "" {
		deviceID = backup.DeviceID
	}
	device, err := o.devices.Get(deviceID)
	if err != nil {
		return nil, fmt.Errorf("load device %s: %w", deviceID, err)
	}
	if !device.Active() {
		return nil, fmt.Errorf("device %s is %s, restores require ACTIVE", deviceID, device.Status)
	}

	safetyBackupID := ""
	if !opts.SkipSafetyBackup {
		safety, err := o.CreateBackup(ctx, deviceID, CreateOptions{
			Trigger: TriggerPreRestore,
			Mode:    cli.ExportCompact,
			Safety:  true,
		})
		if err != nil {
			// Abort outright: without a proven fallback snapshot we do not
			// touch the device.
			return nil, fmt.Errorf("safety backup failed, restore aborted: %w", err)
		}
		safetyBackupID = safety.ID
	}

	restore, err := o.store.CreateRestore(Restore{
		BackupID:       backup.ID,
		DeviceID:       deviceID,
		SafetyBackupID: safetyBackupID,
	})
	if err != nil {
		return nil, fmt.Errorf("create restore record: %w", err)
	}

	finished, err := o.runRestore(ctx, device, backup, restore)
	if err != nil {
		if o.observer != nil {
			o.observer.RestoreFinished("failed")
		}
		return finished, fmt.Errorf("restore %s: %w", restore.ID, err)
	}
	if o.observer != nil {
		o.observer.RestoreFinished("completed")
	}
	return finished, nil
}

func (o *Orchestrator) runRestore(ctx context.Context, device *devices.Device, backup *Backup, restore *Restore) (*Restore, error) {
	data, err := o.blobs.Download(ctx, backup.StorageKey)
	if err != nil {
		err = fmt.Errorf("download backup payload: %w", err)
		o.failRestore(restore.ID, "", err)
		return o.loadRestore(restore.ID), err
	}

	if sum := blob.Checksum(data); sum != backup.Checksum {
		err := &IntegrityError{BackupID: backup.ID, Want: backup.Checksum, Got: sum}
		o.failRestore(restore.ID, "", err)
		return o.loadRestore(restore.ID), err
	}

	params, err := o.resolver.Resolve(ctx, device.ID)
	if err != nil {
		o.failRestore(restore.ID, "", err)
		return o.loadRestore(restore.ID), err
	}

	apiSession := o.transports.API(params)
	if err := apiSession.Connect(ctx); err != nil {
		o.failRestore(restore.ID, "", err)
		return o.loadRestore(restore.ID), err
	}
	defer apiSession.Close()

	result := apiSession.ImportScript(ctx, string(data))
	restoreLog := strings.Join(result.Log, "\n")

	if importErr := result.Err(); importErr != nil {
		err := fmt.Errorf("configuration import: %w", importErr)
		o.failRestore(restore.ID, restoreLog, err)
		return o.loadRestore(restore.ID), err
	}

	finished, err := o.store.CompleteRestore(restore.ID, restoreLog)
	if err != nil {
		return o.loadRestore(restore.ID), err
	}

	if err := o.devices.TouchLastSeen(device.ID, time.Now().UTC()); err != nil {
		o.logger.Warn("cannot touch last_seen", zap.String("device_id", device.ID), zap.Error(err))
	}

	o.logger.Info("restore completed",
		zap.String("restore_id", finished.ID),
		zap.String("backup_id", backup.ID),
		zap.String("device_id", device.ID),
		zap.Int("lines_applied", result.Applied))
	return finished, nil
}

// failRestore records a FAILED restore, logging (not masking) secondary
// persistence errors so the original cause survives.
func (o *Orchestrator) failRestore(id, restoreLog string, cause error) {
	if err := o.store.FailRestore(id, restoreLog, cause); err != nil {
		o.logger.Error("cannot record restore failure", zap.String("restore_id", id), zap.Error(err))
	}
}

func (o *Orchestrator) loadRestore(id string) *Restore {
	restore, err := o.store.GetRestore(id)
	if err != nil {
		return nil
	}
	return restore
}

// PresignedDownloadURL returns a time-limited URL for a completed backup.
func (o *Orchestrator) PresignedDownloadURL(ctx context.Context, backupID string, ttl time.Duration) (string, error) {
	backup, err := o.store.GetBackup(backupID)
	if err != nil {
		return "", fmt.Errorf("load backup %s: %w", backupID, err)
	}
	if backup.Status != StatusCompleted {
		return "", fmt.Errorf("backup %s is %s, downloads require COMPLETED", backupID, backup.Status)
	}
	return o.blobs.PresignedURL(ctx, backup.StorageKey, ttl)
}

// DeleteBackup removes a backup record and its stored payload. Pinned
// backups are refused by the store.
func (o *Orchestrator) DeleteBackup(ctx context.Context, backupID string) error {
	backup, err := o.store.DeleteBackup(backupID)
	if err != nil {
		return err
	}
	if err := o.blobs.Delete(ctx, backup.StorageKey); err != nil {
		o.logger.Warn("backup row deleted but payload remains",
			zap.String("backup_id", backupID),
			zap.String("key", backup.StorageKey),
			zap.Error(err))
	}
	return nil
}

// VerifyBackup re-downloads a backup and checks its checksum without
// touching any device.
func (o *Orchestrator) VerifyBackup(ctx context.Context, backupID string) error {
	backup, err := o.store.GetBackup(backupID)
	if err != nil {
		return fmt.Errorf("load backup %s: %w", backupID, err)
	}
	data, err := o.blobs.Download(ctx, backup.StorageKey)
	if err != nil {
		return fmt.Errorf("download backup payload: %w", err)
	}
	if sum := blob.Checksum(data); sum != backup.Checksum {
		return &IntegrityError{BackupID: backup.ID, Want: backup.Checksum, Got: sum}
	}
	return nil
}

// storageKey builds a deterministic, collision-free object key.
func storageKey(deviceID, mode string) string {
	stamp := time.Now().UTC().Format("20060102T150405")
	return fmt.Sprintf("backups/%s/%s-%s-%s.rsc", deviceID, mode, stamp, uuid.NewString()[:8])
}
