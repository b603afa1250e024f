package backups

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/nettriq/rosfleet/internal/controlplane/devices"
)

// DeviceLister enumerates devices eligible for scheduled backups.
type DeviceLister interface {
	ListByStatus(status string) ([]devices.Device, error)
}

// Scheduler triggers periodic backups of every ACTIVE device on a cron
// schedule. Devices run sequentially; one failing device does not stop the
// sweep.
type Scheduler struct {
	orchestrator *Orchestrator
	lister       DeviceLister
	schedule     cron.Schedule
	logger       *zap.Logger

	// Retention, when positive, stamps each scheduled backup with an
	// expiry; expired unpinned backups are pruned at the end of a sweep.
	Retention time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler parses the cron expression (standard 5-field format) and
// builds a stopped scheduler.
func NewScheduler(orchestrator *Orchestrator, lister DeviceLister, cronExpr string, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		orchestrator: orchestrator,
		lister:       lister,
		schedule:     schedule,
		logger:       logger,
	}, nil
}

// Start launches the scheduling loop. Safe to call once; subsequent calls
// are no-ops until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			next := s.schedule.Next(time.Now())
			timer := time.NewTimer(time.Until(next))
			select {
			case <-loopCtx.Done():
				timer.Stop()
				return
			case <-timer.C:
				s.runSweep(loopCtx)
			}
		}
	}()
}

// Stop halts scheduling and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

func (s *Scheduler) runSweep(ctx context.Context) {
	targets, err := s.lister.ListByStatus(devices.StatusActive)
	if err != nil {
		s.logger.Error("scheduled sweep cannot list devices", zap.Error(err))
		return
	}

	s.logger.Info("scheduled backup sweep", zap.Int("devices", len(targets)))
	for _, device := range targets {
		if ctx.Err() != nil {
			return
		}
		backup, err := s.orchestrator.CreateBackup(ctx, device.ID, CreateOptions{Trigger: TriggerScheduled})
		if err != nil {
			s.logger.Warn("scheduled backup failed",
				zap.String("device_id", device.ID),
				zap.String("device", device.Name),
				zap.Error(err))
			continue
		}
		if s.Retention > 0 {
			if err := s.orchestrator.store.SetRetainUntil(backup.ID, time.Now().Add(s.Retention)); err != nil {
				s.logger.Warn("cannot stamp retention",
					zap.String("backup_id", backup.ID), zap.Error(err))
			}
		}
	}

	s.pruneExpired(ctx)
}

// pruneExpired deletes backups whose retention window has lapsed. Pinned
// rows never appear here; pinning cleared their expiry.
func (s *Scheduler) pruneExpired(ctx context.Context) {
	expired, err := s.orchestrator.store.ListExpired(time.Now())
	if err != nil {
		s.logger.Error("cannot list expired backups", zap.Error(err))
		return
	}
	for _, backup := range expired {
		if ctx.Err() != nil {
			return
		}
		if err := s.orchestrator.DeleteBackup(ctx, backup.ID); err != nil {
			s.logger.Warn("cannot prune expired backup",
				zap.String("backup_id", backup.ID), zap.Error(err))
		}
	}
}
