// Package cron schedules the reconciliation jobs. Each run gets its own
// deadline so a hung panel cannot pile runs on top of each other, and a
// panicking job is logged instead of killing the process.
package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/xshayank/vpnmarket-reseller/internal/config"
	"github.com/xshayank/vpnmarket-reseller/internal/reconcile"
)

// Scheduler manages all cron jobs.
type Scheduler struct {
	cron       *cron.Cron
	cfg        *config.Config
	reconciler *reconcile.Reconciler
	logger     *zap.Logger
}

// New creates a new cron scheduler.
func New(cfg *config.Config, reconciler *reconcile.Reconciler, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		cfg:        cfg,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting cron scheduler...")

	// Quota enforcement - every minute
	s.cron.AddFunc("0 * * * * *", func() {
		s.runJob("enforce_resellers", s.reconciler.EnforceResellers)
	})

	// Reseller recovery - every minute, offset to land after enforcement
	s.cron.AddFunc("30 * * * * *", func() {
		s.runJob("recover_configs", s.reconciler.RecoverConfigs)
	})

	// Expire configs - every 5 minutes
	s.cron.AddFunc("0 */5 * * * *", func() {
		s.runJob("expire_configs", s.reconciler.ExpireConfigs)
	})

	// Scheduled usage resets (billing-cycle rollover) - every 15 minutes
	s.cron.AddFunc("0 1/15 * * * *", func() {
		s.runJob("reset_usage", s.reconciler.ResetDueConfigs)
	})

	// Usage sync from panels - every 10 minutes
	s.cron.AddFunc("0 */10 * * * *", func() {
		s.runJob("sync_usage", s.reconciler.SyncUsage)
	})

	// Event-log audit backstop - every 10 minutes, offset from sync
	s.cron.AddFunc("0 5-55/10 * * * *", func() {
		s.runJob("audit_backstop", s.reconciler.AuditBackstop)
	})

	s.cron.Start()
	s.logger.Info("Cron scheduler started")
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runJob(name string, job func(ctx context.Context) reconcile.Tally) {
	defer s.recoverFromPanic(name)

	timeout := s.cfg.Reconcile.JobTimeout
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Debug("Running cron job", zap.String("job", name))
	job(ctx)
}

func (s *Scheduler) recoverFromPanic(jobName string) {
	if r := recover(); r != nil {
		s.logger.Error("Cron job panicked", zap.String("job", jobName), zap.Any("error", r))
	}
}
