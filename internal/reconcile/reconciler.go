// Package reconcile implements the periodic jobs that converge reseller and
// config state: quota enforcement, recovery, usage sync, expiry, and the
// audit backstop. Jobs are idempotent and isolate failures per entity, so
// one bad row or unreachable panel never stalls the rest of a sweep.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xshayank/vpnmarket-reseller/internal/lifecycle"
	"github.com/xshayank/vpnmarket-reseller/internal/models"
	"github.com/xshayank/vpnmarket-reseller/internal/provision"
)

// Directory is the read/listing surface the jobs sweep over.
// *repository.GormStore satisfies it.
type Directory interface {
	ResellerByID(id uint) (*models.Reseller, error)
	TrafficMeteredResellers() ([]models.Reseller, error)
	SuspendedResellers() ([]models.Reseller, error)
	AllConfigsOfReseller(resellerID uint) ([]models.ResellerConfig, error)
	ConfigsOfResellerByStatus(resellerID uint, status string) ([]models.ResellerConfig, error)
	ConfigsByStatus(status string) ([]models.ResellerConfig, error)
	ExpiredDueConfigs(now time.Time) ([]models.ResellerConfig, error)
	ResetDueConfigs(now time.Time) ([]models.ResellerConfig, error)
	UpdateResellerUsedBytes(id uint, usedBytes int64) error
	UpdateConfigUsage(id uint, usageBytes int64) error
	LastEvent(configID uint) (*models.ResellerConfigEvent, error)
	CreateEvent(ev *models.ResellerConfigEvent) error
}

// Lifecycle is the transition surface the jobs drive.
// *lifecycle.Controller satisfies it.
type Lifecycle interface {
	AutoDisable(ctx context.Context, configID uint, reason string) (*lifecycle.Result, error)
	AutoEnable(ctx context.Context, configID uint) (*lifecycle.Result, error)
	ResetUsage(ctx context.Context, configID uint, reason string) (*lifecycle.Result, error)
	Expire(ctx context.Context, configID uint) (*lifecycle.Result, error)
	SuspendReseller(ctx context.Context, resellerID uint) (*models.Reseller, error)
	ReactivateReseller(ctx context.Context, resellerID uint) (*models.Reseller, error)
}

// UsageSource reads remote usage counters. *provision.Provisioner satisfies it.
type UsageSource interface {
	FetchUsage(ctx context.Context, cfg *models.ResellerConfig) (int64, provision.Outcome)
}

// Auditor records job-run summaries. *repository.AuditRepository satisfies it.
type Auditor interface {
	Record(runID, job string, summary interface{}) error
}

// Notifier pushes operator notifications, fire and forget.
type Notifier interface {
	Notify(text string)
}

// Pacer throttles remote call bursts. *ratelimit.Pacer satisfies it.
type Pacer interface {
	Tick()
}

// Reconciler runs the reconciliation jobs.
type Reconciler struct {
	dir      Directory
	lc       Lifecycle
	usageSrc UsageSource
	audit    Auditor
	notifier Notifier
	pacer    Pacer
	logger   *zap.Logger
	now      func() time.Time
}

func New(dir Directory, lc Lifecycle, usageSrc UsageSource, audit Auditor, notifier Notifier, pacer Pacer, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		dir:      dir,
		lc:       lc,
		usageSrc: usageSrc,
		audit:    audit,
		notifier: notifier,
		pacer:    pacer,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the job clock (tests).
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Tally is the per-run counter set recorded in the audit log.
type Tally struct {
	Scanned   int    `json:"scanned"`
	Changed   int    `json:"changed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	LastError string `json:"last_error,omitempty"`
}

func (t *Tally) fail(err error) {
	t.Failed++
	if err != nil {
		t.LastError = err.Error()
	}
}

// guarded runs fn with panic recovery so one entity cannot take down a sweep.
func (r *Reconciler) guarded(what string, id uint, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic during reconciliation",
				zap.String("entity", what),
				zap.Uint("id", id),
				zap.Any("panic", rec),
			)
			err = &panicError{entity: what, id: id}
		}
	}()
	return fn()
}

type panicError struct {
	entity string
	id     uint
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic while reconciling %s %d", e.entity, e.id)
}

func (r *Reconciler) finish(runID, job string, tally Tally, started time.Time) {
	r.logger.Info("reconciliation job finished",
		zap.String("job", job),
		zap.String("run_id", runID),
		zap.Int("scanned", tally.Scanned),
		zap.Int("changed", tally.Changed),
		zap.Int("skipped", tally.Skipped),
		zap.Int("failed", tally.Failed),
		zap.Duration("took", time.Since(started)),
	)
	if r.audit == nil {
		return
	}
	if err := r.audit.Record(runID, job, tally); err != nil {
		r.logger.Error("failed to record audit entry",
			zap.String("job", job), zap.Error(err))
	}
}

func (r *Reconciler) notify(text string) {
	if r.notifier != nil {
		r.notifier.Notify(text)
	}
}

func newRunID() string {
	return uuid.NewString()
}
