// Package lifecycle implements the config state machine. Every transition
// follows the same discipline: commit the local status change and its event
// in one transaction first, then call the remote panel, then record the
// remote outcome in the event's meta. A remote failure never rolls back the
// local state; reconciliation jobs converge the panel later.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xshayank/vpnmarket-reseller/internal/models"
	"github.com/xshayank/vpnmarket-reseller/internal/provision"
	"github.com/xshayank/vpnmarket-reseller/internal/usage"
)

// Remote is the provisioning surface the controller calls after a local
// commit. *provision.Provisioner satisfies it.
type Remote interface {
	Enable(ctx context.Context, cfg *models.ResellerConfig) provision.Outcome
	Disable(ctx context.Context, cfg *models.ResellerConfig) provision.Outcome
	ResetUsage(ctx context.Context, cfg *models.ResellerConfig) provision.Outcome
}

// Result reports a completed transition: the committed config row, its event,
// and the remote outcome (zero when the transition has no remote side).
type Result struct {
	Config *models.ResellerConfig
	Event  *models.ResellerConfigEvent
	Remote provision.Outcome
}

// Controller drives config transitions against a Store and a Remote.
type Controller struct {
	store  Store
	remote Remote
	logger *zap.Logger
	now    func() time.Time
}

func NewController(store Store, remote Remote, logger *zap.Logger) *Controller {
	return &Controller{store: store, remote: remote, logger: logger, now: time.Now}
}

// WithClock overrides the transition clock (tests).
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// transition is the shared commit-then-provision skeleton.
//
// guard validates the freshly locked row and may reject the transition;
// mutate applies the local change and fills the event meta; remoteCall, if
// non-nil, runs after commit and its outcome is written back into the event.
type transition struct {
	eventType  string
	guard      func(tx Store, cfg *models.ResellerConfig) error
	mutate     func(cfg *models.ResellerConfig, meta *models.EventMeta)
	remoteCall func(ctx context.Context, cfg *models.ResellerConfig) provision.Outcome
	softDelete bool
}

func (c *Controller) run(ctx context.Context, configID uint, t transition) (*Result, error) {
	var (
		cfg  *models.ResellerConfig
		ev   *models.ResellerConfigEvent
		meta models.EventMeta
	)

	err := c.store.Transact(ctx, func(tx Store) error {
		fresh, err := tx.LockConfig(configID)
		if err != nil {
			return err
		}
		if t.guard != nil {
			if err := t.guard(tx, fresh); err != nil {
				return err
			}
		}

		meta = models.EventMeta{FromStatus: fresh.Status}
		t.mutate(fresh, &meta)
		meta.ToStatus = fresh.Status

		now := c.now()
		fresh.StatusChangedAt = &now

		if t.softDelete {
			if err := tx.SoftDeleteConfig(fresh); err != nil {
				return err
			}
		}
		if err := tx.SaveConfig(fresh); err != nil {
			return err
		}

		event := &models.ResellerConfigEvent{
			ResellerConfigID: fresh.ID,
			Type:             t.eventType,
			Meta:             models.EncodeEventMeta(meta),
		}
		if err := tx.CreateEvent(event); err != nil {
			return err
		}

		cfg, ev = fresh, event
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Config: cfg, Event: ev}
	if t.remoteCall == nil {
		return res, nil
	}

	// Local state is committed; the remote call completes the event but can
	// no longer undo the transition.
	res.Remote = t.remoteCall(ctx, cfg)
	meta.RemoteSuccess = &res.Remote.Success
	meta.Attempts = res.Remote.Attempts
	meta.LastError = res.Remote.LastError
	ev.Meta = models.EncodeEventMeta(meta)

	if err := c.store.UpdateEventMeta(ev.ID, ev.Meta); err != nil {
		c.logger.Error("failed to record remote outcome on event",
			zap.Uint("event_id", ev.ID),
			zap.Uint("config_id", cfg.ID),
			zap.Error(err),
		)
	}
	if !res.Remote.Success {
		c.logger.Warn("remote panel did not confirm transition",
			zap.Uint("config_id", cfg.ID),
			zap.String("event", t.eventType),
			zap.Int("attempts", res.Remote.Attempts),
			zap.String("last_error", res.Remote.LastError),
		)
	}
	return res, nil
}

// Create registers a config row and its created event. The remote account is
// expected to exist already; creation does not touch the panel.
func (c *Controller) Create(ctx context.Context, cfg *models.ResellerConfig) (*Result, error) {
	if cfg.Status == "" {
		cfg.Status = models.ConfigStatusActive
	}
	var ev *models.ResellerConfigEvent
	err := c.store.Transact(ctx, func(tx Store) error {
		if err := tx.CreateConfig(cfg); err != nil {
			return err
		}
		ev = &models.ResellerConfigEvent{
			ResellerConfigID: cfg.ID,
			Type:             models.EventCreated,
			Meta: models.EncodeEventMeta(models.EventMeta{
				Reason:   models.ReasonAdmin,
				ToStatus: cfg.Status,
			}),
		}
		return tx.CreateEvent(ev)
	})
	if err != nil {
		return nil, err
	}
	return &Result{Config: cfg, Event: ev}, nil
}

// Disable takes an active config down on operator request.
func (c *Controller) Disable(ctx context.Context, configID uint, reason string) (*Result, error) {
	return c.run(ctx, configID, transition{
		eventType: models.EventDisabled,
		guard:     requireStatus(models.ConfigStatusActive),
		mutate: func(cfg *models.ResellerConfig, meta *models.EventMeta) {
			meta.Reason = reason
			now := c.now()
			cfg.Status = models.ConfigStatusDisabled
			cfg.DisabledAt = &now
		},
		remoteCall: c.remote.Disable,
	})
}

// AutoDisable takes an active config down because its reseller tripped a
// quota or window trigger. Reason must be one of the reseller_* reasons so
// the recovery pass can later reverse it.
func (c *Controller) AutoDisable(ctx context.Context, configID uint, reason string) (*Result, error) {
	return c.run(ctx, configID, transition{
		eventType: models.EventAutoDisabled,
		guard:     requireStatus(models.ConfigStatusActive),
		mutate: func(cfg *models.ResellerConfig, meta *models.EventMeta) {
			meta.Reason = reason
			now := c.now()
			cfg.Status = models.ConfigStatusDisabled
			cfg.DisabledAt = &now
		},
		remoteCall: c.remote.Disable,
	})
}

// Enable brings a disabled config back on operator request. It does not
// consult the last-event gate; a human decision overrides it.
func (c *Controller) Enable(ctx context.Context, configID uint, reason string) (*Result, error) {
	return c.run(ctx, configID, transition{
		eventType: models.EventEnabled,
		guard:     requireStatus(models.ConfigStatusDisabled),
		mutate: func(cfg *models.ResellerConfig, meta *models.EventMeta) {
			meta.Reason = reason
			cfg.Status = models.ConfigStatusActive
			cfg.DisabledAt = nil
		},
		remoteCall: c.remote.Enable,
	})
}

// AutoEnable re-enables a config during reseller recovery. It refuses unless
// the config's latest event shows an automatic reseller-level disable, so
// recovery never reverses a manual or admin action.
func (c *Controller) AutoEnable(ctx context.Context, configID uint) (*Result, error) {
	return c.run(ctx, configID, transition{
		eventType: models.EventAutoEnabled,
		guard: func(tx Store, cfg *models.ResellerConfig) error {
			if err := requireStatus(models.ConfigStatusDisabled)(tx, cfg); err != nil {
				return err
			}
			last, err := tx.LastEvent(cfg.ID)
			if err != nil {
				return err
			}
			if !ReEnableEligible(last) {
				return ErrNotEligible
			}
			return nil
		},
		mutate: func(cfg *models.ResellerConfig, meta *models.EventMeta) {
			meta.Reason = models.ReasonResellerRecovered
			cfg.Status = models.ConfigStatusActive
			cfg.DisabledAt = nil
		},
		remoteCall: c.remote.Enable,
	})
}

// ResetUsage settles the config's live counter into its settled counter,
// zeroes panel-side counters kept in meta, and resets the remote counter.
// The reseller aggregate is unchanged by construction.
func (c *Controller) ResetUsage(ctx context.Context, configID uint, reason string) (*Result, error) {
	return c.run(ctx, configID, transition{
		eventType: models.EventUsageReset,
		guard: func(tx Store, cfg *models.ResellerConfig) error {
			if cfg.Status == models.ConfigStatusDeleted {
				return fmt.Errorf("%w: config is deleted", ErrInvalidTransition)
			}
			return nil
		},
		mutate: func(cfg *models.ResellerConfig, meta *models.EventMeta) {
			meta.Reason = reason
			meta.BytesSettled = usage.Settle(cfg)
			usage.ZeroPanelCounters(cfg)
			if cfg.ResetIntervalDays > 0 {
				// Any reset restarts the billing cycle, manual ones included.
				next := c.now().AddDate(0, 0, cfg.ResetIntervalDays)
				cfg.NextUsageResetAt = &next
			}
		},
		remoteCall: c.remote.ResetUsage,
	})
}

// Expire marks an active config expired and disables it remotely.
func (c *Controller) Expire(ctx context.Context, configID uint) (*Result, error) {
	return c.run(ctx, configID, transition{
		eventType: models.EventExpired,
		guard:     requireStatus(models.ConfigStatusActive),
		mutate: func(cfg *models.ResellerConfig, meta *models.EventMeta) {
			meta.Reason = models.ReasonConfigExpired
			now := c.now()
			cfg.Status = models.ConfigStatusExpired
			cfg.DisabledAt = &now
		},
		remoteCall: c.remote.Disable,
	})
}

// SoftDelete removes a config from service while keeping its row and usage
// on the books. The remote account is disabled, not destroyed.
func (c *Controller) SoftDelete(ctx context.Context, configID uint, reason string) (*Result, error) {
	return c.run(ctx, configID, transition{
		eventType: models.EventDeleted,
		guard: func(tx Store, cfg *models.ResellerConfig) error {
			if cfg.Status == models.ConfigStatusDeleted {
				return fmt.Errorf("%w: already deleted", ErrInvalidTransition)
			}
			return nil
		},
		mutate: func(cfg *models.ResellerConfig, meta *models.EventMeta) {
			meta.Reason = reason
			now := c.now()
			cfg.Status = models.ConfigStatusDeleted
			cfg.DisabledAt = &now
		},
		remoteCall: c.remote.Disable,
		softDelete: true,
	})
}

// SuspendReseller flips the reseller to suspended. Config fan-out is the
// reconciler's job so one bad config cannot block the status flip.
func (c *Controller) SuspendReseller(ctx context.Context, resellerID uint) (*models.Reseller, error) {
	var out *models.Reseller
	err := c.store.Transact(ctx, func(tx Store) error {
		r, err := tx.LockReseller(resellerID)
		if err != nil {
			return err
		}
		if r.Status == models.ResellerStatusSuspended {
			out = r
			return nil
		}
		now := c.now()
		r.Status = models.ResellerStatusSuspended
		r.SuspendedAt = &now
		if err := tx.SaveReseller(r); err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

// ReactivateReseller flips a suspended reseller back to active.
func (c *Controller) ReactivateReseller(ctx context.Context, resellerID uint) (*models.Reseller, error) {
	var out *models.Reseller
	err := c.store.Transact(ctx, func(tx Store) error {
		r, err := tx.LockReseller(resellerID)
		if err != nil {
			return err
		}
		if r.Status == models.ResellerStatusActive {
			out = r
			return nil
		}
		r.Status = models.ResellerStatusActive
		r.SuspendedAt = nil
		if err := tx.SaveReseller(r); err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

func requireStatus(want string) func(tx Store, cfg *models.ResellerConfig) error {
	return func(tx Store, cfg *models.ResellerConfig) error {
		if cfg.Status != want {
			return fmt.Errorf("%w: status is %s, want %s", ErrInvalidTransition, cfg.Status, want)
		}
		return nil
	}
}
