package reconcile

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/xshayank/vpnmarket-reseller/internal/lifecycle"
)

// ExpireConfigs moves active configs whose expiry timestamp has passed into
// the expired status and disables them remotely. Re-running the job over the
// same rows is a no-op: an already-expired config fails the status guard and
// counts as skipped.
func (r *Reconciler) ExpireConfigs(ctx context.Context) Tally {
	runID := newRunID()
	started := r.now()
	var tally Tally

	due, err := r.dir.ExpiredDueConfigs(r.now())
	if err != nil {
		r.logger.Error("failed to list expired configs", zap.Error(err))
		tally.fail(err)
		r.finish(runID, "expire_configs", tally, started)
		return tally
	}

	for i := range due {
		if ctx.Err() != nil {
			break
		}
		cfg := &due[i]
		tally.Scanned++

		err := r.guarded("config", cfg.ID, func() error {
			_, err := r.lc.Expire(ctx, cfg.ID)
			return err
		})
		switch {
		case errors.Is(err, lifecycle.ErrInvalidTransition):
			tally.Skipped++
		case err != nil:
			r.logger.Error("failed to expire config",
				zap.Uint("config_id", cfg.ID), zap.Error(err))
			tally.fail(err)
		default:
			tally.Changed++
		}
	}

	r.finish(runID, "expire_configs", tally, started)
	return tally
}
