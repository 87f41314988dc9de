package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xshayank/vpnmarket-reseller/internal/lifecycle"
	"github.com/xshayank/vpnmarket-reseller/internal/models"
	"github.com/xshayank/vpnmarket-reseller/internal/quota"
	"github.com/xshayank/vpnmarket-reseller/internal/usage"
)

// RecoverConfigs sweeps suspended resellers and reactivates those that have
// both traffic headroom and a currently valid window again (topped-up quota,
// renewed window, or forgiven bytes). Reactivation re-enables only configs
// whose latest event shows an automatic reseller-level disable; manual and
// admin disables stay down. The re-enable fan-out is paced so a large
// recovery does not hammer the panels.
func (r *Reconciler) RecoverConfigs(ctx context.Context) Tally {
	runID := newRunID()
	started := r.now()
	var tally Tally

	resellers, err := r.dir.SuspendedResellers()
	if err != nil {
		r.logger.Error("failed to list suspended resellers", zap.Error(err))
		tally.fail(err)
		r.finish(runID, "recover_configs", tally, started)
		return tally
	}

	now := r.now()
	for i := range resellers {
		if ctx.Err() != nil {
			break
		}
		res := &resellers[i]
		tally.Scanned++

		err := r.guarded("reseller", res.ID, func() error {
			return r.recoverOne(ctx, res, now, &tally)
		})
		if err != nil {
			r.logger.Error("recovery failed for reseller",
				zap.Uint("reseller_id", res.ID), zap.Error(err))
			tally.fail(err)
		}
	}

	r.finish(runID, "recover_configs", tally, started)
	return tally
}

// RecoverReseller runs the recovery check for a single reseller, outside the
// scheduled sweep. Wallet credits and window extensions call it so a topped-up
// reseller does not have to wait for the next sweep. Active resellers are a
// no-op.
func (r *Reconciler) RecoverReseller(ctx context.Context, resellerID uint) error {
	res, err := r.dir.ResellerByID(resellerID)
	if err != nil {
		return err
	}
	if res.Status != models.ResellerStatusSuspended {
		return nil
	}
	var tally Tally
	return r.recoverOne(ctx, res, r.now(), &tally)
}

func (r *Reconciler) recoverOne(ctx context.Context, res *models.Reseller, now time.Time, tally *Tally) error {
	configs, err := r.dir.AllConfigsOfReseller(res.ID)
	if err != nil {
		return err
	}
	agg := usage.Aggregate(configs, res.ForgivenBytes)
	if err := r.dir.UpdateResellerUsedBytes(res.ID, agg); err != nil {
		r.logger.Warn("failed to cache reseller aggregate",
			zap.Uint("reseller_id", res.ID), zap.Error(err))
	}

	snap := quota.SnapshotOf(res, agg)
	if err := quota.Validate(snap); err != nil {
		r.logger.Warn("skipping reseller with inconsistent data",
			zap.Uint("reseller_id", res.ID), zap.Error(err))
		tally.Skipped++
		return nil
	}
	if quota.Evaluate(snap, now) != quota.ShouldReactivate {
		tally.Skipped++
		return nil
	}

	if _, err := r.lc.ReactivateReseller(ctx, res.ID); err != nil {
		return err
	}
	tally.Changed++
	r.logger.Info("reseller reactivated",
		zap.Uint("reseller_id", res.ID),
		zap.Int64("aggregate_bytes", agg),
	)

	disabled, err := r.dir.ConfigsOfResellerByStatus(res.ID, models.ConfigStatusDisabled)
	if err != nil {
		return err
	}
	enabled, skipped, failed := 0, 0, 0
	for i := range disabled {
		if ctx.Err() != nil {
			break
		}
		_, err := r.lc.AutoEnable(ctx, disabled[i].ID)
		switch {
		case errors.Is(err, lifecycle.ErrNotEligible):
			// No remote call happened; the pacer does not tick.
			skipped++
			continue
		case err != nil:
			failed++
			r.logger.Error("failed to re-enable config during recovery",
				zap.Uint("config_id", disabled[i].ID), zap.Error(err))
		default:
			enabled++
		}
		r.pacer.Tick()
	}
	tally.Skipped += skipped
	if failed > 0 {
		tally.Failed += failed
	}

	r.notify(fmt.Sprintf("reseller %d reactivated: %d configs re-enabled, %d kept down, %d failed",
		res.ID, enabled, skipped, failed))
	return nil
}
