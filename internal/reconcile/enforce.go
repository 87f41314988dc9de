package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xshayank/vpnmarket-reseller/internal/models"
	"github.com/xshayank/vpnmarket-reseller/internal/quota"
	"github.com/xshayank/vpnmarket-reseller/internal/usage"
)

// EnforceResellers sweeps active traffic-metered resellers, recomputes each
// aggregate from a fresh read, and suspends those that exhausted their quota
// or ran out their window. Suspension fans out to the reseller's active
// configs one at a time; a config that fails to disable is logged and
// counted, never allowed to abort the rest.
func (r *Reconciler) EnforceResellers(ctx context.Context) Tally {
	runID := newRunID()
	started := r.now()
	var tally Tally

	resellers, err := r.dir.TrafficMeteredResellers()
	if err != nil {
		r.logger.Error("failed to list traffic resellers", zap.Error(err))
		tally.fail(err)
		r.finish(runID, "enforce_resellers", tally, started)
		return tally
	}

	now := r.now()
	for i := range resellers {
		if ctx.Err() != nil {
			break
		}
		res := &resellers[i]
		if res.Status != models.ResellerStatusActive {
			continue
		}
		tally.Scanned++

		err := r.guarded("reseller", res.ID, func() error {
			return r.enforceOne(ctx, res, now, &tally)
		})
		if err != nil {
			r.logger.Error("enforcement failed for reseller",
				zap.Uint("reseller_id", res.ID), zap.Error(err))
			tally.fail(err)
		}
	}

	r.finish(runID, "enforce_resellers", tally, started)
	return tally
}

func (r *Reconciler) enforceOne(ctx context.Context, res *models.Reseller, now time.Time, tally *Tally) error {
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
	if quota.Evaluate(snap, now) != quota.ShouldSuspend {
		return nil
	}

	reason := quota.SuspendReason(snap)
	if _, err := r.lc.SuspendReseller(ctx, res.ID); err != nil {
		return err
	}
	tally.Changed++
	r.logger.Info("reseller suspended",
		zap.Uint("reseller_id", res.ID),
		zap.String("reason", reason),
		zap.Int64("aggregate_bytes", agg),
	)

	active, err := r.dir.ConfigsOfResellerByStatus(res.ID, models.ConfigStatusActive)
	if err != nil {
		return err
	}
	disabled, failed := 0, 0
	for i := range active {
		if ctx.Err() != nil {
			break
		}
		if _, err := r.lc.AutoDisable(ctx, active[i].ID, reason); err != nil {
			failed++
			r.logger.Error("failed to disable config during suspension",
				zap.Uint("config_id", active[i].ID), zap.Error(err))
			continue
		}
		disabled++
	}
	if failed > 0 {
		tally.Failed += failed
	}

	r.notify(fmt.Sprintf("reseller %d suspended (%s): %d configs disabled, %d failed",
		res.ID, reason, disabled, failed))
	return nil
}
