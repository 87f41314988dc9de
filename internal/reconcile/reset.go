package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xshayank/vpnmarket-reseller/internal/models"
)

// ResetDueConfigs is the scheduled leg of usage resetting: it sweeps configs
// whose billing cycle has come around (next_usage_reset_at in the past) and
// resets them through the batch path.
func (r *Reconciler) ResetDueConfigs(ctx context.Context) Tally {
	due, err := r.dir.ResetDueConfigs(r.now())
	if err != nil {
		r.logger.Error("failed to list reset-due configs", zap.Error(err))
		var tally Tally
		tally.fail(err)
		r.finish(newRunID(), "reset_usage", tally, r.now())
		return tally
	}
	ids := make([]uint, 0, len(due))
	for i := range due {
		ids = append(ids, due[i].ID)
	}
	return r.ResetUsageBatch(ctx, ids, models.ReasonScheduled)
}

// ResetUsageBatch settles and zeroes the usage counters of the given configs.
// Each reset runs in its own transaction so one failure never rolls back
// resets already committed, and the sweep continues past it. Touched reseller
// aggregates are recomputed once at the end and the run is audit-logged.
func (r *Reconciler) ResetUsageBatch(ctx context.Context, configIDs []uint, reason string) Tally {
	runID := newRunID()
	started := r.now()
	var tally Tally

	touched := make(map[uint]bool)
	for _, id := range configIDs {
		if ctx.Err() != nil {
			break
		}
		tally.Scanned++

		err := r.guarded("config", id, func() error {
			res, err := r.lc.ResetUsage(ctx, id, reason)
			if err != nil {
				return err
			}
			touched[res.Config.ResellerID] = true
			tally.Changed++
			return nil
		})
		if err != nil {
			r.logger.Error("usage reset failed for config",
				zap.Uint("config_id", id), zap.Error(err))
			tally.fail(err)
		}
	}

	for resellerID := range touched {
		if err := r.RefreshResellerAggregate(resellerID); err != nil {
			r.logger.Warn("failed to refresh reseller aggregate after reset",
				zap.Uint("reseller_id", resellerID), zap.Error(err))
		}
	}

	if tally.Changed > 0 {
		r.notify(fmt.Sprintf("usage reset: %d configs reset, %d failed", tally.Changed, tally.Failed))
	}
	r.finish(runID, "reset_usage", tally, started)
	return tally
}
