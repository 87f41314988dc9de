package reconcile

import (
	"context"

	"go.uber.org/zap"

	"github.com/xshayank/vpnmarket-reseller/internal/models"
	"github.com/xshayank/vpnmarket-reseller/internal/usage"
)

// SyncUsage pulls live usage counters from the panels for every active
// config, writes the changed ones, and refreshes the cached aggregate of
// each touched reseller. Unreachable panels are counted and skipped.
func (r *Reconciler) SyncUsage(ctx context.Context) Tally {
	runID := newRunID()
	started := r.now()
	var tally Tally

	configs, err := r.dir.ConfigsByStatus(models.ConfigStatusActive)
	if err != nil {
		r.logger.Error("failed to list active configs", zap.Error(err))
		tally.fail(err)
		r.finish(runID, "sync_usage", tally, started)
		return tally
	}

	touched := make(map[uint]struct{})
	for i := range configs {
		if ctx.Err() != nil {
			break
		}
		cfg := &configs[i]
		tally.Scanned++

		used, outcome := r.usageSrc.FetchUsage(ctx, cfg)
		r.pacer.Tick()
		if !outcome.Success {
			tally.Failed++
			tally.LastError = outcome.LastError
			continue
		}
		if used == cfg.UsageBytes {
			tally.Skipped++
			continue
		}

		last, err := r.dir.LastEvent(cfg.ID)
		if err != nil {
			r.logger.Error("failed to read event log before usage import",
				zap.Uint("config_id", cfg.ID), zap.Error(err))
			tally.fail(err)
			continue
		}
		if last != nil && last.Type == models.EventUsageReset {
			if rs := last.DecodedMeta().RemoteSuccess; rs != nil && !*rs {
				// The local counter was settled but the panel never zeroed
				// its side; importing now would count the settled bytes
				// twice. Wait for the remote reset to converge.
				r.logger.Warn("skipping usage import, remote reset not confirmed",
					zap.Uint("config_id", cfg.ID))
				tally.Skipped++
				continue
			}
		}
		if used < cfg.UsageBytes {
			// A remote counter only shrinks through a reset we performed.
			r.logger.Warn("remote usage decreased without a local reset",
				zap.Uint("config_id", cfg.ID),
				zap.Int64("local_bytes", cfg.UsageBytes),
				zap.Int64("remote_bytes", used))
			tally.Skipped++
			continue
		}

		if err := r.dir.UpdateConfigUsage(cfg.ID, used); err != nil {
			r.logger.Error("failed to store synced usage",
				zap.Uint("config_id", cfg.ID), zap.Error(err))
			tally.fail(err)
			continue
		}
		tally.Changed++
		touched[cfg.ResellerID] = struct{}{}
	}

	for resellerID := range touched {
		if err := r.RefreshResellerAggregate(resellerID); err != nil {
			r.logger.Warn("failed to refresh reseller aggregate",
				zap.Uint("reseller_id", resellerID), zap.Error(err))
		}
	}

	r.finish(runID, "sync_usage", tally, started)
	return tally
}

// RefreshResellerAggregate recomputes and caches one reseller's usage
// aggregate from all of its configs, soft-deleted included. API handlers
// call this after a usage reset so reads stay fresh between sweeps.
func (r *Reconciler) RefreshResellerAggregate(resellerID uint) error {
	res, err := r.dir.ResellerByID(resellerID)
	if err != nil {
		return err
	}
	configs, err := r.dir.AllConfigsOfReseller(resellerID)
	if err != nil {
		return err
	}
	agg := usage.Aggregate(configs, res.ForgivenBytes)
	return r.dir.UpdateResellerUsedBytes(resellerID, agg)
}
