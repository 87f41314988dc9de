package reconcile

import (
	"context"

	"go.uber.org/zap"

	"github.com/xshayank/vpnmarket-reseller/internal/models"
)

// AuditBackstop detects configs whose current status disagrees with the
// status their latest event recorded (a transition that bypassed the
// controller, a crashed process, manual database surgery) and writes an
// audit_status_changed event documenting the observed jump. It repairs the
// log, never the status.
func (r *Reconciler) AuditBackstop(ctx context.Context) Tally {
	runID := newRunID()
	started := r.now()
	var tally Tally

	statuses := []string{
		models.ConfigStatusActive,
		models.ConfigStatusDisabled,
		models.ConfigStatusExpired,
	}
	for _, status := range statuses {
		if ctx.Err() != nil {
			break
		}
		configs, err := r.dir.ConfigsByStatus(status)
		if err != nil {
			r.logger.Error("failed to list configs for audit",
				zap.String("status", status), zap.Error(err))
			tally.fail(err)
			continue
		}
		for i := range configs {
			if ctx.Err() != nil {
				break
			}
			cfg := &configs[i]
			tally.Scanned++

			last, err := r.dir.LastEvent(cfg.ID)
			if err != nil {
				tally.fail(err)
				continue
			}
			if last == nil {
				// Pre-existing row from before event logging; nothing to
				// compare against.
				tally.Skipped++
				continue
			}
			recorded := last.DecodedMeta().ToStatus
			if recorded == "" || recorded == cfg.Status {
				continue
			}

			ev := &models.ResellerConfigEvent{
				ResellerConfigID: cfg.ID,
				Type:             models.EventAuditStatusChanged,
				Meta: models.EncodeEventMeta(models.EventMeta{
					FromStatus: recorded,
					ToStatus:   cfg.Status,
				}),
			}
			if err := r.dir.CreateEvent(ev); err != nil {
				tally.fail(err)
				continue
			}
			tally.Changed++
			r.logger.Warn("status drift detected",
				zap.Uint("config_id", cfg.ID),
				zap.String("recorded", recorded),
				zap.String("actual", cfg.Status),
			)
		}
	}

	r.finish(runID, "audit_backstop", tally, started)
	return tally
}
