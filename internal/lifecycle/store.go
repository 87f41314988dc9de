package lifecycle

import (
	"context"

	"github.com/xshayank/vpnmarket-reseller/internal/models"
)

// Store is the persistence surface the controller needs. The gorm
// implementation lives in internal/repository; tests use an in-memory fake.
//
// LockConfig and LockReseller must re-read the row fresh inside the current
// transaction (with a row lock on real databases) so transitions never act on
// stale state.
type Store interface {
	// Transact runs fn inside one database transaction. The Store passed to
	// fn is bound to that transaction.
	Transact(ctx context.Context, fn func(tx Store) error) error

	LockConfig(id uint) (*models.ResellerConfig, error)
	SaveConfig(cfg *models.ResellerConfig) error
	CreateConfig(cfg *models.ResellerConfig) error
	SoftDeleteConfig(cfg *models.ResellerConfig) error

	CreateEvent(ev *models.ResellerConfigEvent) error
	UpdateEventMeta(eventID uint, meta string) error
	LastEvent(configID uint) (*models.ResellerConfigEvent, error)

	LockReseller(id uint) (*models.Reseller, error)
	SaveReseller(r *models.Reseller) error
}

// ReEnableEligible implements the recovery gate: a disabled config may be
// auto re-enabled only when its most recent event shows it was auto-disabled
// for a reseller-level cause. Manual and admin disables, expiries and
// deletions stay down until a human reverses them.
func ReEnableEligible(last *models.ResellerConfigEvent) bool {
	if last == nil || last.Type != models.EventAutoDisabled {
		return false
	}
	switch last.DecodedMeta().Reason {
	case models.ReasonQuotaExhausted, models.ReasonWindowExpired:
		return true
	default:
		return false
	}
}
