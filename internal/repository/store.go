package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/xshayank/vpnmarket-reseller/internal/lifecycle"
	"github.com/xshayank/vpnmarket-reseller/internal/models"
)

// GormStore adapts the repositories to the lifecycle.Store interface.
// Transact rebinds every repository to the transaction handle so locks and
// writes inside fn share one database transaction.
type GormStore struct {
	db        *gorm.DB
	configs   *ConfigRepository
	events    *EventRepository
	resellers *ResellerRepository
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:        db,
		configs:   NewConfigRepository(db),
		events:    NewEventRepository(db),
		resellers: NewResellerRepository(db),
	}
}

var _ lifecycle.Store = (*GormStore)(nil)

func (s *GormStore) Transact(ctx context.Context, fn func(tx lifecycle.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormStore(tx))
	})
}

func (s *GormStore) LockConfig(id uint) (*models.ResellerConfig, error) {
	return s.configs.LockByID(id)
}

func (s *GormStore) SaveConfig(cfg *models.ResellerConfig) error {
	return s.configs.Save(cfg)
}

func (s *GormStore) CreateConfig(cfg *models.ResellerConfig) error {
	return s.configs.Create(cfg)
}

func (s *GormStore) SoftDeleteConfig(cfg *models.ResellerConfig) error {
	return s.configs.SoftDelete(cfg)
}

func (s *GormStore) CreateEvent(ev *models.ResellerConfigEvent) error {
	return s.events.Create(ev)
}

func (s *GormStore) UpdateEventMeta(eventID uint, meta string) error {
	return s.events.UpdateMeta(eventID, meta)
}

func (s *GormStore) LastEvent(configID uint) (*models.ResellerConfigEvent, error) {
	return s.events.LastByConfig(configID)
}

func (s *GormStore) LockReseller(id uint) (*models.Reseller, error) {
	return s.resellers.LockByID(id)
}

func (s *GormStore) SaveReseller(r *models.Reseller) error {
	return s.resellers.Save(r)
}

// Listing surface used by the reconciliation jobs.

func (s *GormStore) ResellerByID(id uint) (*models.Reseller, error) {
	return s.resellers.FindByID(id)
}

func (s *GormStore) TrafficMeteredResellers() ([]models.Reseller, error) {
	return s.resellers.FindTrafficMetered()
}

func (s *GormStore) SuspendedResellers() ([]models.Reseller, error) {
	return s.resellers.FindSuspended()
}

func (s *GormStore) AllConfigsOfReseller(resellerID uint) ([]models.ResellerConfig, error) {
	return s.configs.FindAllByReseller(resellerID)
}

func (s *GormStore) ConfigsOfResellerByStatus(resellerID uint, status string) ([]models.ResellerConfig, error) {
	return s.configs.FindByResellerStatus(resellerID, status)
}

func (s *GormStore) ConfigsByStatus(status string) ([]models.ResellerConfig, error) {
	return s.configs.FindByStatus(status)
}

func (s *GormStore) ExpiredDueConfigs(now time.Time) ([]models.ResellerConfig, error) {
	return s.configs.FindExpiredDue(now)
}

func (s *GormStore) ResetDueConfigs(now time.Time) ([]models.ResellerConfig, error) {
	return s.configs.FindResetDue(now)
}

func (s *GormStore) UpdateResellerUsedBytes(id uint, usedBytes int64) error {
	return s.resellers.UpdateUsedBytes(id, usedBytes)
}

func (s *GormStore) UpdateConfigUsage(id uint, usageBytes int64) error {
	return s.configs.UpdateUsage(id, usageBytes)
}
