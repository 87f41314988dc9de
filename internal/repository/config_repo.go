package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xshayank/vpnmarket-reseller/internal/models"
)

// ConfigRepository handles reseller config database operations. Usage
// queries go through Unscoped so soft-deleted rows keep counting toward the
// owner's aggregate.
type ConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// FindByID returns a config by ID, excluding soft-deleted rows.
func (r *ConfigRepository) FindByID(id uint) (*models.ResellerConfig, error) {
	var cfg models.ResellerConfig
	if err := r.db.Where("id = ?", id).First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindByIDAny returns a config by ID including soft-deleted rows.
func (r *ConfigRepository) FindByIDAny(id uint) (*models.ResellerConfig, error) {
	var cfg models.ResellerConfig
	if err := r.db.Unscoped().Where("id = ?", id).First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LockByID re-reads a config (soft-deleted included) with a row lock. Must
// run inside a transaction.
func (r *ConfigRepository) LockByID(id uint) (*models.ResellerConfig, error) {
	var cfg models.ResellerConfig
	err := r.db.Unscoped().Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindAllByReseller returns every config of a reseller including soft-deleted
// rows. This is the query the usage aggregate is built from.
func (r *ConfigRepository) FindAllByReseller(resellerID uint) ([]models.ResellerConfig, error) {
	var configs []models.ResellerConfig
	err := r.db.Unscoped().Where("reseller_id = ?", resellerID).
		Order("id ASC").Find(&configs).Error
	return configs, err
}

// FindByResellerStatus returns a reseller's live configs in a given status.
func (r *ConfigRepository) FindByResellerStatus(resellerID uint, status string) ([]models.ResellerConfig, error) {
	var configs []models.ResellerConfig
	err := r.db.Where("reseller_id = ? AND status = ?", resellerID, status).
		Order("id ASC").Find(&configs).Error
	return configs, err
}

// FindByStatus returns all live configs in a given status.
func (r *ConfigRepository) FindByStatus(status string) ([]models.ResellerConfig, error) {
	var configs []models.ResellerConfig
	err := r.db.Where("status = ?", status).
		Order("id ASC").Find(&configs).Error
	return configs, err
}

// FindExpiredDue returns active configs whose expiry has passed.
func (r *ConfigRepository) FindExpiredDue(now time.Time) ([]models.ResellerConfig, error) {
	var configs []models.ResellerConfig
	err := r.db.Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?",
		models.ConfigStatusActive, now).
		Order("expires_at ASC").Find(&configs).Error
	return configs, err
}

// FindResetDue returns live configs whose scheduled usage reset has come due.
func (r *ConfigRepository) FindResetDue(now time.Time) ([]models.ResellerConfig, error) {
	var configs []models.ResellerConfig
	err := r.db.Where("next_usage_reset_at IS NOT NULL AND next_usage_reset_at <= ?", now).
		Order("next_usage_reset_at ASC").Find(&configs).Error
	return configs, err
}

// Create creates a new config.
func (r *ConfigRepository) Create(cfg *models.ResellerConfig) error {
	return r.db.Create(cfg).Error
}

// Save persists all fields of an already-loaded config, soft-deleted or not.
func (r *ConfigRepository) Save(cfg *models.ResellerConfig) error {
	return r.db.Unscoped().Save(cfg).Error
}

// SoftDelete marks the row deleted while keeping it for usage accounting.
func (r *ConfigRepository) SoftDelete(cfg *models.ResellerConfig) error {
	return r.db.Delete(cfg).Error
}

// UpdateUsage writes the live usage counter synced from the panel.
func (r *ConfigRepository) UpdateUsage(id uint, usageBytes int64) error {
	return r.db.Model(&models.ResellerConfig{}).Where("id = ?", id).
		UpdateColumn("usage_bytes", usageBytes).Error
}
