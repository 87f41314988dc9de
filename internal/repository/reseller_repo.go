package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xshayank/vpnmarket-reseller/internal/models"
)

// ResellerRepository handles reseller database operations.
type ResellerRepository struct {
	db *gorm.DB
}

func NewResellerRepository(db *gorm.DB) *ResellerRepository {
	return &ResellerRepository{db: db}
}

// FindByID returns a reseller by ID.
func (r *ResellerRepository) FindByID(id uint) (*models.Reseller, error) {
	var reseller models.Reseller
	if err := r.db.Where("id = ?", id).First(&reseller).Error; err != nil {
		return nil, err
	}
	return &reseller, nil
}

// LockByID re-reads a reseller with a row lock. Must run inside a transaction.
func (r *ResellerRepository) LockByID(id uint) (*models.Reseller, error) {
	var reseller models.Reseller
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&reseller).Error
	if err != nil {
		return nil, err
	}
	return &reseller, nil
}

// FindTrafficMetered returns every traffic-type reseller regardless of
// status; the enforcement job evaluates both directions in one sweep.
func (r *ResellerRepository) FindTrafficMetered() ([]models.Reseller, error) {
	var resellers []models.Reseller
	err := r.db.Where("type = ?", models.ResellerTypeTraffic).
		Order("id ASC").Find(&resellers).Error
	return resellers, err
}

// FindSuspended returns suspended resellers, oldest suspension first.
func (r *ResellerRepository) FindSuspended() ([]models.Reseller, error) {
	var resellers []models.Reseller
	err := r.db.Where("status = ?", models.ResellerStatusSuspended).
		Order("suspended_at ASC").Find(&resellers).Error
	return resellers, err
}

// Create creates a new reseller.
func (r *ResellerRepository) Create(reseller *models.Reseller) error {
	return r.db.Create(reseller).Error
}

// Save persists all fields of an already-loaded reseller.
func (r *ResellerRepository) Save(reseller *models.Reseller) error {
	return r.db.Save(reseller).Error
}

// Update updates reseller fields.
func (r *ResellerRepository) Update(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.Reseller{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateUsedBytes writes the denormalized usage aggregate cached on the row.
func (r *ResellerRepository) UpdateUsedBytes(id uint, usedBytes int64) error {
	return r.db.Model(&models.Reseller{}).Where("id = ?", id).
		UpdateColumn("traffic_used_bytes", usedBytes).Error
}

// CreditWallet atomically adds amount to the reseller's wallet and records a
// wallet transaction carrying the resulting balance.
func (r *ResellerRepository) CreditWallet(id uint, amount int64, reason string) (*models.Reseller, error) {
	var reseller models.Reseller
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&reseller).Error; err != nil {
			return err
		}
		reseller.WalletBalance += amount
		if err := tx.Save(&reseller).Error; err != nil {
			return err
		}
		return tx.Create(&models.WalletTransaction{
			ResellerID: id,
			Amount:     amount,
			Reason:     reason,
			BalanceAt:  reseller.WalletBalance,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &reseller, nil
}
