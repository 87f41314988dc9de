package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/xshayank/vpnmarket-reseller/internal/models"
)

// Migrate ensures all tables exist.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		&models.Reseller{},
		&models.ResellerConfig{},
		&models.ResellerConfigEvent{},
		&models.Panel{},
		&models.AuditLog{},
		&models.WalletTransaction{},
	}
}
