package repository

import (
	"gorm.io/gorm"

	"github.com/xshayank/vpnmarket-reseller/internal/models"
)

// PanelRepository handles panel database operations.
type PanelRepository struct {
	db *gorm.DB
}

func NewPanelRepository(db *gorm.DB) *PanelRepository {
	return &PanelRepository{db: db}
}

// FindByID returns a panel by ID.
func (r *PanelRepository) FindByID(id uint) (*models.Panel, error) {
	var panel models.Panel
	if err := r.db.Where("id = ?", id).First(&panel).Error; err != nil {
		return nil, err
	}
	return &panel, nil
}

// FindActive returns all active panels.
func (r *PanelRepository) FindActive() ([]models.Panel, error) {
	var panels []models.Panel
	err := r.db.Where("status = ?", "active").Find(&panels).Error
	return panels, err
}

// FindByType returns panels filtered by type (marzban, marzneshin, ...).
func (r *PanelRepository) FindByType(panelType string) ([]models.Panel, error) {
	var panels []models.Panel
	err := r.db.Where("type = ?", panelType).Find(&panels).Error
	return panels, err
}

// Create creates a new panel.
func (r *PanelRepository) Create(panel *models.Panel) error {
	return r.db.Create(panel).Error
}

// Update updates panel fields.
func (r *PanelRepository) Update(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.Panel{}).Where("id = ?", id).Updates(updates).Error
}

// Delete deletes a panel.
func (r *PanelRepository) Delete(id uint) error {
	return r.db.Where("id = ?", id).Delete(&models.Panel{}).Error
}
