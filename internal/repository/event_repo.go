package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/xshayank/vpnmarket-reseller/internal/models"
)

// EventRepository handles the append-only config event log.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create appends an event.
func (r *EventRepository) Create(ev *models.ResellerConfigEvent) error {
	return r.db.Create(ev).Error
}

// UpdateMeta completes an event's meta with the remote outcome. This is the
// only mutation the log permits.
func (r *EventRepository) UpdateMeta(eventID uint, meta string) error {
	return r.db.Model(&models.ResellerConfigEvent{}).Where("id = ?", eventID).
		UpdateColumn("meta", meta).Error
}

// LastByConfig returns a config's most recent event, or nil when the config
// has no events yet.
func (r *EventRepository) LastByConfig(configID uint) (*models.ResellerConfigEvent, error) {
	var ev models.ResellerConfigEvent
	err := r.db.Where("reseller_config_id = ?", configID).
		Order("created_at DESC, id DESC").First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListByConfig returns a config's events newest first.
func (r *EventRepository) ListByConfig(configID uint, limit int) ([]models.ResellerConfigEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []models.ResellerConfigEvent
	err := r.db.Where("reseller_config_id = ?", configID).
		Order("created_at DESC, id DESC").Limit(limit).Find(&events).Error
	return events, err
}
