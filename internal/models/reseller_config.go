package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ResellerConfig statuses. Transitions are one-directional except
// active<->disabled; deleted and expired are terminal for re-enablement
// unless reversed by an admin.
const (
	ConfigStatusActive   = "active"
	ConfigStatusDisabled = "disabled"
	ConfigStatusExpired  = "expired"
	ConfigStatusDeleted  = "deleted"
)

// ResellerConfig is one remote VPN account leased to a reseller. Rows are
// soft-deleted so historical usage keeps counting toward the reseller
// aggregate after removal.
type ResellerConfig struct {
	ID                uint           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ResellerID        uint           `gorm:"column:reseller_id;index:idx_reseller_configs_owner" json:"reseller_id"`
	ExternalUsername  string         `gorm:"column:external_username;size:255;index" json:"external_username"`
	TrafficLimitBytes int64          `gorm:"column:traffic_limit_bytes;default:0" json:"traffic_limit_bytes"`
	UsageBytes        int64          `gorm:"column:usage_bytes;default:0" json:"usage_bytes"`
	SettledUsageBytes int64          `gorm:"column:settled_usage_bytes;default:0" json:"settled_usage_bytes"`
	Meta              string         `gorm:"column:meta;type:text" json:"meta"`
	ExpiresAt         *time.Time     `gorm:"column:expires_at;index" json:"expires_at"`
	ResetIntervalDays int            `gorm:"column:reset_interval_days;default:0" json:"reset_interval_days"`
	NextUsageResetAt  *time.Time     `gorm:"column:next_usage_reset_at;index" json:"next_usage_reset_at"`
	Status            string         `gorm:"column:status;size:20;index" json:"status"`
	PanelID           uint           `gorm:"column:panel_id" json:"panel_id"`
	PanelType         string         `gorm:"column:panel_type;size:50" json:"panel_type"`
	PanelUserID       string         `gorm:"column:panel_user_id;size:255" json:"panel_user_id"`
	DisabledAt        *time.Time     `gorm:"column:disabled_at" json:"disabled_at"`
	StatusChangedAt   *time.Time     `gorm:"column:status_changed_at" json:"status_changed_at"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"column:deleted_at;index" json:"deleted_at"`
}

func (ResellerConfig) TableName() string {
	return "reseller_configs"
}

// MetaMap decodes the free-form meta column. Panels that report usage
// through their own counters (eylandoo used_traffic / data_used) keep them
// here so remote and local resets agree on the panel's units.
func (c *ResellerConfig) MetaMap() map[string]interface{} {
	out := map[string]interface{}{}
	raw := strings.TrimSpace(c.Meta)
	if raw == "" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

// SetMetaMap encodes meta back into the stored column.
func (c *ResellerConfig) SetMetaMap(m map[string]interface{}) {
	if len(m) == 0 {
		c.Meta = ""
		return
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return
	}
	c.Meta = string(raw)
}
