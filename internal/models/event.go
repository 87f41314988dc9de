package models

import (
	"encoding/json"
	"time"
)

// Event types. Every state-changing operation on a config writes exactly one
// event describing its cause; audit_status_changed is the backstop written by
// the audit reconciliation job when a transition has no matching event.
const (
	EventCreated            = "created"
	EventDisabled           = "disabled"
	EventEnabled            = "enabled"
	EventAutoDisabled       = "auto_disabled"
	EventAutoEnabled        = "auto_enabled"
	EventUsageReset         = "usage_reset"
	EventExpired            = "expired"
	EventDeleted            = "deleted"
	EventAuditStatusChanged = "audit_status_changed"
)

// Event reasons carried in meta. The reseller_* reasons are the only ones the
// recovery pass is allowed to reverse.
const (
	ReasonManual            = "manual"
	ReasonAdmin             = "admin"
	ReasonScheduled         = "scheduled"
	ReasonQuotaExhausted    = "reseller_quota_exhausted"
	ReasonWindowExpired     = "reseller_window_expired"
	ReasonResellerRecovered = "reseller_recovered"
	ReasonConfigExpired     = "config_expired"
)

// EventMeta is the structured portion of an event's meta column.
type EventMeta struct {
	Reason        string `json:"reason,omitempty"`
	RemoteSuccess *bool  `json:"remote_success,omitempty"`
	Attempts      int    `json:"attempts,omitempty"`
	LastError     string `json:"last_error,omitempty"`
	BytesSettled  int64  `json:"bytes_settled,omitempty"`
	FromStatus    string `json:"from_status,omitempty"`
	ToStatus      string `json:"to_status,omitempty"`
}

// ResellerConfigEvent is the append-only audit/domain-event log. Rows are
// created and never mutated, except that the remote outcome of the transition
// that created the row is filled in once the provisioner call returns.
type ResellerConfigEvent struct {
	ID               uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ResellerConfigID uint      `gorm:"column:reseller_config_id;index:idx_config_events_config_created,priority:1" json:"reseller_config_id"`
	Type             string    `gorm:"column:type;size:40;index" json:"type"`
	Meta             string    `gorm:"column:meta;type:text" json:"meta"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime;index:idx_config_events_config_created,priority:2" json:"created_at"`
}

func (ResellerConfigEvent) TableName() string {
	return "reseller_config_events"
}

// DecodedMeta parses the meta column; a malformed column yields the zero meta.
func (e *ResellerConfigEvent) DecodedMeta() EventMeta {
	var meta EventMeta
	if e.Meta != "" {
		_ = json.Unmarshal([]byte(e.Meta), &meta)
	}
	return meta
}

// EncodeEventMeta serializes meta for storage.
func EncodeEventMeta(meta EventMeta) string {
	raw, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
