package models

import "time"

// Reseller billing types.
const (
	ResellerTypePlan    = "plan"
	ResellerTypeTraffic = "traffic"
)

// Reseller statuses.
const (
	ResellerStatusActive    = "active"
	ResellerStatusSuspended = "suspended"
)

// Reseller is the billing/quota root. A traffic-type reseller is metered
// against TrafficTotalBytes inside the [WindowStartsAt, WindowEndsAt] window;
// a nil TrafficTotalBytes means unlimited traffic.
type Reseller struct {
	ID                uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Type              string     `gorm:"column:type;size:20;index" json:"type"`
	Status            string     `gorm:"column:status;size:20;index:idx_resellers_status_window,priority:1" json:"status"`
	UsernamePrefix    string     `gorm:"column:username_prefix;size:100" json:"username_prefix"`
	TrafficTotalBytes *int64     `gorm:"column:traffic_total_bytes" json:"traffic_total_bytes"`
	TrafficUsedBytes  int64      `gorm:"column:traffic_used_bytes;default:0" json:"traffic_used_bytes"`
	ForgivenBytes     int64      `gorm:"column:forgiven_bytes;default:0" json:"forgiven_bytes"`
	WindowStartsAt    *time.Time `gorm:"column:window_starts_at" json:"window_starts_at"`
	WindowEndsAt      *time.Time `gorm:"column:window_ends_at;index:idx_resellers_status_window,priority:2" json:"window_ends_at"`
	WalletBalance     int64      `gorm:"column:wallet_balance;default:0" json:"wallet_balance"`
	SuspendedAt       *time.Time `gorm:"column:suspended_at" json:"suspended_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Reseller) TableName() string {
	return "resellers"
}

// Unlimited reports whether the reseller has no traffic cap.
func (r *Reseller) Unlimited() bool {
	return r.TrafficTotalBytes == nil
}
