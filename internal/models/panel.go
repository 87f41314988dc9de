package models

import "time"

// Panel types form a closed set; the factory rejects anything else at
// construction time.
const (
	PanelTypeMarzban    = "marzban"
	PanelTypeMarzneshin = "marzneshin"
	PanelTypeXUI        = "xui"
	PanelTypeEylandoo   = "eylandoo"
)

// Panel holds the credentials for one remote VPN panel.
type Panel struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:name;size:200" json:"name"`
	Type      string    `gorm:"column:type;size:50" json:"type"`
	URL       string    `gorm:"column:url;size:2000" json:"url"`
	Username  string    `gorm:"column:username;size:200" json:"username"`
	Password  string    `gorm:"column:password;size:200" json:"-"`
	APIKey    string    `gorm:"column:api_key;size:500" json:"-"`
	InboundID string    `gorm:"column:inbound_id;size:100" json:"inbound_id"`
	Status    string    `gorm:"column:status;size:50" json:"status"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Panel) TableName() string {
	return "panels"
}
