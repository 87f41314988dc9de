package models

import "time"

// AuditLog records one reconciliation job run: which job, a correlation id,
// and a JSON summary of counters (processed/failed/etc).
type AuditLog struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RunID     string    `gorm:"column:run_id;size:64;index" json:"run_id"`
	Job       string    `gorm:"column:job;size:60;index" json:"job"`
	Summary   string    `gorm:"column:summary;type:text" json:"summary"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// WalletTransaction records a wallet credit/debit with its reason. Written
// under the same row lock as the balance change.
type WalletTransaction struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ResellerID uint      `gorm:"column:reseller_id;index" json:"reseller_id"`
	Amount     int64     `gorm:"column:amount" json:"amount"`
	Reason     string    `gorm:"column:reason;size:200" json:"reason"`
	BalanceAt  int64     `gorm:"column:balance_at" json:"balance_at"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
