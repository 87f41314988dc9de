package repository

import (
	"encoding/json"

	"gorm.io/gorm"

	"github.com/xshayank/vpnmarket-reseller/internal/models"
)

// AuditRepository records reconciliation job runs.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record writes one job-run summary. The summary is marshaled to JSON; a
// marshal failure is swallowed into an empty object rather than losing the
// run record.
func (r *AuditRepository) Record(runID, job string, summary interface{}) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		raw = []byte("{}")
	}
	return r.db.Create(&models.AuditLog{
		RunID:   runID,
		Job:     job,
		Summary: string(raw),
	}).Error
}

// Recent returns the latest run records for a job.
func (r *AuditRepository) Recent(job string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 20
	}
	var logs []models.AuditLog
	err := r.db.Where("job = ?", job).
		Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
