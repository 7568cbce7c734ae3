package audit

import (
	"context"

	"github.com/khanghh/kattest/model"
	"gorm.io/gorm"
)

// AuditLogRepository is append-only: rows are created and listed, never updated.
type AuditLogRepository interface {
	Create(ctx context.Context, record *model.AuditLog) error
	Find(ctx context.Context, filter ListFilter) ([]model.AuditLog, error)
}

type auditLogRepository struct {
	db *gorm.DB
}

func (r *auditLogRepository) Create(ctx context.Context, record *model.AuditLog) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *auditLogRepository) Find(ctx context.Context, filter ListFilter) ([]model.AuditLog, error) {
	tx := r.db.WithContext(ctx).Model(&model.AuditLog{})
	if filter.Action != "" {
		tx = tx.Where("action = ?", filter.Action)
	}
	if filter.ActorID != 0 {
		tx = tx.Where("actor_id = ?", filter.ActorID)
	}
	var records []model.AuditLog
	err := tx.Order("id DESC").Limit(filter.Limit).Find(&records).Error
	return records, err
}

func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{
		db: db,
	}
}
