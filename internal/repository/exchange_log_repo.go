package repository

import (
	"context"

	"github.com/timmy/catalogx/internal/domain"
	"gorm.io/gorm"
)

// ExchangeLogRepository is append-only: it exposes no update or delete.
type ExchangeLogRepository struct {
	db *gorm.DB
}

func NewExchangeLogRepository(db *gorm.DB) *ExchangeLogRepository {
	return &ExchangeLogRepository{db: db}
}

// Append inserts one log entry.
func (r *ExchangeLogRepository) Append(ctx context.Context, entry *domain.ExchangeLog) error {
	return translate(r.db.WithContext(ctx).Create(entry).Error, "exchange log of job", entry.ExchangeJobID)
}

// ListByJob returns a page of a job's entries, oldest first.
func (r *ExchangeLogRepository) ListByJob(ctx context.Context, jobID string, offset, limit int) ([]domain.ExchangeLog, int64, error) {
	var total int64
	q := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&domain.ExchangeLog{}).Where("exchange_job_id = ?", jobID)
	}
	if err := q().Count(&total).Error; err != nil {
		return nil, 0, translate(err, "exchange log of job", jobID)
	}

	var entries []domain.ExchangeLog
	if err := q().Order("created_at ASC").Order("id ASC").Offset(offset).Limit(limit).Find(&entries).Error; err != nil {
		return nil, 0, translate(err, "exchange log of job", jobID)
	}
	return entries, total, nil
}
