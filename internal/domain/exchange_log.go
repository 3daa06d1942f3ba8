package domain

import "time"

// ExchangeLog is an immutable audit entry belonging to one ExchangeJob.
// Rows are only ever inserted; the ID is monotonic so entries written in the
// same instant keep their insertion order.
type ExchangeLog struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ExchangeJobID string    `gorm:"type:text;not null;index:idx_exchange_logs_job_created,priority:1" json:"exchange_job_id"`
	Status        JobStatus `gorm:"type:text;not null" json:"status"`
	Message       string    `gorm:"type:text;not null" json:"message"`
	CreatedAt     time.Time `gorm:"index:idx_exchange_logs_job_created,priority:2" json:"created_at"`
}

// TableName returns the database table name for ExchangeLog.
func (ExchangeLog) TableName() string {
	return "exchange_logs"
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// NormalizePage clamps page and limit to sane values and returns the row offset.
func NormalizePage(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit, (page - 1) * limit
}
