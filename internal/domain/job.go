package domain

import "time"

// ExchangeType is the declared kind of an uploaded exchange document.
type ExchangeType string

const (
	ExchangeTypeCatalog      ExchangeType = "catalog"
	ExchangeTypePrice        ExchangeType = "price"
	ExchangeTypeStockBalance ExchangeType = "stock-balance"
)

// IsValid reports whether t is one of the supported exchange types.
func (t ExchangeType) IsValid() bool {
	switch t {
	case ExchangeTypeCatalog, ExchangeTypePrice, ExchangeTypeStockBalance:
		return true
	}
	return false
}

// JobStatus represents the lifecycle state of an exchange job.
// Values include JobStatusPending, JobStatusRunning, JobStatusSucceeded, and JobStatusFailed.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal returns true for succeeded and failed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
// A redelivered job moves running -> running; nothing ever returns to pending.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusRunning || next == JobStatusFailed
	case JobStatusRunning:
		return next == JobStatusRunning || next == JobStatusSucceeded || next == JobStatusFailed
	}
	return false
}

// ExchangeJob is the durable record of one import attempt and its lifecycle state.
// It is created by the gateway and only mutated by the worker that holds its lease.
type ExchangeJob struct {
	ID             string       `gorm:"type:text;primaryKey" json:"id"`
	CompanyID      string       `gorm:"type:text;not null;index:idx_exchange_jobs_company_created,priority:1" json:"company_id"`
	Type           ExchangeType `gorm:"type:text;not null" json:"type"`
	SourceName     string       `gorm:"type:text;not null" json:"source_name"`
	SourcePath     string       `gorm:"type:text;not null" json:"source_path"`
	Status         JobStatus    `gorm:"type:text;not null;default:pending;index:idx_exchange_jobs_status" json:"status"`
	Attempts       int          `gorm:"not null;default:0" json:"attempts"`
	LeaseOwner     string       `gorm:"type:text" json:"-"`
	LeaseExpiresAt *time.Time   `json:"-"`
	TotalItems     int          `gorm:"not null;default:0" json:"total_items"`
	SucceededItems int          `gorm:"not null;default:0" json:"succeeded_items"`
	FailedItems    int          `gorm:"not null;default:0" json:"failed_items"`
	LastError      string       `gorm:"type:text" json:"last_error,omitempty"`
	StartedAt      *time.Time   `json:"started_at,omitempty"`
	FinishedAt     *time.Time   `json:"finished_at,omitempty"`
	CreatedAt      time.Time    `gorm:"index:idx_exchange_jobs_company_created,priority:2" json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// TableName returns the database table name for ExchangeJob.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (ExchangeJob) TableName() string {
	return "exchange_jobs"
}

// JobCounters carries per-item tallies written back to the job row.
type JobCounters struct {
	Total     int
	Succeeded int
	Failed    int
}
