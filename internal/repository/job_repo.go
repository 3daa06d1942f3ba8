package repository

import (
	"context"
	"time"

	"github.com/timmy/catalogx/internal/domain"
	"gorm.io/gorm"
)

// JobRepository persists exchange jobs and arbitrates worker ownership
// through conditional updates on the lease columns.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job record.
func (r *JobRepository) Create(ctx context.Context, job *domain.ExchangeJob) error {
	return translate(r.db.WithContext(ctx).Create(job).Error, "exchange job", job.ID)
}

// GetByID retrieves a job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.ExchangeJob: job record if found.
//   - error: domain NotFound if no such job exists.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.ExchangeJob, error) {
	var job domain.ExchangeJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, translate(err, "exchange job", id)
	}
	return &job, nil
}

// GetForCompany retrieves a job only if it belongs to companyID.
func (r *JobRepository) GetForCompany(ctx context.Context, companyID, id string) (*domain.ExchangeJob, error) {
	var job domain.ExchangeJob
	if err := r.db.WithContext(ctx).First(&job, "id = ? AND company_id = ?", id, companyID).Error; err != nil {
		return nil, translate(err, "exchange job", id)
	}
	return &job, nil
}

// ListByCompany retrieves a company's jobs, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - companyID: owning company.
//   - offset: rows to skip.
//   - limit: maximum rows to return.
// Returns:
//   - []domain.ExchangeJob: the page.
//   - int64: total number of jobs of the company.
//   - error: non-nil if the query fails.
func (r *JobRepository) ListByCompany(ctx context.Context, companyID string, offset, limit int) ([]domain.ExchangeJob, int64, error) {
	var total int64
	q := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&domain.ExchangeJob{}).Where("company_id = ?", companyID)
	}
	if err := q().Count(&total).Error; err != nil {
		return nil, 0, translate(err, "exchange jobs of company", companyID)
	}

	var jobs []domain.ExchangeJob
	if err := q().Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&jobs).Error; err != nil {
		return nil, 0, translate(err, "exchange jobs of company", companyID)
	}
	return jobs, total, nil
}

// Claim takes ownership of a job for one delivery. It succeeds for a pending
// job or for a running job whose lease has lapsed, and moves the job to
// running. It returns false if another worker holds a live lease or the job
// is already terminal.
func (r *JobRepository) Claim(ctx context.Context, id, owner string, attempt int, now time.Time, lease time.Duration) (bool, error) {
	expires := now.Add(lease)
	res := r.db.WithContext(ctx).Model(&domain.ExchangeJob{}).
		Where("id = ?", id).
		Where("status = ? OR (status = ? AND (lease_expires_at IS NULL OR lease_expires_at <= ?))",
			domain.JobStatusPending, domain.JobStatusRunning, now).
		Updates(map[string]interface{}{
			"status":           domain.JobStatusRunning,
			"lease_owner":      owner,
			"lease_expires_at": expires,
			"attempts":         attempt,
			"started_at":       gorm.Expr("COALESCE(started_at, ?)", now),
			"updated_at":       now,
		})
	if res.Error != nil {
		return false, translate(res.Error, "exchange job", id)
	}
	return res.RowsAffected == 1, nil
}

// ExtendLease pushes the lease deadline forward while owner still holds it.
// It returns false when the lease was lost.
func (r *JobRepository) ExtendLease(ctx context.Context, id, owner string, until time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.ExchangeJob{}).
		Where("id = ? AND status = ? AND lease_owner = ?", id, domain.JobStatusRunning, owner).
		Updates(map[string]interface{}{"lease_expires_at": until, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, translate(res.Error, "exchange job", id)
	}
	return res.RowsAffected == 1, nil
}

// ReleaseLease lets the job be claimed again from claimableAt on. The job
// stays running; a redelivery re-enters running rather than pending.
func (r *JobRepository) ReleaseLease(ctx context.Context, id, owner string, claimableAt time.Time, lastError string) error {
	err := r.db.WithContext(ctx).Model(&domain.ExchangeJob{}).
		Where("id = ? AND status = ? AND lease_owner = ?", id, domain.JobStatusRunning, owner).
		Updates(map[string]interface{}{
			"lease_expires_at": claimableAt,
			"last_error":       lastError,
			"updated_at":       time.Now().UTC(),
		}).Error
	return translate(err, "exchange job", id)
}

// UpdateCounters records item tallies while the job runs.
func (r *JobRepository) UpdateCounters(ctx context.Context, id string, c domain.JobCounters) error {
	err := r.db.WithContext(ctx).Model(&domain.ExchangeJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_items":     c.Total,
			"succeeded_items": c.Succeeded,
			"failed_items":    c.Failed,
			"updated_at":      time.Now().UTC(),
		}).Error
	return translate(err, "exchange job", id)
}

// Finish moves a non-terminal job to a terminal status. It returns false if
// the job was already terminal, so terminal states never change.
func (r *JobRepository) Finish(ctx context.Context, id string, status domain.JobStatus, c domain.JobCounters, lastError string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.ExchangeJob{}).
		Where("id = ? AND status IN ?", id, []domain.JobStatus{domain.JobStatusPending, domain.JobStatusRunning}).
		Updates(map[string]interface{}{
			"status":           status,
			"total_items":      c.Total,
			"succeeded_items":  c.Succeeded,
			"failed_items":     c.Failed,
			"last_error":       lastError,
			"lease_owner":      "",
			"lease_expires_at": nil,
			"finished_at":      now,
			"updated_at":       now,
		})
	if res.Error != nil {
		return false, translate(res.Error, "exchange job", id)
	}
	return res.RowsAffected == 1, nil
}

// ListStaleRunning returns running jobs whose lease lapsed before cutoff.
func (r *JobRepository) ListStaleRunning(ctx context.Context, cutoff time.Time, limit int) ([]domain.ExchangeJob, error) {
	var jobs []domain.ExchangeJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at < ?", domain.JobStatusRunning, cutoff).
		Order("lease_expires_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, translate(err, "stale jobs", "running")
}

// ListStalePending returns pending jobs not touched since cutoff.
func (r *JobRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]domain.ExchangeJob, error) {
	var jobs []domain.ExchangeJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", domain.JobStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, translate(err, "stale jobs", "pending")
}

// MarkRequeued records that the reaper re-enqueued a job. For a running job
// the lease is set to now so the next delivery can claim it immediately.
func (r *JobRepository) MarkRequeued(ctx context.Context, job *domain.ExchangeJob, now time.Time) error {
	updates := map[string]interface{}{"updated_at": now}
	if job.Status == domain.JobStatusRunning {
		updates["lease_expires_at"] = now
	}
	err := r.db.WithContext(ctx).Model(&domain.ExchangeJob{}).
		Where("id = ? AND status = ?", job.ID, job.Status).
		Updates(updates).Error
	return translate(err, "exchange job", job.ID)
}
