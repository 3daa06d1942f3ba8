package service

import (
	"context"

	"github.com/timmy/catalogx/internal/domain"
	"github.com/timmy/catalogx/internal/repository"
)

// JobQuery is the read side of exchange jobs, always scoped to one company.
type JobQuery struct {
	jobs  *repository.JobRepository
	audit *AuditLog
}

// NewJobQuery creates a job query service.
func NewJobQuery(jobs *repository.JobRepository, audit *AuditLog) *JobQuery {
	return &JobQuery{jobs: jobs, audit: audit}
}

// List returns one page of the company's jobs, newest first.
func (q *JobQuery) List(ctx context.Context, companyID string, page, limit int) (*domain.Page[domain.ExchangeJob], error) {
	page, limit, offset := domain.NormalizePage(page, limit)
	jobs, total, err := q.jobs.ListByCompany(ctx, companyID, offset, limit)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []domain.ExchangeJob{}
	}
	return &domain.Page[domain.ExchangeJob]{Items: jobs, Total: total, Page: page, Limit: limit}, nil
}

// Get returns a job of the company. Jobs of other companies are NotFound.
func (q *JobQuery) Get(ctx context.Context, companyID, jobID string) (*domain.ExchangeJob, error) {
	return q.jobs.GetForCompany(ctx, companyID, jobID)
}

// Logs returns one page of a job's audit trail, oldest first.
func (q *JobQuery) Logs(ctx context.Context, companyID, jobID string, page, limit int) (*domain.Page[domain.ExchangeLog], error) {
	if _, err := q.jobs.GetForCompany(ctx, companyID, jobID); err != nil {
		return nil, err
	}
	return q.audit.List(ctx, jobID, page, limit)
}
