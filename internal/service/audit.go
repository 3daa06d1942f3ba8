package service

import (
	"context"
	"fmt"

	"github.com/timmy/catalogx/internal/domain"
	"github.com/timmy/catalogx/internal/logger"
	"github.com/timmy/catalogx/internal/repository"
)

// AuditLog is the append-only trail of a job. It exposes no update or delete.
type AuditLog struct {
	repo *repository.ExchangeLogRepository
}

func NewAuditLog(repo *repository.ExchangeLogRepository) *AuditLog {
	return &AuditLog{repo: repo}
}

// Append writes one entry for jobID.
func (a *AuditLog) Append(ctx context.Context, jobID string, status domain.JobStatus, message string) error {
	entry := &domain.ExchangeLog{ExchangeJobID: jobID, Status: status, Message: message}
	if err := a.repo.Append(ctx, entry); err != nil {
		return err
	}
	logger.FromContext(ctx).WithField(logger.FieldStatus, status).Debugf("Audit: %s", message)
	return nil
}

// Appendf is Append with a formatted message.
func (a *AuditLog) Appendf(ctx context.Context, jobID string, status domain.JobStatus, format string, args ...interface{}) error {
	return a.Append(ctx, jobID, status, fmt.Sprintf(format, args...))
}

// List returns one page of a job's entries, oldest first.
func (a *AuditLog) List(ctx context.Context, jobID string, page, limit int) (*domain.Page[domain.ExchangeLog], error) {
	page, limit, offset := domain.NormalizePage(page, limit)
	entries, total, err := a.repo.ListByJob(ctx, jobID, offset, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.ExchangeLog{}
	}
	return &domain.Page[domain.ExchangeLog]{Items: entries, Total: total, Page: page, Limit: limit}, nil
}
