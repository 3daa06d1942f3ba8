package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/catalogx/internal/domain"
	"github.com/timmy/catalogx/internal/logger"
)

const webhookRetryWait = 500 * time.Millisecond

// NotifierConfig holds configuration for the webhook notifier.
type NotifierConfig struct {
	WebhookURL string
	Timeout    time.Duration
	RetryCount int
}

// Notifier posts terminal job outcomes to a webhook. Delivery failures are
// logged and never change job state.
type Notifier struct {
	client *resty.Client
	url    string
}

// NewNotifier returns nil when no webhook is configured.
func NewNotifier(cfg NotifierConfig) *Notifier {
	if cfg.WebhookURL == "" {
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(webhookRetryWait).
		SetHeader("Content-Type", "application/json")

	return &Notifier{client: client, url: cfg.WebhookURL}
}

// JobEvent is the webhook payload.
type JobEvent struct {
	JobID          string              `json:"job_id"`
	CompanyID      string              `json:"company_id"`
	Type           domain.ExchangeType `json:"type"`
	Status         domain.JobStatus    `json:"status"`
	SucceededItems int                 `json:"succeeded_items"`
	FailedItems    int                 `json:"failed_items"`
	LastError      string              `json:"last_error,omitempty"`
}

// Notify implements JobNotifier. A nil Notifier does nothing.
func (n *Notifier) Notify(ctx context.Context, job *domain.ExchangeJob) {
	if n == nil {
		return
	}
	if err := n.send(ctx, job); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Job webhook failed")
	}
}

func (n *Notifier) send(ctx context.Context, job *domain.ExchangeJob) error {
	event := JobEvent{
		JobID:          job.ID,
		CompanyID:      job.CompanyID,
		Type:           job.Type,
		Status:         job.Status,
		SucceededItems: job.SucceededItems,
		FailedItems:    job.FailedItems,
		LastError:      job.LastError,
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(event).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook error: status %d", resp.StatusCode())
	}
	return nil
}
