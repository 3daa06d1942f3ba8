package service

import (
	"context"
	"sync"
	"time"

	"github.com/timmy/catalogx/internal/domain"
	"github.com/timmy/catalogx/internal/logger"
	"github.com/timmy/catalogx/internal/queue"
	"github.com/timmy/catalogx/internal/repository"
)

// ReaperConfig holds configuration for the reaper.
type ReaperConfig struct {
	Interval     time.Duration
	PendingAfter time.Duration
	BatchLimit   int
	Policy       queue.RetryPolicy
}

// ReapStats counts what one pass did.
type ReapStats struct {
	Promoted        int
	RequeuedRunning int
	RequeuedPending int
	StillQueued     int
	Failed          int
}

// Reaper recovers jobs the normal flow lost track of: delayed retries that
// are due, running jobs whose worker vanished, and pending jobs whose
// enqueue never happened.
type Reaper struct {
	jobs  *repository.JobRepository
	queue queue.Queue
	audit *AuditLog
	cfg   ReaperConfig
	now   func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewReaper(jobs *repository.JobRepository, q queue.Queue, audit *AuditLog, cfg ReaperConfig) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.PendingAfter <= 0 {
		cfg.PendingAfter = 2 * time.Minute
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 100
	}
	if cfg.Policy.MaxAttempts <= 0 {
		cfg.Policy = queue.DefaultRetryPolicy()
	}
	return &Reaper{
		jobs:  jobs,
		queue: q,
		audit: audit,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce performs a single pass.
func (r *Reaper) RunOnce(ctx context.Context) (ReapStats, error) {
	var stats ReapStats
	now := r.now()

	promoted, err := r.queue.PromoteDue(ctx, now)
	if err != nil {
		return stats, err
	}
	stats.Promoted = promoted

	cutoff := now.Add(-r.cfg.PendingAfter)

	running, err := r.jobs.ListStaleRunning(ctx, cutoff, r.cfg.BatchLimit)
	if err != nil {
		return stats, err
	}
	for i := range running {
		job := &running[i]
		jctx := logger.SetJob(ctx, job.ID, job.CompanyID, string(job.Type))

		if r.cfg.Policy.Exhausted(job.Attempts) {
			counters := domain.JobCounters{Total: job.TotalItems, Succeeded: job.SucceededItems, Failed: job.FailedItems}
			done, err := r.jobs.Finish(jctx, job.ID, domain.JobStatusFailed, counters, "lease expired on the final attempt")
			if err != nil {
				return stats, err
			}
			if done {
				stats.Failed++
				r.appendAudit(jctx, job.ID, domain.JobStatusFailed, "failed: worker lease expired after %d attempts", job.Attempts)
			}
			continue
		}

		if err := r.requeue(jctx, job, job.Attempts+1, now); err != nil {
			return stats, err
		}
		stats.RequeuedRunning++
		r.appendAudit(jctx, job.ID, domain.JobStatusRunning, "worker lease expired during attempt %d, requeued", job.Attempts)
	}

	pending, err := r.jobs.ListStalePending(ctx, cutoff, r.cfg.BatchLimit)
	if err != nil {
		return stats, err
	}
	for i := range pending {
		job := &pending[i]
		jctx := logger.SetJob(ctx, job.ID, job.CompanyID, string(job.Type))

		// A job waiting behind a backlog still has its reference queued.
		queued, err := r.queue.Queued(jctx, queue.Message{JobID: job.ID, Attempt: 1})
		if err != nil {
			return stats, domain.NewTransientError(err, "failed to inspect queue for job %s", job.ID)
		}
		if queued {
			if err := r.jobs.MarkRequeued(jctx, job, now); err != nil {
				return stats, err
			}
			stats.StillQueued++
			continue
		}

		if err := r.requeue(jctx, job, 1, now); err != nil {
			return stats, err
		}
		stats.RequeuedPending++
		r.appendAudit(jctx, job.ID, domain.JobStatusPending, "not picked up within %s, re-enqueued", r.cfg.PendingAfter)
	}

	if stats != (ReapStats{}) {
		logger.FromContext(ctx).WithFields(logger.Fields{
			"promoted":         stats.Promoted,
			"requeued_running": stats.RequeuedRunning,
			"requeued_pending": stats.RequeuedPending,
			"still_queued":     stats.StillQueued,
			"failed":           stats.Failed,
		}).Info("Reaper pass finished")
	}
	return stats, nil
}

func (r *Reaper) requeue(ctx context.Context, job *domain.ExchangeJob, attempt int, now time.Time) error {
	if err := r.queue.Enqueue(ctx, queue.Message{JobID: job.ID, Attempt: attempt}); err != nil {
		return domain.NewTransientError(err, "failed to requeue job %s", job.ID)
	}
	return r.jobs.MarkRequeued(ctx, job, now)
}

func (r *Reaper) appendAudit(ctx context.Context, jobID string, status domain.JobStatus, format string, args ...interface{}) {
	if err := r.audit.Appendf(ctx, jobID, status, format, args...); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to write audit entry")
	}
}

// Start runs RunOnce every Interval until Stop or ctx cancellation.
func (r *Reaper) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	ctx = logger.SetComponent(ctx, "reaper")

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
					logger.FromContext(ctx).WithError(err).Warn("Reaper pass failed")
				}
			}
		}
	}(r.done)
}

// Stop ends the loop started by Start and waits for it.
func (r *Reaper) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
