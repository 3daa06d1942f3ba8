package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/catalogx/internal/domain"
	"github.com/timmy/catalogx/internal/queue"
	"github.com/timmy/catalogx/internal/service"
)

func newReaper(h *harness, pendingAfter time.Duration) *service.Reaper {
	return service.NewReaper(h.jobs, h.queue, h.audit, service.ReaperConfig{
		Interval:     time.Hour,
		PendingAfter: pendingAfter,
		BatchLimit:   10,
		Policy:       queue.DefaultRetryPolicy(),
	})
}

func TestReaperRequeuesStalePendingJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job, _ := h.submit(domain.ExchangeTypeCatalog, "import.xml", readFixture(t, "catalog.xml"))

	r := newReaper(h, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	stats, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RequeuedPending)

	d, err := h.queue.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, queue.Message{JobID: job.ID, Attempt: 1}, d.Message)
	require.NoError(t, h.queue.Ack(ctx, d))

	require.NoError(t, h.proc.Handle(ctx, d.Message))
	assert.Equal(t, domain.JobStatusSucceeded, h.job(job.ID).Status)
}

func TestReaperSkipsPendingJobStillQueued(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job, msg := h.submit(domain.ExchangeTypeCatalog, "import.xml", readFixture(t, "catalog.xml"))
	// Put the reference back, as if the job were waiting behind a backlog.
	require.NoError(t, h.queue.Enqueue(ctx, msg))

	r := newReaper(h, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	stats, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.RequeuedPending)
	assert.Equal(t, 1, stats.StillQueued)

	n, err := h.queue.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "no duplicate reference")
	assert.Equal(t, domain.JobStatusPending, h.job(job.ID).Status)
}

func TestReaperRequeuesExpiredLease(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job, _ := h.submit(domain.ExchangeTypeCatalog, "import.xml", readFixture(t, "catalog.xml"))

	ok, err := h.jobs.Claim(ctx, job.ID, "dead-worker", 1, time.Now().UTC().Add(-time.Hour), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	stats, err := newReaper(h, 2*time.Minute).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RequeuedRunning)

	d, err := h.queue.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, queue.Message{JobID: job.ID, Attempt: 2}, d.Message)

	require.NoError(t, h.proc.Handle(ctx, d.Message))
	got := h.job(job.ID)
	assert.Equal(t, domain.JobStatusSucceeded, got.Status)

	msgs := h.messages(job.ID)
	assert.Equal(t, "running: worker lease expired during attempt 1, requeued", msgs[0])
}

func TestReaperLeavesLiveLeasesAlone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job, _ := h.submit(domain.ExchangeTypeCatalog, "import.xml", readFixture(t, "catalog.xml"))

	ok, err := h.jobs.Claim(ctx, job.ID, "busy-worker", 1, time.Now().UTC(), time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	stats, err := newReaper(h, 2*time.Minute).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.ReapStats{}, stats)
}

func TestReaperFailsJobWhoseLastAttemptDied(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job, _ := h.submit(domain.ExchangeTypeCatalog, "import.xml", readFixture(t, "catalog.xml"))

	ok, err := h.jobs.Claim(ctx, job.ID, "dead-worker", 3, time.Now().UTC().Add(-time.Hour), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	stats, err := newReaper(h, 2*time.Minute).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, domain.JobStatusFailed, h.job(job.ID).Status)

	n, _ := h.queue.Len(ctx)
	assert.Zero(t, n)
}

func TestReaperPromotesDueRetries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.queue.Enqueue(ctx, queue.Message{JobID: "j", Attempt: 1}))
	d, err := h.queue.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NoError(t, h.queue.Retry(ctx, d, d.Message.Next(), 0))

	stats, err := newReaper(h, time.Hour).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Promoted)
}

func TestReaperStartStop(t *testing.T) {
	h := newHarness(t)
	r := newReaper(h, time.Minute)
	r.Start(context.Background())
	r.Stop()
	r.Stop()
}
