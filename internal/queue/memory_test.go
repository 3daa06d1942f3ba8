package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueAckRemovesDelivery(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	require.NoError(t, q.Enqueue(ctx, Message{JobID: "job-1", Attempt: 1}))
	n, _ := q.Len(ctx)
	assert.EqualValues(t, 1, n)

	d, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, Message{JobID: "job-1", Attempt: 1}, d.Message)
	assert.Equal(t, 1, q.InFlight())

	require.NoError(t, q.Ack(ctx, d))
	assert.Equal(t, 0, q.InFlight())

	_, err = q.Dequeue(ctx, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestMemoryQueueQueued(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	msg := Message{JobID: "job-1", Attempt: 1}

	queued, err := q.Queued(ctx, msg)
	require.NoError(t, err)
	assert.False(t, queued)

	require.NoError(t, q.Enqueue(ctx, msg))
	queued, _ = q.Queued(ctx, msg)
	assert.True(t, queued, "ready")

	d, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	queued, _ = q.Queued(ctx, msg)
	assert.True(t, queued, "in flight")

	queued, _ = q.Queued(ctx, msg.Next())
	assert.False(t, queued, "other attempt")

	require.NoError(t, q.Ack(ctx, d))
	queued, _ = q.Queued(ctx, msg)
	assert.False(t, queued)
}

func TestMemoryQueueFIFO(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, Message{JobID: id, Attempt: 1}))
	}
	for _, want := range []string{"a", "b", "c"} {
		d, err := q.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, d.Message.JobID)
	}
}

func TestMemoryQueueRetryWaitsForPromotion(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	require.NoError(t, q.Enqueue(ctx, Message{JobID: "job-1", Attempt: 1}))

	d, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NoError(t, q.Retry(ctx, d, d.Message.Next(), 5*time.Second))

	assert.Equal(t, 0, q.InFlight())
	assert.Equal(t, 1, q.Delayed())

	moved, err := q.PromoteDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, moved, "not due yet")

	moved, err = q.PromoteDue(ctx, time.Now().Add(6*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	d, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, Message{JobID: "job-1", Attempt: 2}, d.Message)
}

func TestMemoryQueueDequeueWakesOnEnqueue(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = q.Enqueue(ctx, Message{JobID: "late", Attempt: 1})
	}()

	start := time.Now()
	d, err := q.Dequeue(ctx, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "late", d.Message.JobID)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestMemoryQueueClosed(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Enqueue(ctx, Message{JobID: "x", Attempt: 1}), ErrClosed)
	_, err := q.Dequeue(ctx, time.Second)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryQueueRejectsEmptyJobID(t *testing.T) {
	assert.Error(t, NewMemoryQueue().Enqueue(context.Background(), Message{}))
}

func TestRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, 5*time.Second, p.Delay(1))
	assert.Equal(t, 10*time.Second, p.Delay(2))
	assert.Equal(t, 20*time.Second, p.Delay(3))

	assert.False(t, p.Exhausted(1))
	assert.False(t, p.Exhausted(2))
	assert.True(t, p.Exhausted(3))
}
