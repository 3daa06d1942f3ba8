package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisQueue(rdb, "test:exchange"), mr
}

func TestRedisQueueDeliveryLifecycle(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestRedisQueue(t)

	require.NoError(t, q.Enqueue(ctx, Message{JobID: "job-1", Attempt: 1}))
	require.NoError(t, q.Enqueue(ctx, Message{JobID: "job-2", Attempt: 1}))

	d, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "job-1", d.Message.JobID, "oldest first")

	inflight, err := q.InFlight(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, inflight)

	require.NoError(t, q.Ack(ctx, d))
	inflight, _ = q.InFlight(ctx)
	assert.EqualValues(t, 0, inflight)

	ready, _ := q.Len(ctx)
	assert.EqualValues(t, 1, ready)
	assert.True(t, mr.Exists("test:exchange:ready"))
}

func TestRedisQueueQueued(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestRedisQueue(t)
	msg := Message{JobID: "job-1", Attempt: 1}

	queued, err := q.Queued(ctx, msg)
	require.NoError(t, err)
	assert.False(t, queued)

	require.NoError(t, q.Enqueue(ctx, msg))
	queued, err = q.Queued(ctx, msg)
	require.NoError(t, err)
	assert.True(t, queued)

	d, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	queued, err = q.Queued(ctx, msg)
	require.NoError(t, err)
	assert.True(t, queued, "unacknowledged deliveries count as queued")

	require.NoError(t, q.Ack(ctx, d))
	queued, err = q.Queued(ctx, msg)
	require.NoError(t, err)
	assert.False(t, queued)
}

func TestRedisQueueRetryAndPromote(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestRedisQueue(t)

	require.NoError(t, q.Enqueue(ctx, Message{JobID: "job-1", Attempt: 1}))
	d, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)

	require.NoError(t, q.Retry(ctx, d, d.Message.Next(), 5*time.Second))

	inflight, _ := q.InFlight(ctx)
	delayed, _ := q.Delayed(ctx)
	assert.EqualValues(t, 0, inflight)
	assert.EqualValues(t, 1, delayed)

	moved, err := q.PromoteDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, moved)

	moved, err = q.PromoteDue(ctx, time.Now().Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	d, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, Message{JobID: "job-1", Attempt: 2}, d.Message)
}

func TestRedisQueueDropsPoisonMessage(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestRedisQueue(t)

	_, err := mr.Lpush("test:exchange:ready", "not json")
	require.NoError(t, err)

	_, err = q.Dequeue(ctx, time.Second)
	require.Error(t, err)

	inflight, _ := q.InFlight(ctx)
	assert.EqualValues(t, 0, inflight)
}

func TestRedisQueueUnackedStaysInProcessing(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestRedisQueue(t)

	require.NoError(t, q.Enqueue(ctx, Message{JobID: "job-1", Attempt: 1}))
	_, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)

	inflight, _ := q.InFlight(ctx)
	assert.EqualValues(t, 1, inflight)
	ready, _ := q.Len(ctx)
	assert.Zero(t, ready)
}
