package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instantRetryQueue records the requested retry delays and makes the retried
// message ready immediately.
type instantRetryQueue struct {
	*MemoryQueue
	mu     sync.Mutex
	delays []time.Duration
}

func (q *instantRetryQueue) Retry(ctx context.Context, d *Delivery, next Message, delay time.Duration) error {
	q.mu.Lock()
	q.delays = append(q.delays, delay)
	q.mu.Unlock()
	if err := q.MemoryQueue.Retry(ctx, d, next, 0); err != nil {
		return err
	}
	_, err := q.MemoryQueue.PromoteDue(ctx, time.Now().Add(time.Millisecond))
	return err
}

func (q *instantRetryQueue) recorded() []time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]time.Duration(nil), q.delays...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPoolRetriesUntilExhausted(t *testing.T) {
	q := &instantRetryQueue{MemoryQueue: NewMemoryQueue()}

	var attempts []int
	var mu sync.Mutex
	handler := func(ctx context.Context, msg Message) error {
		mu.Lock()
		attempts = append(attempts, msg.Attempt)
		mu.Unlock()
		return errors.New("always fails")
	}

	var exhausted atomic.Value
	pool := NewPool(q, handler, PoolConfig{
		Concurrency: 2,
		Policy:      DefaultRetryPolicy(),
		OnExhausted: func(ctx context.Context, msg Message, err error) {
			exhausted.Store(msg)
		},
	}, nil)

	ctx := context.Background()
	require.NoError(t, pool.Start(ctx))
	defer pool.Stop()

	require.NoError(t, q.Enqueue(ctx, Message{JobID: "job-1", Attempt: 1}))
	waitFor(t, func() bool { return exhausted.Load() != nil })

	mu.Lock()
	assert.Equal(t, []int{1, 2, 3}, attempts)
	mu.Unlock()
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, q.recorded())
	assert.Equal(t, Message{JobID: "job-1", Attempt: 3}, exhausted.Load().(Message))

	waitFor(t, func() bool { return q.InFlight() == 0 })
	assert.Zero(t, q.Delayed())
	assert.EqualValues(t, 1, pool.Stats().Exhausted)
	assert.EqualValues(t, 2, pool.Stats().Retried)
}

func TestPoolRecoversFromPanic(t *testing.T) {
	q := &instantRetryQueue{MemoryQueue: NewMemoryQueue()}

	var calls atomic.Int32
	handler := func(ctx context.Context, msg Message) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return nil
	}
	pool := NewPool(q, handler, PoolConfig{Concurrency: 1}, nil)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	require.NoError(t, q.Enqueue(context.Background(), Message{JobID: "job-1", Attempt: 1}))
	waitFor(t, func() bool { return pool.Stats().Succeeded == 1 })

	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, []time.Duration{5 * time.Second}, q.recorded())
}

func TestPoolBoundsConcurrency(t *testing.T) {
	q := NewMemoryQueue()
	const concurrency = 3

	var current, peak atomic.Int32
	release := make(chan struct{})
	handler := func(ctx context.Context, msg Message) error {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		current.Add(-1)
		return nil
	}

	pool := NewPool(q, handler, PoolConfig{Concurrency: concurrency}, nil)
	ctx := context.Background()
	require.NoError(t, pool.Start(ctx))

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(ctx, Message{JobID: string(rune('a' + i)), Attempt: 1}))
	}
	waitFor(t, func() bool { return current.Load() == concurrency })
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, concurrency, peak.Load())

	close(release)
	waitFor(t, func() bool { return pool.Stats().Succeeded == 10 })
	pool.Stop()
	assert.EqualValues(t, concurrency, peak.Load())
}

func TestPoolStartTwice(t *testing.T) {
	pool := NewPool(NewMemoryQueue(), func(context.Context, Message) error { return nil }, PoolConfig{}, nil)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()
	assert.Error(t, pool.Start(context.Background()))
}
