package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

type delayedMessage struct {
	due time.Time
	raw string
}

// MemoryQueue is an in-process Queue. Delayed messages only become ready when
// PromoteDue runs, exactly like RedisQueue.
type MemoryQueue struct {
	mu       sync.Mutex
	backlog  []string
	delayed  []delayedMessage
	inflight map[*Delivery]struct{}
	notify   chan struct{}
	closed   bool
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		inflight: make(map[*Delivery]struct{}),
		notify:   make(chan struct{}, 1),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msg Message) error {
	raw, err := encode(msg)
	if err != nil {
		return err
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.backlog = append(q.backlog, raw)
	q.mu.Unlock()
	q.wake()
	return nil
}

func (q *MemoryQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, wait time.Duration) (*Delivery, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		d, err := q.pop()
		if d != nil || err != nil {
			return d, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, ErrNoMessage
		case <-q.notify:
		}
	}
}

func (q *MemoryQueue) pop() (*Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrClosed
	}
	if len(q.backlog) == 0 {
		return nil, nil
	}
	raw := q.backlog[0]
	q.backlog = q.backlog[1:]
	if len(q.backlog) > 0 {
		// Let another waiting consumer pick up the rest.
		q.wake()
	}
	msg, err := decode(raw)
	if err != nil {
		return nil, err
	}
	d := &Delivery{Message: msg, raw: raw}
	q.inflight[d] = struct{}{}
	return d, nil
}

func (q *MemoryQueue) Ack(ctx context.Context, d *Delivery) error {
	q.mu.Lock()
	delete(q.inflight, d)
	q.mu.Unlock()
	return nil
}

func (q *MemoryQueue) Retry(ctx context.Context, d *Delivery, next Message, delay time.Duration) error {
	raw, err := encode(next)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, d)
	q.delayed = append(q.delayed, delayedMessage{due: time.Now().Add(delay), raw: raw})
	sort.SliceStable(q.delayed, func(i, j int) bool { return q.delayed[i].due.Before(q.delayed[j].due) })
	return nil
}

func (q *MemoryQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	q.mu.Lock()
	n := 0
	for n < len(q.delayed) && !q.delayed[n].due.After(now) {
		q.backlog = append(q.backlog, q.delayed[n].raw)
		n++
	}
	q.delayed = q.delayed[n:]
	q.mu.Unlock()
	if n > 0 {
		q.wake()
	}
	return n, nil
}

func (q *MemoryQueue) Queued(ctx context.Context, msg Message) (bool, error) {
	raw, err := encode(msg)
	if err != nil {
		return false, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, r := range q.backlog {
		if r == raw {
			return true, nil
		}
	}
	for d := range q.inflight {
		if d.raw == raw {
			return true, nil
		}
	}
	return false, nil
}

func (q *MemoryQueue) Len(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.backlog)), nil
}

// Delayed reports the number of scheduled retries.
func (q *MemoryQueue) Delayed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.delayed)
}

// InFlight reports the number of unacknowledged deliveries.
func (q *MemoryQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
	return nil
}
