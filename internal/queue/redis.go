package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const promoteBatch = 100

// RedisQueue is a reliable queue on three keys: a ready list consumed with
// BLMOVE into a processing list, and a delayed sorted set scored by due time
// in unix milliseconds.
type RedisQueue struct {
	rdb        *redis.Client
	ready      string
	processing string
	delayed    string
}

// NewRedisQueue uses keys prefixed with name.
func NewRedisQueue(rdb *redis.Client, name string) *RedisQueue {
	return &RedisQueue{
		rdb:        rdb,
		ready:      name + ":ready",
		processing: name + ":processing",
		delayed:    name + ":delayed",
	}
}

// NewRedisClient connects and pings, the way every consumer of the queue needs it.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, msg Message) error {
	raw, err := encode(msg)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.ready, raw).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (*Delivery, error) {
	raw, err := q.rdb.BLMove(ctx, q.ready, q.processing, "RIGHT", "LEFT", wait).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoMessage
	}
	if err != nil {
		if errors.Is(err, redis.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, err
	}
	msg, err := decode(raw)
	if err != nil {
		// Poison entries would be redelivered forever.
		_ = q.rdb.LRem(ctx, q.processing, 1, raw).Err()
		return nil, err
	}
	return &Delivery{Message: msg, raw: raw}, nil
}

func (q *RedisQueue) Ack(ctx context.Context, d *Delivery) error {
	return q.rdb.LRem(ctx, q.processing, 1, d.raw).Err()
}

func (q *RedisQueue) Retry(ctx context.Context, d *Delivery, next Message, delay time.Duration) error {
	raw, err := encode(next)
	if err != nil {
		return err
	}
	due := time.Now().Add(delay).UnixMilli()

	pipe := q.rdb.TxPipeline()
	pipe.ZAdd(ctx, q.delayed, redis.Z{Score: float64(due), Member: raw})
	pipe.LRem(ctx, q.processing, 1, d.raw)
	_, err = pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	due, err := q.rdb.ZRangeByScore(ctx, q.delayed, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: promoteBatch,
	}).Result()
	if err != nil || len(due) == 0 {
		return 0, err
	}

	pipe := q.rdb.TxPipeline()
	for _, raw := range due {
		pipe.LPush(ctx, q.ready, raw)
		pipe.ZRem(ctx, q.delayed, raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(due), nil
}

func (q *RedisQueue) Queued(ctx context.Context, msg Message) (bool, error) {
	raw, err := encode(msg)
	if err != nil {
		return false, err
	}
	for _, key := range []string{q.ready, q.processing} {
		err := q.rdb.LPos(ctx, key, raw, redis.LPosArgs{}).Err()
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, redis.Nil) {
			return false, err
		}
	}
	return false, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.ready).Result()
}

// Delayed reports the number of scheduled retries.
func (q *RedisQueue) Delayed(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, q.delayed).Result()
}

// InFlight reports the number of delivered but unacknowledged messages.
func (q *RedisQueue) InFlight(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.processing).Result()
}

// Close is a no-op; the client is owned by the caller.
func (q *RedisQueue) Close() error { return nil }
