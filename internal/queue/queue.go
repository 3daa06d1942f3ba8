// Package queue carries job references between the ingestion gateway and the
// worker pool. Delivery is at-least-once: a message is only removed when the
// consumer acknowledges it or reschedules it for retry.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoMessage is returned by Dequeue when nothing arrived within the wait.
	ErrNoMessage = errors.New("queue: no message")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("queue: closed")
)

// Message references a job. It never carries the document itself.
type Message struct {
	JobID   string `json:"job_id"`
	Attempt int    `json:"attempt"`
}

// Next returns the message for the following attempt.
func (m Message) Next() Message {
	return Message{JobID: m.JobID, Attempt: m.Attempt + 1}
}

// Delivery is a message handed to one consumer. It must be passed back to
// Ack or Retry exactly once.
type Delivery struct {
	Message Message
	raw     string
}

// Queue is implemented by RedisQueue and MemoryQueue.
type Queue interface {
	// Enqueue makes msg ready for delivery.
	Enqueue(ctx context.Context, msg Message) error
	// Dequeue blocks up to wait for a ready message.
	Dequeue(ctx context.Context, wait time.Duration) (*Delivery, error)
	// Ack removes a delivered message for good.
	Ack(ctx context.Context, d *Delivery) error
	// Retry acknowledges d and schedules next to become ready after delay.
	Retry(ctx context.Context, d *Delivery, next Message, delay time.Duration) error
	// PromoteDue moves delayed messages whose time has come to the ready list.
	PromoteDue(ctx context.Context, now time.Time) (int, error)
	// Queued reports whether msg is ready or delivered but not yet acknowledged.
	Queued(ctx context.Context, msg Message) (bool, error)
	// Len reports the number of ready messages.
	Len(ctx context.Context) (int64, error)
	Close() error
}

func encode(msg Message) (string, error) {
	if msg.JobID == "" {
		return "", fmt.Errorf("queue: message without job id")
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("queue: encode message: %w", err)
	}
	return string(b), nil
}

func decode(raw string) (Message, error) {
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return Message{}, fmt.Errorf("queue: decode message %q: %w", raw, err)
	}
	return msg, nil
}
