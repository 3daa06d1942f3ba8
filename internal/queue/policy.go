package queue

import (
	"math"
	"time"
)

// RetryPolicy bounds redelivery of failed jobs. Attempts are 1-based.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy allows three attempts, waiting 5s and then 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: 5 * time.Second, BackoffFactor: 2}
}

// Delay is how long to wait after the given failed attempt before the next one.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	return time.Duration(float64(p.InitialDelay) * math.Pow(factor, float64(attempt-1)))
}

// Exhausted reports whether no attempt remains after the given one.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
