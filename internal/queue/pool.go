package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timmy/catalogx/internal/logger"
)

// HandlerFunc processes one message. A nil error acknowledges it; any error
// or panic schedules a retry while attempts remain.
type HandlerFunc func(ctx context.Context, msg Message) error

// ExhaustedFunc is called once a message failed its last attempt, before it
// is acknowledged.
type ExhaustedFunc func(ctx context.Context, msg Message, err error)

// PoolConfig tunes a Pool. Zero values fall back to defaults.
type PoolConfig struct {
	Concurrency     int
	Policy          RetryPolicy
	PollWait        time.Duration
	PromoteInterval time.Duration // zero disables the promote loop
	JobTimeout      time.Duration
	ShutdownGrace   time.Duration // how long Stop waits before cancelling handlers
	OnExhausted     ExhaustedFunc
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.Policy.MaxAttempts <= 0 {
		c.Policy = DefaultRetryPolicy()
	}
	if c.PollWait < time.Second {
		c.PollWait = time.Second
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 10 * time.Minute
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 30 * time.Second
	}
	return c
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	InFlight  int64
	Succeeded uint64
	Retried   uint64
	Exhausted uint64
}

// Pool runs exactly Concurrency consumers; each holds at most one delivery,
// so at most Concurrency jobs are in flight.
type Pool struct {
	q      Queue
	handle HandlerFunc
	cfg    PoolConfig
	log    *logger.Logger

	mu         sync.Mutex
	started    bool
	stopLoops  context.CancelFunc
	stopHandle context.CancelFunc
	handleCtx  context.Context
	opsCtx     context.Context
	loops      sync.WaitGroup

	inFlight  atomic.Int64
	succeeded atomic.Uint64
	retried   atomic.Uint64
	exhausted atomic.Uint64
}

// NewPool wires a queue to a handler. Nothing runs until Start.
func NewPool(q Queue, handle HandlerFunc, cfg PoolConfig, log *logger.Logger) *Pool {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Pool{
		q:      q,
		handle: handle,
		cfg:    cfg.withDefaults(),
		log:    log.WithField(logger.FieldComponent, "worker_pool"),
	}
}

// Start launches the consumers and the promote loop. Loggers and other
// values carried by ctx reach the handlers; cancelling ctx stops intake.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errors.New("worker pool already started")
	}
	p.started = true

	loopCtx, stopLoops := context.WithCancel(ctx)
	p.opsCtx = context.WithoutCancel(ctx)
	p.handleCtx, p.stopHandle = context.WithCancel(p.opsCtx)
	p.stopLoops = stopLoops

	for i := 0; i < p.cfg.Concurrency; i++ {
		p.loops.Add(1)
		go p.consume(loopCtx, i)
	}
	if p.cfg.PromoteInterval > 0 {
		p.loops.Add(1)
		go p.promote(loopCtx)
	}

	p.log.WithField(logger.FieldCount, p.cfg.Concurrency).Info("Worker pool started")
	return nil
}

// Stop stops intake and waits for in-flight handlers. Handlers still running
// after ShutdownGrace are cancelled; their messages are left unacknowledged.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	stopLoops, stopHandle := p.stopLoops, p.stopHandle
	p.mu.Unlock()

	stopLoops()

	done := make(chan struct{})
	go func() {
		p.loops.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(p.cfg.ShutdownGrace):
		p.log.Warn("Shutdown grace elapsed, cancelling running jobs")
		stopHandle()
		<-done
	}
	stopHandle()
	p.log.Info("Worker pool stopped")
}

// Stats returns current counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		InFlight:  p.inFlight.Load(),
		Succeeded: p.succeeded.Load(),
		Retried:   p.retried.Load(),
		Exhausted: p.exhausted.Load(),
	}
}

func (p *Pool) consume(ctx context.Context, id int) {
	defer p.loops.Done()
	log := p.log.WithField(logger.FieldWorker, id)

	for ctx.Err() == nil {
		d, err := p.q.Dequeue(ctx, p.cfg.PollWait)
		switch {
		case err == nil:
			p.process(d)
		case errors.Is(err, ErrNoMessage):
		case errors.Is(err, ErrClosed):
			return
		case ctx.Err() != nil:
			return
		default:
			log.WithError(err).Warn("Dequeue failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

func (p *Pool) process(d *Delivery) {
	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	msg := d.Message
	if msg.Attempt < 1 {
		msg.Attempt = 1
		d.Message = msg
	}

	ctx := p.log.WithFields(logger.Fields{
		logger.FieldJobID:   msg.JobID,
		logger.FieldAttempt: msg.Attempt,
	}).WithContext(p.handleCtx)
	hctx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	start := time.Now()
	err := p.safeHandle(hctx, msg)
	cancel()

	if p.handleCtx.Err() != nil {
		logger.CtxWarn(ctx, "Job interrupted by shutdown, leaving message unacknowledged")
		return
	}

	opsCtx, opsCancel := context.WithTimeout(logger.FromContext(ctx).WithContext(p.opsCtx), 10*time.Second)
	defer opsCancel()

	if err == nil {
		p.succeeded.Add(1)
		logger.Since(start).Debug(ctx, "Job handled")
		if aerr := p.q.Ack(opsCtx, d); aerr != nil {
			logger.FromContext(ctx).WithError(aerr).Error("Ack failed")
		}
		return
	}

	if p.cfg.Policy.Exhausted(msg.Attempt) {
		p.exhausted.Add(1)
		logger.CtxError(ctx, "Job failed after %d attempts: %v", msg.Attempt, err)
		if p.cfg.OnExhausted != nil {
			p.cfg.OnExhausted(opsCtx, msg, err)
		}
		if aerr := p.q.Ack(opsCtx, d); aerr != nil {
			logger.FromContext(ctx).WithError(aerr).Error("Ack failed")
		}
		return
	}

	delay := p.cfg.Policy.Delay(msg.Attempt)
	p.retried.Add(1)
	logger.FromContext(ctx).WithError(err).Warnf("Job failed, retrying in %s", delay)
	if rerr := p.q.Retry(opsCtx, d, msg.Next(), delay); rerr != nil {
		logger.FromContext(ctx).WithError(rerr).Error("Scheduling retry failed")
	}
}

func (p *Pool) safeHandle(ctx context.Context, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).WithField("stack", string(debug.Stack())).Errorf("Handler panic: %v", r)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return p.handle(ctx, msg)
}

func (p *Pool) promote(ctx context.Context) {
	defer p.loops.Done()
	ticker := time.NewTicker(p.cfg.PromoteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := p.q.PromoteDue(ctx, now)
			if err != nil && ctx.Err() == nil {
				p.log.WithError(err).Warn("Promoting delayed messages failed")
				continue
			}
			if n > 0 {
				p.log.WithField(logger.FieldCount, n).Debug("Promoted delayed messages")
			}
		}
	}
}
