package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/catalogx/internal/commerceml"
	"github.com/timmy/catalogx/internal/domain"
	"github.com/timmy/catalogx/internal/logger"
	"github.com/timmy/catalogx/internal/queue"
	"github.com/timmy/catalogx/internal/repository"
	"github.com/timmy/catalogx/internal/storage"
)

const (
	DefaultBatchSize     = 500
	DefaultLeaseDuration = 15 * time.Minute

	// maxLoggedItemErrors caps the item errors quoted in one batch summary.
	maxLoggedItemErrors = 5

	// bookkeepingTimeout bounds lease and audit writes made after the
	// handler context is done.
	bookkeepingTimeout = 10 * time.Second
)

// errLeaseLost means another worker took the job over; this delivery stops
// without touching the job again.
var errLeaseLost = errors.New("job lease lost")

// ProcessorConfig holds configuration for the job processor.
type ProcessorConfig struct {
	WorkerID      string
	LeaseDuration time.Duration
	BatchSize     int
	Policy        queue.RetryPolicy
}

// JobNotifier is told about jobs that reached a terminal status.
type JobNotifier interface {
	Notify(ctx context.Context, job *domain.ExchangeJob)
}

// Processor handles one job reference per call: it claims the job, parses
// the stored document and merges its items through the upsert engine.
type Processor struct {
	jobs     *repository.JobRepository
	audit    *AuditLog
	engine   *UpsertEngine
	storage  storage.ObjectStorage
	notifier JobNotifier
	cfg      ProcessorConfig
	now      func() time.Time
}

// NewProcessor creates a processor. notifier may be nil.
func NewProcessor(
	jobs *repository.JobRepository,
	audit *AuditLog,
	engine *UpsertEngine,
	objectStorage storage.ObjectStorage,
	notifier JobNotifier,
	cfg ProcessorConfig,
) *Processor {
	if cfg.WorkerID == "" {
		cfg.WorkerID = DefaultWorkerID()
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = DefaultLeaseDuration
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Policy.MaxAttempts <= 0 {
		cfg.Policy = queue.DefaultRetryPolicy()
	}
	return &Processor{
		jobs:     jobs,
		audit:    audit,
		engine:   engine,
		storage:  objectStorage,
		notifier: notifier,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// DefaultWorkerID identifies this process as a lease owner.
func DefaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.New().String()[:8])
}

// WorkerID returns the lease owner name of this processor.
func (p *Processor) WorkerID() string { return p.cfg.WorkerID }

// Handle processes one delivery. A nil return acknowledges the message. An
// error asks the queue to redeliver, and the lease is released so that the
// redelivery can claim the job once its delay has passed.
func (p *Processor) Handle(ctx context.Context, msg queue.Message) error {
	job, err := p.jobs.GetByID(ctx, msg.JobID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.CtxWarn(ctx, "Job %s does not exist, dropping message", msg.JobID)
		return nil
	}
	if err != nil {
		return err
	}
	ctx = logger.SetJob(ctx, job.ID, job.CompanyID, string(job.Type))
	ctx = logger.WithField(ctx, logger.FieldWorker, p.cfg.WorkerID)

	if job.Status.IsTerminal() {
		logger.CtxInfo(ctx, "Job already %s, dropping duplicate delivery", job.Status)
		return nil
	}

	claimed, err := p.jobs.Claim(ctx, job.ID, p.cfg.WorkerID, msg.Attempt, p.now(), p.cfg.LeaseDuration)
	if err != nil {
		return err
	}
	if !claimed {
		logger.CtxInfo(ctx, "Job is held by another worker, dropping duplicate delivery")
		return nil
	}
	if err := p.audit.Appendf(ctx, job.ID, domain.JobStatusRunning, "attempt %d started by %s", msg.Attempt, p.cfg.WorkerID); err != nil {
		return p.retry(ctx, job, msg, err)
	}

	start := time.Now()
	counters, err := p.process(ctx, job)
	switch {
	case err == nil:
		p.finish(ctx, job, domain.JobStatusSucceeded, counters, "",
			fmt.Sprintf("completed: %d items, %d succeeded, %d failed", counters.Total, counters.Succeeded, counters.Failed))
		logger.Since(start).WithCounters(counters.Total, counters.Failed).Info(ctx, "Exchange job succeeded")
		return nil

	case errors.Is(err, errLeaseLost):
		logger.CtxWarn(ctx, "Lease lost while processing, leaving the job to its new owner")
		return nil

	case isPermanent(err):
		p.finish(ctx, job, domain.JobStatusFailed, counters, err.Error(), "document rejected: "+err.Error())
		logger.FromContext(ctx).WithError(err).Error("Exchange job failed")
		return nil
	}

	return p.retry(ctx, job, msg, err)
}

func (p *Processor) retry(ctx context.Context, job *domain.ExchangeJob, msg queue.Message, cause error) error {
	if p.cfg.Policy.Exhausted(msg.Attempt) {
		// Fail runs as the pool's exhaustion hook.
		return cause
	}
	ctx, cancel := detached(ctx)
	defer cancel()

	delay := p.cfg.Policy.Delay(msg.Attempt)
	if err := p.jobs.ReleaseLease(ctx, job.ID, p.cfg.WorkerID, p.now().Add(delay), cause.Error()); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to release job lease")
	}
	if err := p.audit.Appendf(ctx, job.ID, domain.JobStatusRunning, "attempt %d failed: %v; retrying in %s", msg.Attempt, cause, delay); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to write audit entry")
	}
	return cause
}

// Fail marks the job failed after its last attempt. It is the pool's
// exhaustion hook.
func (p *Processor) Fail(ctx context.Context, msg queue.Message, cause error) {
	job, err := p.jobs.GetByID(ctx, msg.JobID)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("Cannot load exhausted job")
		return
	}
	ctx = logger.SetJob(ctx, job.ID, job.CompanyID, string(job.Type))
	counters := domain.JobCounters{Total: job.TotalItems, Succeeded: job.SucceededItems, Failed: job.FailedItems}
	p.finish(ctx, job, domain.JobStatusFailed, counters, cause.Error(),
		fmt.Sprintf("failed after %d attempts: %v", msg.Attempt, cause))
}

func (p *Processor) finish(ctx context.Context, job *domain.ExchangeJob, status domain.JobStatus, c domain.JobCounters, lastError, message string) {
	ctx, cancel := detached(ctx)
	defer cancel()

	done, err := p.jobs.Finish(ctx, job.ID, status, c, lastError)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to record job outcome")
		return
	}
	if !done {
		return
	}
	if err := p.audit.Append(ctx, job.ID, status, message); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to write terminal audit entry")
	}
	if p.notifier == nil {
		return
	}
	if final, err := p.jobs.GetByID(ctx, job.ID); err == nil {
		p.notifier.Notify(ctx, final)
	}
}

// detached keeps the loggers carried by ctx but survives its cancellation,
// so a timed-out job still records its outcome.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}

func isPermanent(err error) bool {
	var pe *domain.ParseError
	return errors.As(err, &pe) ||
		errors.Is(err, storage.ErrObjectNotFound) ||
		errors.Is(err, domain.ErrValidation)
}

func (p *Processor) process(ctx context.Context, job *domain.ExchangeJob) (domain.JobCounters, error) {
	rc, err := p.storage.Download(ctx, job.SourcePath)
	if err != nil {
		return domain.JobCounters{}, fmt.Errorf("open document %s: %w", job.SourcePath, err)
	}
	defer rc.Close()

	return p.ingest(ctx, job.CompanyID, job.Type, rc, func(ctx context.Context, b batchSummary, total domain.JobCounters) error {
		if err := p.audit.Append(ctx, job.ID, domain.JobStatusRunning, b.String()); err != nil {
			return err
		}
		if err := p.jobs.UpdateCounters(ctx, job.ID, total); err != nil {
			return err
		}
		ok, err := p.jobs.ExtendLease(ctx, job.ID, p.cfg.WorkerID, p.now().Add(p.cfg.LeaseDuration))
		if err != nil {
			return err
		}
		if !ok {
			return errLeaseLost
		}
		return nil
	})
}

// RunSummary is the outcome of RunDocument.
type RunSummary struct {
	Counters domain.JobCounters
	Batches  []string
}

// RunDocument parses src and merges its items for companyID without a job or
// queue. Parse errors abort; item errors are counted.
func (p *Processor) RunDocument(ctx context.Context, companyID string, typ domain.ExchangeType, src io.Reader) (*RunSummary, error) {
	summary := &RunSummary{}
	counters, err := p.ingest(ctx, companyID, typ, src, func(ctx context.Context, b batchSummary, _ domain.JobCounters) error {
		summary.Batches = append(summary.Batches, b.String())
		return nil
	})
	summary.Counters = counters
	return summary, err
}

type batchSummary struct {
	Number    int
	First     int
	Last      int
	Succeeded int
	Failed    int
	Errors    []*domain.ItemError
}

func (b batchSummary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "batch %d (items %d-%d): %d succeeded, %d failed", b.Number, b.First, b.Last, b.Succeeded, b.Failed)
	for i, e := range b.Errors {
		if i == maxLoggedItemErrors {
			fmt.Fprintf(&sb, "; and %d more", len(b.Errors)-maxLoggedItemErrors)
			break
		}
		fmt.Fprintf(&sb, "; item %d: %s", e.Index, e.Message)
	}
	return sb.String()
}

type batchFunc func(ctx context.Context, b batchSummary, total domain.JobCounters) error

// ingest streams the document in batches. A batch with a transient item
// error aborts the run so the whole job can be retried; upserts are
// idempotent, so items already written converge on the next attempt.
func (p *Processor) ingest(ctx context.Context, companyID string, typ domain.ExchangeType, src io.Reader, onBatch batchFunc) (domain.JobCounters, error) {
	var total domain.JobCounters

	reader, err := commerceml.NewReader(typ, src)
	if err != nil {
		return total, err
	}
	if err := p.declare(ctx, companyID, reader); err != nil {
		return total, err
	}

	batch := make([]commerceml.Item, 0, p.cfg.BatchSize)
	number := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		number++
		b, transient := p.upsertBatch(ctx, companyID, typ, batch)
		b.Number = number
		total.Total += len(batch)
		total.Succeeded += b.Succeeded
		total.Failed += b.Failed
		batch = batch[:0]
		if transient != nil {
			return transient
		}
		return onBatch(ctx, b, total)
	}

	for {
		item, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, err
		}
		batch = append(batch, item)
		if len(batch) == p.cfg.BatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// declare merges the price types and stocks the document declares before its
// offers. Offers referencing a declaration that failed surface as not-found
// item errors.
func (p *Processor) declare(ctx context.Context, companyID string, reader *commerceml.Reader) error {
	var results []domain.ItemResult
	if pts := reader.PriceTypes(); len(pts) > 0 {
		results = append(results, p.engine.UpsertPriceTypes(ctx, companyID, pts)...)
	}
	if sts := reader.Stocks(); len(sts) > 0 {
		results = append(results, p.engine.UpsertStocks(ctx, companyID, sts)...)
	}
	for _, r := range results {
		if r.OK() {
			continue
		}
		if r.Err.Transient() {
			return domain.NewTransientError(r.Err, "failed to store document declarations")
		}
		logger.FromContext(ctx).WithError(r.Err).Warn("Skipping invalid declaration")
	}
	return nil
}

func (p *Processor) upsertBatch(ctx context.Context, companyID string, typ domain.ExchangeType, items []commerceml.Item) (batchSummary, error) {
	b := batchSummary{First: items[0].Index, Last: items[len(items)-1].Index}

	// Parsed items that already failed are reported at their own position.
	var positions []int
	var products []domain.ProductInput
	var prices []domain.PriceInput
	var stocks []domain.StockInput
	for _, it := range items {
		switch {
		case it.Err != nil:
			b.Failed++
			b.Errors = append(b.Errors, it.Err)
			continue
		case it.Product != nil:
			products = append(products, *it.Product)
		case it.Price != nil:
			prices = append(prices, *it.Price)
		case it.Stock != nil:
			stocks = append(stocks, *it.Stock)
		default:
			continue
		}
		positions = append(positions, it.Index)
	}

	var results []domain.ItemResult
	switch typ {
	case domain.ExchangeTypeCatalog:
		results = p.engine.UpsertProducts(ctx, companyID, products)
	case domain.ExchangeTypePrice:
		results = p.engine.UpsertPrices(ctx, companyID, prices)
	case domain.ExchangeTypeStockBalance:
		results = p.engine.UpsertStockBalances(ctx, companyID, stocks)
	}

	var transient error
	for i, r := range results {
		if r.OK() {
			b.Succeeded++
			continue
		}
		b.Failed++
		itemErr := *r.Err
		itemErr.Index = positions[i]
		b.Errors = append(b.Errors, &itemErr)
		if itemErr.Transient() && transient == nil {
			transient = domain.NewTransientError(&itemErr, "item %d could not be stored", itemErr.Index)
		}
	}
	sort.SliceStable(b.Errors, func(i, j int) bool { return b.Errors[i].Index < b.Errors[j].Index })
	return b, transient
}
