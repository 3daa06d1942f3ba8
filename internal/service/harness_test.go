package service_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/timmy/catalogx/internal/domain"
	"github.com/timmy/catalogx/internal/queue"
	"github.com/timmy/catalogx/internal/repository"
	"github.com/timmy/catalogx/internal/repository/repotest"
	"github.com/timmy/catalogx/internal/service"
	"github.com/timmy/catalogx/internal/storage"
)

const companyID = "company-1"

// fastPolicy keeps the default attempt count with millisecond delays.
var fastPolicy = queue.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 2}

// flakyStorage fails downloads while failing is set and blocks them until
// the context is done while hanging is set.
type flakyStorage struct {
	storage.ObjectStorage
	failing atomic.Bool
	hanging atomic.Bool
}

func (s *flakyStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.hanging.Load() {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.failing.Load() {
		return nil, errors.New("connection reset by peer")
	}
	return s.ObjectStorage.Download(ctx, key)
}

type harness struct {
	t        *testing.T
	db       *gorm.DB
	jobs     *repository.JobRepository
	products *repository.ProductRepository
	prices   *repository.PriceRepository
	stocks   *repository.StockRepository
	logs     *repository.ExchangeLogRepository
	audit    *service.AuditLog
	engine   *service.UpsertEngine
	store    *flakyStorage
	root     string
	queue    *queue.MemoryQueue
	gateway  *service.Gateway
	proc     *service.Processor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := repotest.NewDB(t)
	repotest.SeedCompany(t, db, companyID, "admin-1", "member-1")

	root := t.TempDir()
	local, err := storage.NewLocalStorage(root)
	require.NoError(t, err)

	h := &harness{
		t:        t,
		db:       db,
		jobs:     repository.NewJobRepository(db),
		products: repository.NewProductRepository(db),
		prices:   repository.NewPriceRepository(db),
		stocks:   repository.NewStockRepository(db),
		logs:     repository.NewExchangeLogRepository(db),
		store:    &flakyStorage{ObjectStorage: local},
		root:     root,
		queue:    queue.NewMemoryQueue(),
	}
	h.audit = service.NewAuditLog(h.logs)
	h.engine = service.NewUpsertEngine(h.products, h.prices, h.stocks, 4)
	h.gateway = service.NewGateway(h.jobs, h.store, h.queue, service.GatewayConfig{Prefix: "exchange", MaxUploadBytes: 1 << 20})
	h.proc = service.NewProcessor(h.jobs, h.audit, h.engine, h.store, nil, service.ProcessorConfig{
		WorkerID:      "worker-test",
		LeaseDuration: time.Minute,
		BatchSize:     2,
		Policy:        fastPolicy,
	})
	return h
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("..", "commerceml", "testdata", name))
	require.NoError(t, err)
	return b
}

// submit uploads body and returns the job and the message the gateway enqueued.
func (h *harness) submit(typ domain.ExchangeType, fileName string, body []byte) (*domain.ExchangeJob, queue.Message) {
	h.t.Helper()
	ctx := context.Background()
	job, err := h.gateway.Submit(ctx, service.SubmitRequest{
		CompanyID: companyID,
		Type:      typ,
		FileName:  fileName,
		Size:      int64(len(body)),
		Body:      bytes.NewReader(body),
	})
	require.NoError(h.t, err)

	d, err := h.queue.Dequeue(ctx, time.Second)
	require.NoError(h.t, err)
	require.NoError(h.t, h.queue.Ack(ctx, d))
	require.Equal(h.t, job.ID, d.Message.JobID)
	return job, d.Message
}

func (h *harness) job(id string) *domain.ExchangeJob {
	h.t.Helper()
	job, err := h.jobs.GetByID(context.Background(), id)
	require.NoError(h.t, err)
	return job
}

func (h *harness) messages(jobID string) []string {
	h.t.Helper()
	page, err := h.audit.List(context.Background(), jobID, 1, domain.MaxPageLimit)
	require.NoError(h.t, err)
	out := make([]string, len(page.Items))
	for i, e := range page.Items {
		out[i] = string(e.Status) + ": " + e.Message
	}
	return out
}
