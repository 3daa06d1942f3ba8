package service

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/timmy/catalogx/internal/domain"
	"github.com/timmy/catalogx/internal/logger"
	"github.com/timmy/catalogx/internal/queue"
	"github.com/timmy/catalogx/internal/repository"
	"github.com/timmy/catalogx/internal/storage"
)

const xmlContentType = "application/xml"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// GatewayConfig holds configuration for the ingestion gateway.
type GatewayConfig struct {
	Prefix         string
	MaxUploadBytes int64
}

// SubmitRequest is one uploaded exchange document.
type SubmitRequest struct {
	CompanyID string
	Type      domain.ExchangeType
	FileName  string
	Size      int64
	Body      io.Reader
}

// Gateway accepts uploads: it stores the file, records a pending job and
// enqueues a reference to it, strictly in that order.
type Gateway struct {
	jobs    *repository.JobRepository
	storage storage.ObjectStorage
	queue   queue.Queue
	cfg     GatewayConfig
}

// NewGateway creates a new ingestion gateway.
func NewGateway(jobs *repository.JobRepository, objectStorage storage.ObjectStorage, q queue.Queue, cfg GatewayConfig) *Gateway {
	if cfg.Prefix == "" {
		cfg.Prefix = "exchange"
	}
	return &Gateway{jobs: jobs, storage: objectStorage, queue: q, cfg: cfg}
}

// Submit validates and persists an upload and schedules its processing.
// A validation failure writes nothing. If the job row cannot be created the
// stored file is removed and nothing is enqueued. If only the enqueue fails,
// the pending job is returned together with a transient error; the reaper
// enqueues it later.
func (g *Gateway) Submit(ctx context.Context, req SubmitRequest) (*domain.ExchangeJob, error) {
	body, err := g.validate(req)
	if err != nil {
		return nil, err
	}

	jobID := uuid.New().String()
	key := storage.DocumentKey(g.cfg.Prefix, req.CompanyID, string(req.Type), jobID, req.FileName)
	ctx = logger.SetJob(ctx, jobID, req.CompanyID, string(req.Type))
	log := logger.FromContext(ctx)

	if err := g.storage.Upload(ctx, key, body, req.Size, xmlContentType); err != nil {
		return nil, domain.NewTransientError(err, "failed to store uploaded document")
	}

	job := &domain.ExchangeJob{
		ID:         jobID,
		CompanyID:  req.CompanyID,
		Type:       req.Type,
		SourceName: req.FileName,
		SourcePath: key,
		Status:     domain.JobStatusPending,
	}
	if err := g.jobs.Create(ctx, job); err != nil {
		if derr := g.storage.Delete(context.WithoutCancel(ctx), key); derr != nil {
			log.WithError(derr).Warn("Failed to remove orphaned upload")
		}
		return nil, err
	}

	if err := g.queue.Enqueue(ctx, queue.Message{JobID: jobID, Attempt: 1}); err != nil {
		log.WithError(err).Error("Failed to enqueue job, left pending for the reaper")
		return job, domain.NewTransientError(err, "job %s accepted but not yet scheduled", jobID)
	}

	logger.With(logger.Fields{"file_name": req.FileName}).WithSize(req.Size).Info(ctx, "Exchange document accepted")
	return job, nil
}

func (g *Gateway) validate(req SubmitRequest) (io.Reader, error) {
	if req.CompanyID == "" {
		return nil, domain.NewValidationError("company is required")
	}
	if !req.Type.IsValid() {
		return nil, domain.NewValidationError("unknown import type %q", req.Type)
	}
	if req.Body == nil || req.Size <= 0 {
		return nil, domain.NewValidationError("file is empty")
	}
	if g.cfg.MaxUploadBytes > 0 && req.Size > g.cfg.MaxUploadBytes {
		return nil, domain.NewValidationError("file exceeds %d bytes", g.cfg.MaxUploadBytes)
	}
	if !strings.EqualFold(filepath.Ext(req.FileName), ".xml") {
		return nil, domain.NewValidationError("file %q is not an .xml document", req.FileName)
	}

	br := bufio.NewReaderSize(req.Body, 512)
	head, _ := br.Peek(512)
	head = bytes.TrimLeft(bytes.TrimPrefix(head, utf8BOM), " \t\r\n")
	if len(head) == 0 || head[0] != '<' {
		return nil, domain.NewValidationError("file %q does not look like XML", req.FileName)
	}
	return br, nil
}
