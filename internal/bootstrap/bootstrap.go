// Package bootstrap wires configuration into the services shared by the
// catalogx binaries.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/timmy/catalogx/internal/api/handler"
	"github.com/timmy/catalogx/internal/config"
	"github.com/timmy/catalogx/internal/logger"
	"github.com/timmy/catalogx/internal/queue"
	"github.com/timmy/catalogx/internal/repository"
	"github.com/timmy/catalogx/internal/service"
	"github.com/timmy/catalogx/internal/storage"
)

// App holds the initialized dependencies of one process.
type App struct {
	Config  *config.Config
	Log     *logger.Logger
	DB      *gorm.DB
	Redis   *redis.Client // nil with the memory queue
	Storage storage.ObjectStorage
	Queue   queue.Queue

	Jobs      *repository.JobRepository
	Companies *repository.CompanyRepository
	Audit     *service.AuditLog
	Engine    *service.UpsertEngine
	Gateway   *service.Gateway
	JobQuery  *service.JobQuery
	Processor *service.Processor
	Reaper    *service.Reaper
}

// NewLogger builds the process logger from config and installs it as default.
func NewLogger(cfg config.LogConfig, serviceName string) *logger.Logger {
	if cfg.ServiceName != "" {
		serviceName = cfg.ServiceName
	}
	l := logger.New(&logger.Options{
		Level:       cfg.Level,
		Format:      cfg.Format,
		ServiceName: serviceName,
		Environment: cfg.Environment,
		LogFile:     cfg.File,
		LogFileOnly: cfg.FileOnly,
		MaxSize:     cfg.MaxSize,
		MaxBackups:  cfg.MaxBackups,
		MaxAge:      cfg.MaxAge,
		Compress:    cfg.Compress,
	})
	logger.SetDefaultLogger(l)
	return l
}

// RetryPolicy converts the worker settings into a queue retry policy.
func RetryPolicy(cfg config.WorkerConfig) queue.RetryPolicy {
	p := queue.RetryPolicy{
		MaxAttempts:   cfg.MaxAttempts,
		InitialDelay:  cfg.InitialDelay,
		BackoffFactor: cfg.BackoffFactor,
	}
	if p.MaxAttempts <= 0 {
		return queue.DefaultRetryPolicy()
	}
	return p
}

// New connects the database, object storage and queue and builds the services.
// Parameters:
//   - ctx: context used while connecting.
//   - cfg: loaded configuration.
//   - log: process logger.
// Returns:
//   - *App: wired application; Close releases its connections.
//   - error: non-nil if any dependency cannot be initialized.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	app := &App{Config: cfg, Log: log}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.DB = db

	objectStorage, err := storage.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.Storage = objectStorage

	switch cfg.Queue.Driver {
	case "memory":
		log.Warn("Using in-memory queue; jobs are only processed by this process")
		app.Queue = queue.NewMemoryQueue()
	default:
		rdb, err := queue.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.Redis = rdb
		app.Queue = queue.NewRedisQueue(rdb, cfg.Queue.Name)
	}

	policy := RetryPolicy(cfg.Worker)

	app.Jobs = repository.NewJobRepository(db)
	app.Companies = repository.NewCompanyRepository(db)
	app.Audit = service.NewAuditLog(repository.NewExchangeLogRepository(db))
	app.Engine = service.NewUpsertEngine(
		repository.NewProductRepository(db),
		repository.NewPriceRepository(db),
		repository.NewStockRepository(db),
		cfg.Exchange.UpsertConcurrency,
	)
	app.Gateway = service.NewGateway(app.Jobs, app.Storage, app.Queue, service.GatewayConfig{
		Prefix:         cfg.Storage.Prefix,
		MaxUploadBytes: cfg.Exchange.MaxUploadBytes,
	})
	app.JobQuery = service.NewJobQuery(app.Jobs, app.Audit)

	notifier := service.NewNotifier(service.NotifierConfig{
		WebhookURL: cfg.Notify.WebhookURL,
		Timeout:    cfg.Notify.Timeout,
		RetryCount: cfg.Notify.RetryCount,
	})
	app.Processor = service.NewProcessor(app.Jobs, app.Audit, app.Engine, app.Storage, notifier, service.ProcessorConfig{
		LeaseDuration: cfg.Worker.LeaseDuration,
		BatchSize:     cfg.Exchange.BatchSize,
		Policy:        policy,
	})
	app.Reaper = service.NewReaper(app.Jobs, app.Queue, app.Audit, service.ReaperConfig{
		Interval:     cfg.Reaper.Interval,
		PendingAfter: cfg.Reaper.PendingAfter,
		BatchLimit:   cfg.Reaper.BatchLimit,
		Policy:       policy,
	})
	return app, nil
}

// NewPool builds a worker pool that feeds the processor.
func (a *App) NewPool() *queue.Pool {
	w := a.Config.Worker
	return queue.NewPool(a.Queue, a.Processor.Handle, queue.PoolConfig{
		Concurrency:     w.Concurrency,
		Policy:          RetryPolicy(w),
		PollWait:        w.PollWait,
		PromoteInterval: w.PromoteInterval,
		JobTimeout:      w.JobTimeout,
		ShutdownGrace:   a.Config.Server.ShutdownTimeout,
		OnExhausted:     a.Processor.Fail,
	}, a.Log)
}

// HealthChecks returns probes for the database and, when used, redis.
func (a *App) HealthChecks() map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}
	}
	return checks
}

// Close releases connections. It is safe on a partially built App.
func (a *App) Close() {
	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil {
			a.Log.WithError(err).Warn("Failed to close queue")
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.WithError(err).Warn("Failed to close redis client")
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// ConfigPath returns the config file from CONFIG_PATH, or empty for the
// default search paths.
func ConfigPath() string {
	return os.Getenv("CONFIG_PATH")
}
