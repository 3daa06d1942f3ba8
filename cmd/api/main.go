package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/timmy/catalogx/internal/api"
	"github.com/timmy/catalogx/internal/api/middleware"
	"github.com/timmy/catalogx/internal/bootstrap"
	"github.com/timmy/catalogx/internal/config"
	"github.com/timmy/catalogx/internal/logger"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(bootstrap.ConfigPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := bootstrap.NewLogger(cfg.Log, "catalogx-api")
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}
	defer app.Close()

	// Optionally process jobs in-process
	if cfg.Worker.Embedded {
		pool := app.NewPool()
		if err := pool.Start(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to start worker pool")
		}
		defer pool.Stop()

		app.Reaper.Start(ctx)
		defer app.Reaper.Stop()
	}

	router := api.SetupRouter(api.Deps{
		Gateway:        app.Gateway,
		Engine:         app.Engine,
		Jobs:           app.JobQuery,
		Companies:      app.Companies,
		HealthChecks:   app.HealthChecks(),
		MaxUploadBytes: cfg.Exchange.MaxUploadBytes,
		Logger:         appLogger,
	}, cfg.Server.Mode, middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		appLogger.WithFields(logger.Fields{
			"port":     cfg.Server.Port,
			"mode":     cfg.Server.Mode,
			"embedded": cfg.Worker.Embedded,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		appLogger.WithError(err).Error("Server failed")
	}

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
