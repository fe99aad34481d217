package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"equipqr/sync-agent/internal/client"
	"equipqr/sync-agent/internal/config"
	"equipqr/sync-agent/internal/connectivity"
	"equipqr/sync-agent/internal/controller"
	"equipqr/sync-agent/internal/database"
	"equipqr/sync-agent/internal/handler"
	"equipqr/sync-agent/internal/logger"
	"equipqr/sync-agent/internal/models"
	"equipqr/sync-agent/internal/processor"
	"equipqr/sync-agent/internal/queue"
	"equipqr/sync-agent/internal/router"
	"equipqr/sync-agent/internal/store"
	"equipqr/sync-agent/internal/timer"

	"go.uber.org/zap"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/local.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting sync agent",
		zap.String("env", cfg.Env),
		zap.String("config_path", *configPath),
	)

	// Initialize database
	db, err := database.New(cfg.StoragePath, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	scope := models.Scope{
		UserID:         cfg.Scope.UserID,
		OrganizationID: cfg.Scope.OrganizationID,
	}

	// Initialize stores and queue service
	queueStore := store.NewQueueStore(db.DB, log.Logger)
	timerStore := store.NewTimerStore(db.DB, log.Logger)
	queueService := queue.NewService(queueStore, scope, log.Logger)

	// Initialize API client
	apiClient := client.NewAPIClient(
		cfg.Backend.BaseURL,
		cfg.Backend.APIKey,
		time.Duration(cfg.Backend.Timeout)*time.Second,
		log.Logger,
	)

	// Initialize sync processor. The invalidation hook is where a read
	// cache would be notified; the agent logs the stale entity types so a
	// local UI can re-read through the queue state endpoint.
	syncProcessor := processor.New(
		queueService,
		apiClient,
		cfg.Sync.MaxAttempts,
		func(entityTypes []string) {
			log.Info("Read caches stale after sync", zap.Strings("entity_types", entityTypes))
		},
		log.Logger,
	)

	// Initialize connectivity watcher and controller
	watcher := connectivity.NewWatcher(
		apiClient,
		time.Duration(cfg.Sync.HealthCheckInterval)*time.Second,
		log.Logger,
	)
	queueController := controller.New(
		queueService,
		syncProcessor,
		watcher,
		nil,
		time.Duration(cfg.Sync.DebounceSeconds)*time.Second,
		time.Duration(cfg.Sync.DrainInterval)*time.Second,
		log.Logger,
	)
	queueController.Start()

	// Initialize work timers
	timerManager := timer.NewManager(timerStore, log.Logger)

	// Local control server for the UI
	var httpServer *http.Server
	if cfg.Server.Enabled {
		queueHandler := handler.NewQueueHandler(queueController, log.Logger)
		timerHandler := handler.NewTimerHandler(timerManager, log.Logger)

		addr := fmt.Sprintf("localhost:%d", cfg.Server.Port)
		httpServer = &http.Server{
			Addr:         addr,
			Handler:      router.New(queueHandler, timerHandler, log.Logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			log.Info("Starting local control server", zap.String("address", addr))
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("Control server error", zap.Error(err))
			}
		}()
	} else {
		log.Info("Local control server disabled in configuration")
	}

	log.Info("Sync agent started successfully",
		zap.String("scope", scope.Key()),
		zap.String("backend_url", cfg.Backend.BaseURL),
		zap.Int("restored_items", len(queueService.GetAll())),
	)

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	log.Info("Shutting down sync agent...")

	// Stop control server first so no new work arrives
	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Warn("Control server shutdown error", zap.Error(err))
		} else {
			log.Info("Control server stopped")
		}
	}

	// One last drain attempt so a short offline window does not strand items
	if watcher.IsOnline() && queueService.PendingCount() > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := queueController.SyncNow(ctx); err != nil {
			log.Warn("Final drain failed", zap.Error(err))
		}
		cancel()
	}

	// Stop controller and timers with a timeout
	done := make(chan struct{})
	go func() {
		queueController.Stop()
		timerManager.Close()
		close(done)
	}()

	select {
	case <-done:
		log.Info("Queue controller stopped successfully")
	case <-time.After(3 * time.Second):
		log.Warn("Shutdown timeout reached, forcing immediate exit")
		os.Exit(1)
	}

	// Drop failed items past the retention window
	queueStore.CleanupStaleFailed(time.Duration(cfg.Sync.FailedRetentionHours) * time.Hour)

	log.Info("Sync agent stopped")
}
