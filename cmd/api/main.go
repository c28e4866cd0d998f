package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/talentscore/internal/api"
	"github.com/timmy/talentscore/internal/api/handler"
	"github.com/timmy/talentscore/internal/api/middleware"
	"github.com/timmy/talentscore/internal/bootstrap"
	"github.com/timmy/talentscore/internal/config"
	"github.com/timmy/talentscore/internal/logger"
	"github.com/timmy/talentscore/internal/notify"
	"github.com/timmy/talentscore/internal/service"
)

func main() {
	// Initialize logger
	log := logger.NewDefault()
	logger.SetDefaultLogger(log)
	defer logger.Sync()

	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}

	ctx := context.Background()

	// Initialize stores, LLM client and audit archive
	components, err := bootstrap.Open(ctx, cfg, log, true)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize components")
	}
	defer components.Close()

	// Initialize notifiers
	hub := notify.NewHub()
	notifiers := notify.Multi{hub}
	if cfg.Notify.RabbitMQ.Enabled {
		publisher, err := notify.NewRabbitMQPublisher(cfg.Notify.RabbitMQ.URL, cfg.Notify.RabbitMQ.Exchange)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to RabbitMQ")
		}
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
		log.WithField("exchange", cfg.Notify.RabbitMQ.Exchange).Info("Publishing job events to RabbitMQ")
	}

	// Initialize services
	dispatcher := service.NewDispatcher(service.DispatcherConfig{
		Concurrency: cfg.Scoring.Concurrency,
		QueueSize:   cfg.Scoring.QueueSize,
	}, log)

	deps := service.ScoringDeps{
		Store:      components.Store,
		Profiles:   components.Profiles,
		Resolver:   components.Resolver,
		Client:     components.Client,
		Dispatcher: dispatcher,
		Notifier:   notifiers,
		Logger:     log,
	}
	if components.Archive != nil {
		deps.Archive = components.Archive
	}
	scoringService := service.NewScoringService(deps, service.ScoringConfig{
		MaxAttempts: cfg.Scoring.MaxAttempts,
		MaxRetries:  cfg.Scoring.MaxRetries,
		Backoff:     service.Backoff{Initial: cfg.Scoring.BackoffInitial, Max: cfg.Scoring.BackoffMax},
	})
	dispatcher.Start(scoringService.Execute)

	sweeper := service.NewRecoverySweeper(components.Store, dispatcher, notifiers, log, service.RecoveryConfig{
		StaleAfter:             cfg.Scoring.StaleAfter,
		PendingRedispatchAfter: cfg.Scoring.PendingRedispatchAfter,
		Interval:               cfg.Scoring.SweepInterval,
	})
	sweeper.Start(ctx)

	// Setup router
	router := api.SetupRouter(api.RouterDeps{
		Scoring:      scoringService,
		Sweeper:      sweeper,
		Store:        components.Store,
		Dispatcher:   dispatcher,
		Hub:          hub,
		Archive:      components.Archive,
		HealthChecks: map[string]handler.PingFunc{"database": components.Ping},
		Logger:       log,
	}, cfg.Server.Mode, middleware.CORSConfigFrom(cfg.Server.CORS))

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithFields(logger.Fields{
			"port":        cfg.Server.Port,
			"mode":        cfg.Server.Mode,
			"driver":      cfg.Database.Driver,
			"provider":    components.Client.Provider(),
			"concurrency": cfg.Scoring.Concurrency,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	sweeper.Stop()

	// In-flight jobs get the grace period, then their contexts are cancelled.
	// Jobs left processing are reported by the next sweep.
	graceCtx, cancelGrace := context.WithTimeout(context.Background(), cfg.Scoring.ShutdownGrace)
	defer cancelGrace()
	if err := dispatcher.Stop(graceCtx); err != nil {
		log.WithError(err).Warn("Dispatcher did not drain before the grace period ended")
	}

	log.Info("Server exited")
}
