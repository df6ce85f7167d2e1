package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/pharmastock/pharmastock-backend/internal/stock/consumers"
	"github.com/pharmastock/pharmastock-backend/internal/stock/events"
	"github.com/pharmastock/pharmastock-backend/internal/stock/handler"
	"github.com/pharmastock/pharmastock-backend/internal/stock/repository"
	"github.com/pharmastock/pharmastock-backend/internal/stock/service"
	"github.com/pharmastock/pharmastock-backend/internal/stock/urgency"
	"github.com/pharmastock/pharmastock-backend/migrations"
	"github.com/pharmastock/pharmastock-backend/pkg/config"
	"github.com/pharmastock/pharmastock-backend/pkg/database"
	"github.com/pharmastock/pharmastock-backend/pkg/lock"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
	"github.com/pharmastock/pharmastock-backend/pkg/messaging"
)

const serviceName = "stock-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Stock Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := events.NewStockEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Redis is optional; without it the recompute runs unguarded
	locker, err := lock.New(ctx, &cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer locker.Close()

	// Initialize repositories
	signalementRepo := repository.NewSignalementRepository(db)
	rotationRepo := repository.NewRotationRepository(db)
	inventaireRepo := repository.NewInventaireRepository(db)

	// Initialize services
	loc, err := cfg.Urgency.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid urgency timezone")
	}
	engine := urgency.NewEngine().WithLocation(loc)
	updater := service.NewUpdaterService(signalementRepo, rotationRepo, engine, publisher, log)
	signalementService := service.NewSignalementService(signalementRepo, updater, log)
	rotationService := service.NewRotationService(rotationRepo, publisher, log)
	inventaireService := service.NewInventaireService(inventaireRepo, updater, log)
	exportService := service.NewExportService(signalementRepo, rotationRepo, inventaireRepo, log)
	dashboardService := service.NewDashboardService(signalementRepo)

	scheduler := service.NewRecomputeScheduler(updater, locker, cfg.Urgency.RecomputeInterval, cfg.Urgency.LockTTL, log)
	if cfg.Urgency.SchedulerEnabled {
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	// Recompute open signalements when rotations are imported
	rotationConsumer, err := consumers.NewRotationEventConsumer(rmq, scheduler, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create rotation event consumer")
	}
	if err := rotationConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start rotation event consumer")
	}

	router := handler.NewRouter(&handler.Handlers{
		Signalements: handler.NewSignalementHandler(signalementService, updater, log),
		Rotations:    handler.NewRotationHandler(rotationService, log),
		Inventaires:  handler.NewInventaireHandler(inventaireService, log),
		Dashboard:    handler.NewDashboardHandler(dashboardService, log),
		Export:       handler.NewExportHandler(exportService, log),
		Health: handler.NewHealthHandler(serviceName, map[string]handler.HealthCheck{
			"database": db.Health,
			"rabbitmq": func(context.Context) map[string]string { return rmq.Health() },
			"redis":    locker.Health,
		}),
	}, cfg.CORS.AllowedOrigins, log)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop the consumer and the scheduler
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
