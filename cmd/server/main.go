package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/JoeProAI/followlytics/internal/api"
	"github.com/JoeProAI/followlytics/internal/auth"
	"github.com/JoeProAI/followlytics/internal/classifier"
	"github.com/JoeProAI/followlytics/internal/config"
	"github.com/JoeProAI/followlytics/internal/database"
	"github.com/JoeProAI/followlytics/internal/detection"
	"github.com/JoeProAI/followlytics/internal/logging"
	"github.com/JoeProAI/followlytics/internal/metrics"
	"github.com/JoeProAI/followlytics/internal/scheduler"
	"github.com/JoeProAI/followlytics/internal/server"
	"github.com/JoeProAI/followlytics/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting followlytics")

	ctx := context.Background()

	logger.Info("connecting to database")
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	if err := database.RunMigrations(db, cfg.Database.MigrationsDir, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Repositories
	targetRepo := database.NewPostgresTargetRepository(db)
	followerRepo := database.NewPostgresFollowerRepository(db)
	runRepo := database.NewPostgresScanRunRepository(db)
	eventRepo := database.NewPostgresChangeEventRepository(db)
	qualityRepo := database.NewPostgresQualityErrorRepository(db)

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	gate := detection.CoverageGate{Threshold: cfg.Engine.CoverageThreshold}
	manager := tracker.NewManager(
		targetRepo, followerRepo, runRepo, eventRepo, qualityRepo,
		gate, collector, logger, cfg.Engine.SnapshotBatchSize,
	)
	patternClassifier := classifier.NewClassifier(eventRepo, cfg.Engine.QuickUnfollowDays, logger)

	// Scan scheduler
	scanScheduler := scheduler.NewScheduler(targetRepo, manager, cfg.Engine.SchedulerSyncInterval, logger)
	if err := scanScheduler.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer scanScheduler.Stop()

	// HTTP routes
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := database.HealthCheck(checkCtx, db); err != nil {
			logger.Error("health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", collector.Handler())

	authConfig := auth.LoadConfigFromEnv()
	logger.Info("auth configured", "jwt_secret_set", authConfig.JWTSecret != "change-this-secret")

	logger.Info("setting up REST API")
	api.SetupRoutes(mux, manager, targetRepo, followerRepo, runRepo, eventRepo, qualityRepo, patternClassifier, authConfig, logger)

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Info("received signal, shutting down", "signal", sig.String())
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("followlytics stopped")
}
