package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/clip-repurposer/internal/config"
	"github.com/cuongbtq/clip-repurposer/internal/metrics"
	"github.com/cuongbtq/clip-repurposer/internal/processor"
	"github.com/cuongbtq/clip-repurposer/internal/storage"
	"github.com/cuongbtq/clip-repurposer/internal/worker"
	"github.com/cuongbtq/clip-repurposer/internal/workspace"
	"github.com/cuongbtq/clip-repurposer/shared/logger"
	"github.com/cuongbtq/clip-repurposer/shared/postgresql"
	"github.com/cuongbtq/clip-repurposer/shared/rabbitmq"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logging.LoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()
	appLogger = appLogger.With(slog.String("service", cfg.App.Name))

	workerID := cfg.Worker.ID
	if workerID == "" {
		if workerID, err = os.Hostname(); err != nil || workerID == "" {
			workerID = cfg.App.Name
		}
	}

	appLogger.Info("Starting worker service",
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("worker_id", workerID),
	)

	metrics.MustRegister()

	ws, err := workspace.New(cfg.Storage.DataDir, cfg.Storage.MaxUploadBytes())
	if err != nil {
		return fmt.Errorf("failed to initialize workspace: %w", err)
	}

	// Initialize PostgreSQL client
	dbClient, err := postgresql.NewClient(cfg.Database.ClientConfig(), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	metrics.RegisterDBStats(dbClient.Pool())

	appLogger.Info("Database connection established")

	// Initialize RabbitMQ client
	rabbitClient, err := rabbitmq.NewClient(cfg.RabbitMQ.ClientConfig(), appLogger.Logger)
	if err != nil {
		dbClient.Close()
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	store := storage.NewPostgres(dbClient, appLogger.Logger)
	invoker := processor.NewInvoker(processor.InvokerConfig{
		Store:    store,
		Runner:   processor.NewExecRunner(cfg.Processor.ExecConfig()),
		Logger:   appLogger.Logger,
		WorkerID: workerID,
		LogPath:  ws.LogPath,
	})

	// Create worker instance
	workerInstance := worker.NewWorker(&worker.Config{
		Logger:      appLogger.Logger,
		Consumer:    rabbitClient,
		Invoker:     invoker,
		WorkerID:    workerID,
		Concurrency: cfg.Worker.Concurrency,
	})

	metricsSrv := startMetricsServer(cfg.Worker.MetricsAddr, appLogger.Logger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start worker in a goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- workerInstance.Start(ctx)
	}()

	appLogger.Info("Worker service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
		cancel()
		runErr = <-errChan
	case runErr = <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", runErr),
		)
	}

	// Give in-flight jobs time to finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	if err := workerInstance.Stop(shutdownCtx); err != nil {
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit",
			slog.Any("error", err),
		)
	}

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("Failed to stop metrics server", slog.Any("error", err))
		}
	}

	// Cleanup function to close all resources
	cleanup := func() {
		if err := rabbitClient.Close(); err != nil {
			appLogger.Warn("Failed to close RabbitMQ client", slog.Any("error", err))
		}
		if err := dbClient.Close(); err != nil {
			appLogger.Warn("Failed to close database client", slog.Any("error", err))
		}
	}
	cleanup()

	appLogger.Info("Worker service shutdown complete")
	return runErr
}

// startMetricsServer exposes /metrics when addr is set
func startMetricsServer(addr string, logger *slog.Logger) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed",
				slog.String("address", addr),
				slog.Any("error", err),
			)
		}
	}()

	logger.Info("Metrics server listening",
		slog.String("address", addr),
	)
	return srv
}
