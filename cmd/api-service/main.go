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

	"github.com/cuongbtq/clip-repurposer/internal/api/handler"
	"github.com/cuongbtq/clip-repurposer/internal/api/router"
	"github.com/cuongbtq/clip-repurposer/internal/assets"
	"github.com/cuongbtq/clip-repurposer/internal/config"
	"github.com/cuongbtq/clip-repurposer/internal/metrics"
	"github.com/cuongbtq/clip-repurposer/internal/processor"
	"github.com/cuongbtq/clip-repurposer/internal/resolver"
	"github.com/cuongbtq/clip-repurposer/internal/storage"
	"github.com/cuongbtq/clip-repurposer/internal/worker"
	"github.com/cuongbtq/clip-repurposer/internal/workspace"
	"github.com/cuongbtq/clip-repurposer/shared/logger"
	"github.com/cuongbtq/clip-repurposer/shared/postgresql"
	"github.com/cuongbtq/clip-repurposer/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// multipart parts above this size are spooled to temporary files
const maxMultipartMemory = 32 << 20

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
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logging.LoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()
	appLogger = appLogger.With(slog.String("service", cfg.App.Name))

	appLogger.Info("Starting API service",
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("dispatch", cfg.Processor.Dispatch),
	)

	metrics.MustRegister()

	ws, err := workspace.New(cfg.Storage.DataDir, cfg.Storage.MaxUploadBytes())
	if err != nil {
		return fmt.Errorf("failed to initialize workspace: %w", err)
	}

	// Initialize the job store
	var (
		store    storage.Repository
		dbClient *postgresql.Client
	)
	switch cfg.Database.Driver {
	case config.DriverMemory:
		store = storage.NewMemory()
		appLogger.Warn("Using in-memory job store, jobs are lost on restart")
	default:
		dbClient, err = postgresql.NewClient(cfg.Database.ClientConfig(), appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		metrics.RegisterDBStats(dbClient.Pool())
		store = storage.NewPostgres(dbClient, appLogger.Logger)
		appLogger.Info("Database connection established")
	}

	// Initialize the dispatcher
	var (
		dispatcher   processor.Dispatcher
		pool         *processor.Pool
		rabbitClient *rabbitmq.Client
	)
	switch cfg.Processor.Dispatch {
	case config.DispatchQueue:
		rabbitClient, err = rabbitmq.NewClient(cfg.RabbitMQ.ClientConfig(), appLogger.Logger)
		if err != nil {
			closeAll(appLogger.Logger, dbClient, nil)
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		dispatcher = worker.NewQueueDispatcher(rabbitClient)
		appLogger.Info("RabbitMQ connection established")
	default:
		pool = initPool(cfg, store, ws, appLogger.Logger)
		pool.Start()
		dispatcher = pool
	}

	// Initialize router
	r := initRouter(cfg, appLogger.Logger, store, ws, dispatcher)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
		slog.String("data_dir", ws.Root()),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-quit:
		appLogger.Info("Shutting down server...",
			slog.String("signal", sig.String()),
		)
	case serveErr = <-errChan:
		appLogger.Error("Server failed",
			slog.Any("error", serveErr),
		)
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
	}

	if pool != nil {
		if err := pool.Stop(ctx); err != nil {
			appLogger.Warn("Processor pool did not drain before the shutdown timeout",
				slog.Any("error", err),
			)
		}
	}

	closeAll(appLogger.Logger, dbClient, rabbitClient)

	appLogger.Info("Server shutdown complete")
	return serveErr
}

func closeAll(logger *slog.Logger, dbClient *postgresql.Client, rabbitClient *rabbitmq.Client) {
	if rabbitClient != nil {
		if err := rabbitClient.Close(); err != nil {
			logger.Warn("Failed to close RabbitMQ client", slog.Any("error", err))
		}
	}
	if dbClient != nil {
		if err := dbClient.Close(); err != nil {
			logger.Warn("Failed to close database client", slog.Any("error", err))
		}
	}
}

// initPool builds the in-process processor pool used by inline dispatch
func initPool(cfg *config.Config, store storage.Repository, ws *workspace.Workspace, logger *slog.Logger) *processor.Pool {
	runner := processor.NewExecRunner(cfg.Processor.ExecConfig())

	workerID, err := os.Hostname()
	if err != nil || workerID == "" {
		workerID = cfg.App.Name
	}

	invoker := processor.NewInvoker(processor.InvokerConfig{
		Store:    store,
		Runner:   runner,
		Logger:   logger,
		WorkerID: workerID,
		LogPath:  ws.LogPath,
	})

	return processor.NewPool(processor.PoolConfig{
		Invoker:     invoker,
		Logger:      logger,
		Concurrency: cfg.Processor.Concurrency,
		QueueSize:   cfg.Processor.QueueSize,
	})
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, store storage.Repository, ws *workspace.Workspace, dispatcher processor.Dispatcher) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize handler dependencies
	handlerDeps := &handler.Dependencies{
		Logger:    logger,
		Store:     store,
		Workspace: ws,
		Launcher:  processor.NewLauncher(store, dispatcher, logger),
		Resolver: resolver.New(resolver.Config{
			Store:      store,
			Workspace:  ws,
			Logger:     logger,
			PublicBase: cfg.Storage.PublicBase,
		}),
		Gateway:    assets.NewGateway(ws),
		PublicBase: cfg.Storage.PublicBase,
	}

	// Setup router
	return router.SetupRouter(handlerDeps, router.Options{
		ServiceName:        cfg.App.Name,
		AllowedOrigins:     cfg.Server.AllowedOrigins,
		MaxMultipartMemory: maxMultipartMemory,
	})
}
