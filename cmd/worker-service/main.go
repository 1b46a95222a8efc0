package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tdhoang/clipsvc/internal/config"
	"github.com/tdhoang/clipsvc/internal/worker"
	"github.com/tdhoang/clipsvc/internal/worker/pipeline"
	"github.com/tdhoang/clipsvc/internal/worker/storage"
	"github.com/tdhoang/clipsvc/shared/logger"
	"github.com/tdhoang/clipsvc/shared/objectstore"
	"github.com/tdhoang/clipsvc/shared/postgresql"
	"github.com/tdhoang/clipsvc/shared/rabbitmq"
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

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	storeCtx, storeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	objectStore, err := objectstore.NewClient(storeCtx, &objectstore.Config{
		Endpoint:      cfg.Storage.Endpoint,
		AccessKey:     cfg.Storage.AccessKey,
		SecretKey:     cfg.Storage.SecretKey,
		Bucket:        cfg.Storage.Bucket,
		UseSSL:        cfg.Storage.UseSSL,
		Region:        cfg.Storage.Region,
		PresignExpiry: cfg.Storage.PresignExpiry,
	}, appLogger.Logger)
	storeCancel()
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	workerInstance, err := buildWorker(cfg, appLogger.Logger, dbClient, rabbitClient, objectStore)
	if err != nil {
		return fmt.Errorf("failed to build worker: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	if dbClient != nil {
		dbClient.Close()
	}
	if rabbitClient != nil {
		rabbitClient.Close()
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// buildWorker assembles the pipeline stages and the worker around them.
func buildWorker(cfg *config.Config, log *slog.Logger, dbClient *postgresql.Client, rabbitClient *rabbitmq.Client, objectStore *objectstore.Client) (*worker.Worker, error) {
	extraArgs, err := cfg.Clip.ParseExtraArgs()
	if err != nil {
		return nil, err
	}
	maxArtifact, err := cfg.Clip.ParseMaxArtifactSize()
	if err != nil {
		return nil, err
	}
	minFreeDisk, err := cfg.Clip.ParseMinFreeDisk()
	if err != nil {
		return nil, err
	}
	minFreeMem, err := cfg.Clip.ParseMinFreeMem()
	if err != nil {
		return nil, err
	}

	runner := pipeline.ExecRunner{}
	prober := pipeline.NewFFProber(cfg.Clip.ProberBin, runner)

	downloader := pipeline.NewDownloader(&pipeline.DownloaderConfig{
		Binary:          cfg.Clip.ExtractorBin,
		MaxArtifactSize: int64(maxArtifact),
		ExtraArgs:       extraArgs,
		MinFreeDisk:     minFreeDisk,
		MinFreeMem:      minFreeMem,
	}, runner, log)

	trimmer := pipeline.NewTrimmer(&pipeline.TrimmerConfig{
		Binary:         cfg.Clip.TranscoderBin,
		DriftTolerance: cfg.Clip.DriftTolerance,
	}, runner, prober, log)

	uploader := pipeline.NewUploader(objectStore, log)

	store := storage.NewStorage(dbClient.GetDB(), cfg.Clip.Retention, log)

	clipPipeline := pipeline.New(&pipeline.Config{
		Downloader:     downloader,
		Prober:         prober,
		Trimmer:        trimmer,
		Uploader:       uploader,
		Status:         store,
		WorkRoot:       cfg.Clip.WorkDir,
		CookieFile:     cfg.Clip.CookieFile,
		AttemptTimeout: cfg.Clip.AttemptTimeout,
		Logger:         log,
	})

	return worker.NewWorker(&worker.Config{
		Logger:          log,
		RabbitClient:    rabbitClient,
		Storage:         store,
		Pipeline:        clipPipeline,
		ObjectStore:     objectStore,
		Concurrency:     cfg.Worker.Concurrency,
		JobTimeout:      cfg.Worker.JobTimeout,
		JanitorInterval: cfg.Worker.JanitorInterval,
		PrefetchCount:   cfg.RabbitMQ.Consumer.PrefetchCount,
	}), nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
