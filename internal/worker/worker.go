package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/tdhoang/clipsvc/internal/clip"
	"github.com/tdhoang/clipsvc/shared/rabbitmq"
)

// JobRunner drives one claimed job to a terminal state.
type JobRunner interface {
	Run(ctx context.Context, job *clip.Job) error
}

// JobStore is the state-store surface the worker core needs; the pipeline
// holds its own narrower status-writing view.
type JobStore interface {
	ClaimJob(ctx context.Context, jobID, workerID string) (*clip.Job, error)
	ReleaseJob(ctx context.Context, jobID string) error
	PurgeExpired(ctx context.Context) ([]string, error)
}

// ObjectRemover deletes stored clips; used by the retention janitor.
type ObjectRemover interface {
	Remove(ctx context.Context, key string) error
}

// jobMessage carries a dispatched job id together with the delivery tag
// needed to ack or nack it after processing.
type jobMessage struct {
	JobID       string
	DeliveryTag uint64
}

// retryableError wraps transient pre-claim failures that should trigger a
// requeue. Anything past a successful claim is terminal and never requeued.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return "retryable error: " + e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// Config holds worker configuration
type Config struct {
	Logger          *slog.Logger
	RabbitClient    *rabbitmq.Client
	Storage         JobStore
	Pipeline        JobRunner
	ObjectStore     ObjectRemover
	Concurrency     int
	JobTimeout      time.Duration
	JanitorInterval time.Duration
	PrefetchCount   int
}

// Worker consumes clip job ids from RabbitMQ and processes them through
// the pipeline with a fixed-size goroutine pool.
type Worker struct {
	logger          *slog.Logger
	rabbitClient    *rabbitmq.Client
	storage         JobStore
	pipeline        JobRunner
	objectStore     ObjectRemover
	concurrency     int
	jobTimeout      time.Duration
	janitorInterval time.Duration
	prefetchCount   int
	workerID        string
	jobsChan        chan *jobMessage
	wg              sync.WaitGroup
	stopChan        chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = cfg.Concurrency
	}

	return &Worker{
		logger:          cfg.Logger,
		rabbitClient:    cfg.RabbitClient,
		storage:         cfg.Storage,
		pipeline:        cfg.Pipeline,
		objectStore:     cfg.ObjectStore,
		concurrency:     cfg.Concurrency,
		jobTimeout:      cfg.JobTimeout,
		janitorInterval: cfg.JanitorInterval,
		prefetchCount:   prefetch,
		workerID:        fmt.Sprintf("clipworker-%s", shortuuid.New()[:8]),
		jobsChan:        make(chan *jobMessage),
		stopChan:        make(chan struct{}),
	}
}

// Start begins consuming and processing jobs. It blocks until ctx is
// canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to setup consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.startMessageDispatcher(ctx, deliveries)
	}()

	if w.janitorInterval > 0 {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.janitorLoop(ctx)
		}()
	}

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...",
		slog.String("worker_id", w.workerID),
	)
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
