package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/genjob-notify/internal/worker/domain"
)

// Storage is the job persistence used by the worker
type Storage interface {
	ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error)
	CompleteJob(ctx context.Context, job *domain.Job, resultRef string) error
	FailJob(ctx context.Context, job *domain.Job, errorMsg string) error
	ReleaseJob(ctx context.Context, jobID string, retryCount int, errorMsg string) error
	UpdateJobHeartbeat(ctx context.Context, jobID string) error
	UpdateProgress(ctx context.Context, jobID string, progress int) error
}

// Source delivers generation messages and settles them
type Source interface {
	Qos(prefetchCount int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
	Ack(deliveryTag uint64) error
	Nack(deliveryTag uint64, requeue bool) error
}

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	Storage           Storage
	Source            Source
	Executor          Executor
	WorkerID          string
	QueueName         string
	Concurrency       int
	PrefetchCount     int
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
}

// Worker represents the background job worker
type Worker struct {
	logger            *slog.Logger
	storage           Storage
	source            Source
	executor          Executor
	workerID          string
	queueName         string
	concurrency       int
	prefetchCount     int
	jobTimeout        time.Duration
	heartbeatInterval time.Duration

	jobsChan chan *domain.JobMessage
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}

	return &Worker{
		logger:            cfg.Logger,
		storage:           cfg.Storage,
		source:            cfg.Source,
		executor:          cfg.Executor,
		workerID:          cfg.WorkerID,
		queueName:         cfg.QueueName,
		concurrency:       concurrency,
		prefetchCount:     prefetch,
		jobTimeout:        cfg.JobTimeout,
		heartbeatInterval: heartbeat,
		jobsChan:          make(chan *domain.JobMessage, concurrency),
		stopChan:          make(chan struct{}),
	}
}

// Start consumes and processes jobs until ctx is canceled, Stop is called or
// the delivery channel closes. Interrupted jobs are released for redelivery
// and every worker goroutine has exited when Start returns.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	close(w.jobsChan)
	w.wg.Wait()
	w.drainPending()

	w.logger.Info("Worker stopped", slog.String("worker_id", w.workerID))
	return nil
}

// Stop signals Start to return
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")
		close(w.stopChan)
	})
}
