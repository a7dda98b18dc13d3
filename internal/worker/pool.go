package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/genjob-notify/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg, ok := <-w.jobsChan:
			if !ok {
				w.logger.Debug("Worker goroutine stopping - jobsChan closed",
					slog.String("worker_name", workerName),
				)
				return
			}

			w.logger.Info("Worker received job",
				slog.String("worker_name", workerName),
				slog.String("job_id", msg.JobID),
				slog.Uint64("delivery_tag", msg.DeliveryTag),
			)

			w.settle(msg, w.processJob(ctx, msg))
		}
	}
}

// drainPending requeues messages that were dispatched but never picked up
func (w *Worker) drainPending() {
	for msg := range w.jobsChan {
		w.nack(msg.DeliveryTag, msg.JobID, true)
	}
}

// settle ACKs or NACKs the delivery based on the processing result
func (w *Worker) settle(msg *domain.JobMessage, err error) {
	if err == nil {
		if ackErr := w.source.Ack(msg.DeliveryTag); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("job_id", msg.JobID),
				slog.String("error", ackErr.Error()),
			)
		}
		return
	}

	w.logger.Error("Job processing failed",
		slog.String("job_id", msg.JobID),
		slog.String("error", err.Error()),
	)
	w.nack(msg.DeliveryTag, msg.JobID, shouldRequeueJob(err))
}

// shouldRequeueJob determines if a job should be requeued based on the error type
func shouldRequeueJob(err error) bool {
	// Another worker owns the job
	if errors.Is(err, domain.ErrJobAlreadyClaimed) {
		return false
	}

	if errors.Is(err, domain.ErrMaxRetriesExceeded) {
		return false
	}

	if errors.Is(err, domain.ErrInvalidPayload) {
		return false
	}

	// Already recorded as FAILED
	if errors.Is(err, domain.ErrJobFailed) {
		return false
	}

	return domain.IsRetryable(err)
}
