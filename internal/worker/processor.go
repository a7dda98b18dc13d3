package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/genjob-notify/internal/worker/domain"
)

// processJob claims, executes and records a single job. The returned error
// drives the ACK/NACK decision.
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) error {
	// Step 1: Claim job (REQUESTED -> PROCESSING)
	job, err := w.storage.ClaimJob(ctx, msg.JobID, w.workerID)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyClaimed) {
			w.logger.Warn("Job already claimed, skipping",
				slog.String("job_id", msg.JobID),
			)
			return fmt.Errorf("job already claimed: %w", err)
		}
		// Database errors are treated as transient
		return domain.NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}

	// Background context for bookkeeping that must outlive a canceled job
	store := context.WithoutCancel(ctx)

	// Step 2: Validate params
	if len(job.Params) > 0 {
		var params map[string]any
		if err := json.Unmarshal(job.Params, &params); err != nil {
			w.fail(store, job, fmt.Sprintf("Invalid params JSON: %s", err.Error()))
			return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
	}

	// Step 3: Timeout from job.timeout_seconds, falling back to the worker default
	jobTimeout := w.jobTimeout
	if job.TimeoutSeconds > 0 {
		jobTimeout = time.Duration(job.TimeoutSeconds) * time.Second
	}
	jobCtx := ctx
	if jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, jobTimeout)
		defer cancel()
	}

	// Step 4: Heartbeat while running
	heartbeatDone := make(chan struct{})
	go w.sendJobHeartbeat(jobCtx, job.JobID, heartbeatDone)
	defer close(heartbeatDone)

	// Step 5: Execute
	resultRef, err := w.executor.Execute(jobCtx, job, func(progress int) {
		if err := w.storage.UpdateProgress(store, job.JobID, progress); err != nil {
			w.logger.Warn("Failed to update job progress",
				slog.String("job_id", job.JobID),
				slog.String("error", err.Error()),
			)
		}
	})

	// Step 6: Record the outcome
	if err != nil {
		return w.handleFailure(ctx, store, job, err)
	}

	if err := w.storage.CompleteJob(store, job, resultRef); err != nil {
		// The job stays PROCESSING and the message is not requeued
		w.logger.Error("Failed to update job status to COMPLETED",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to record completion: %w", err)
	}

	w.logger.Info("Job completed successfully",
		slog.String("job_id", job.JobID),
		slog.String("engine", job.Engine),
		slog.String("result_ref", resultRef),
	)
	return nil
}

// handleFailure decides between releasing the job for another attempt and
// failing it for good
func (w *Worker) handleFailure(ctx, store context.Context, job *domain.Job, execErr error) error {
	w.logger.Error("Job execution failed",
		slog.String("job_id", job.JobID),
		slog.String("engine", job.Engine),
		slog.String("error", execErr.Error()),
	)

	// Shutdown interrupted the job; it did not fail
	if ctx.Err() != nil {
		w.release(store, job, job.RetryCount, "")
		return domain.NewRetryableError(fmt.Errorf("job interrupted: %w", execErr))
	}

	retryable := domain.IsRetryable(execErr) || errors.Is(execErr, context.DeadlineExceeded)
	if !retryable {
		w.fail(store, job, execErr.Error())
		return fmt.Errorf("%w: %v", domain.ErrJobFailed, execErr)
	}

	if job.RetryCount < job.MaxRetries {
		w.logger.Info("Job will be retried",
			slog.String("job_id", job.JobID),
			slog.Int("retry_count", job.RetryCount+1),
			slog.Int("max_retries", job.MaxRetries),
		)
		if err := w.release(store, job, job.RetryCount+1, execErr.Error()); err != nil {
			return fmt.Errorf("failed to release job: %w", err)
		}
		return domain.NewRetryableError(fmt.Errorf("job execution failed: %w", execErr))
	}

	w.logger.Warn("Job exceeded max retries",
		slog.String("job_id", job.JobID),
		slog.Int("retry_count", job.RetryCount),
		slog.Int("max_retries", job.MaxRetries),
	)
	w.fail(store, job, execErr.Error())
	return fmt.Errorf("%w: %v", domain.ErrMaxRetriesExceeded, execErr)
}

func (w *Worker) fail(ctx context.Context, job *domain.Job, msg string) {
	if err := w.storage.FailJob(ctx, job, msg); err != nil {
		w.logger.Error("Failed to update job status to FAILED",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
	}
}

func (w *Worker) release(ctx context.Context, job *domain.Job, retryCount int, msg string) error {
	err := w.storage.ReleaseJob(ctx, job.JobID, retryCount, msg)
	if err != nil {
		w.logger.Error("Failed to release job",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
	}
	return err
}

// sendJobHeartbeat periodically updates the job's heartbeat timestamp
func (w *Worker) sendJobHeartbeat(ctx context.Context, jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := w.storage.UpdateJobHeartbeat(ctx, jobID); err != nil {
				w.logger.Warn("Failed to update job heartbeat",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
