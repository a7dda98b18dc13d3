package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/genjob-notify/internal/worker/domain"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

type jobRow struct {
	JobID          string         `db:"job_id"`
	NotificationID string         `db:"notification_id"`
	Engine         string         `db:"engine"`
	Prompt         string         `db:"prompt"`
	SourceImage    sql.NullString `db:"source_image"`
	Params         []byte         `db:"params"`
	RetryCount     int            `db:"retry_count"`
	MaxRetries     int            `db:"max_retries"`
	TimeoutSeconds int            `db:"timeout_seconds"`
}

// ClaimJob moves a REQUESTED job and its notification to PROCESSING.
// Returns ErrJobAlreadyClaimed when the job is not claimable.
func (s *Storage) ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var row jobRow
	err = tx.GetContext(ctx, &row, `
		UPDATE generation_jobs
		SET status = $1,
		    worker_id = $2,
		    started_at = NOW(),
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND status = $4
		RETURNING job_id, notification_id, engine, prompt, source_image,
		          params, retry_count, max_retries, timeout_seconds
	`, domain.JobStatusProcessing, workerID, jobID, domain.JobStatusRequested)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to claim job - already claimed or not found",
				slog.String("job_id", jobID),
				slog.String("worker_id", workerID),
			)
			return nil, domain.ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE notifications
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, domain.JobStatusProcessing, row.NotificationID, domain.JobStatusRequested); err != nil {
		return nil, fmt.Errorf("failed to update notification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	s.logger.Info("Job claimed successfully",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
		slog.String("engine", row.Engine),
	)

	return &domain.Job{
		JobID:          row.JobID,
		NotificationID: row.NotificationID,
		Engine:         row.Engine,
		Prompt:         row.Prompt,
		SourceImage:    row.SourceImage.String,
		Params:         row.Params,
		Status:         domain.JobStatusProcessing,
		WorkerID:       workerID,
		RetryCount:     row.RetryCount,
		MaxRetries:     row.MaxRetries,
		TimeoutSeconds: row.TimeoutSeconds,
	}, nil
}

// CompleteJob records the result reference on the job and its notification
func (s *Storage) CompleteJob(ctx context.Context, job *domain.Job, resultRef string) error {
	return s.finish(ctx, job, domain.JobStatusCompleted, resultRef, "")
}

// FailJob records a terminal failure on the job and its notification
func (s *Storage) FailJob(ctx context.Context, job *domain.Job, errorMsg string) error {
	return s.finish(ctx, job, domain.JobStatusFailed, "", errorMsg)
}

func (s *Storage) finish(ctx context.Context, job *domain.Job, status, resultRef, errorMsg string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE generation_jobs
		SET status = $1,
		    result_ref = NULLIF($2::text, ''),
		    error_message = NULLIF($3::text, ''),
		    progress = CASE WHEN $1::text = 'COMPLETED' THEN 100 ELSE progress END,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $4
	`, status, resultRef, errorMsg, job.JobID); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE notifications
		SET status = $1,
		    result_ref = NULLIF($2::text, ''),
		    error_message = NULLIF($3::text, ''),
		    updated_at = NOW()
		WHERE id = $4
	`, status, resultRef, errorMsg, job.NotificationID); err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit status: %w", err)
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", job.JobID),
		slog.String("status", status),
	)
	return nil
}

// ReleaseJob returns a PROCESSING job to REQUESTED so a redelivery can claim
// it again. The notification stays PROCESSING.
func (s *Storage) ReleaseJob(ctx context.Context, jobID string, retryCount int, errorMsg string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE generation_jobs
		SET status = $1,
		    retry_count = $2,
		    error_message = NULLIF($3::text, ''),
		    worker_id = NULL,
		    updated_at = NOW()
		WHERE job_id = $4 AND status = $5
	`, domain.JobStatusRequested, retryCount, errorMsg, jobID, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to release job: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// UpdateJobHeartbeat updates the last_heartbeat_at timestamp for a running job
func (s *Storage) UpdateJobHeartbeat(ctx context.Context, jobID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE generation_jobs
		SET last_heartbeat_at = NOW()
		WHERE job_id = $1 AND status = $2
	`, jobID, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to update job heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Job heartbeat update - no rows affected (job may not be running)",
			slog.String("job_id", jobID),
		)
	}

	return nil
}

// UpdateProgress stores the executor's progress percentage
func (s *Storage) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE generation_jobs
		SET progress = $1, updated_at = NOW()
		WHERE job_id = $2 AND status = $3
	`, progress, jobID, domain.JobStatusProcessing); err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}
