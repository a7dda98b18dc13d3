package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/genjob-notify/internal/api/domain"
	"github.com/cuongbtq/genjob-notify/internal/api/model"
	"github.com/cuongbtq/genjob-notify/shared/postgresql"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

const notificationColumns = `
	id, user_id, title, status, result_ref, error_message,
	thumbnail_ref, job_count, created_at, updated_at`

const jobColumns = `
	job_id, notification_id, user_id, engine, prompt, source_image,
	params, status, progress, result_ref, error_message,
	max_retries, timeout_seconds, created_at, updated_at`

// ListNotifications returns one page of the user's notifications and the
// total number they own
func (s *Storage) ListNotifications(ctx context.Context, userID string, offset, limit int) ([]model.Notification, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	// id breaks ties between rows created in the same instant
	query := `SELECT` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	notifications := []model.Notification{}
	if err := s.db.SelectContext(ctx, &notifications, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}

	return notifications, total, nil
}

func (s *Storage) CreateNotification(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (
			id, user_id, title, status, thumbnail_ref,
			job_count, created_at, updated_at
		) VALUES (
			:id, :user_id, :title, :status, :thumbnail_ref,
			:job_count, :created_at, :updated_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *Storage) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	var n model.Notification
	query := `SELECT` + notificationColumns + ` FROM notifications WHERE id = $1`

	if err := s.db.GetContext(ctx, &n, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &n, nil
}

func (s *Storage) CreateJob(ctx context.Context, job *model.GenerationJob) error {
	query := `
		INSERT INTO generation_jobs (
			job_id, notification_id, user_id, engine, prompt,
			source_image, params, status, max_retries,
			timeout_seconds, created_at, updated_at
		) VALUES (
			:job_id, :notification_id, :user_id, :engine, :prompt,
			:source_image, :params, :status, :max_retries,
			:timeout_seconds, :created_at, :updated_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (s *Storage) GetJob(ctx context.Context, jobID string) (*model.GenerationJob, error) {
	var job model.GenerationJob
	query := `SELECT` + jobColumns + ` FROM generation_jobs WHERE job_id = $1`

	if err := s.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// FailJob marks a job and its notification as FAILED in one transaction
func (s *Storage) FailJob(ctx context.Context, jobID, errorMessage string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var notificationID string
	err = tx.GetContext(ctx, &notificationID, `
		UPDATE generation_jobs
		SET status = 'FAILED', error_message = $2, updated_at = NOW()
		WHERE job_id = $1
		RETURNING notification_id
	`, jobID, errorMessage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrJobNotFound
		}
		return fmt.Errorf("failed to fail job: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE notifications
		SET status = 'FAILED', error_message = $2, updated_at = NOW()
		WHERE id = $1
	`, notificationID, errorMessage); err != nil {
		return fmt.Errorf("failed to fail notification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
