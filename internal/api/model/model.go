package model

import (
	"database/sql"
	"time"
)

type Notification struct {
	ID           string         `db:"id"`
	UserID       string         `db:"user_id"`
	Title        string         `db:"title"`
	Status       string         `db:"status"`
	ResultRef    sql.NullString `db:"result_ref"`
	ErrorMessage sql.NullString `db:"error_message"`
	ThumbnailRef sql.NullString `db:"thumbnail_ref"`
	JobCount     int            `db:"job_count"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

type GenerationJob struct {
	JobID          string         `db:"job_id"`
	NotificationID string         `db:"notification_id"`
	UserID         string         `db:"user_id"`
	Engine         string         `db:"engine"`
	Prompt         string         `db:"prompt"`
	SourceImage    sql.NullString `db:"source_image"`
	Params         []byte         `db:"params"`
	Status         string         `db:"status"`
	Progress       sql.NullInt32  `db:"progress"`
	ResultRef      sql.NullString `db:"result_ref"`
	ErrorMessage   sql.NullString `db:"error_message"`
	MaxRetries     int            `db:"max_retries"`
	TimeoutSeconds int            `db:"timeout_seconds"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}
