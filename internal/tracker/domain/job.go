package domain

import "time"

// JobSpec describes a generation job requested by the user.
type JobSpec struct {
	UserID       string         `json:"user_id" validate:"required"`
	Title        string         `json:"title" validate:"required,max=200"`
	Engine       string         `json:"engine" validate:"required"`
	Prompt       string         `json:"prompt" validate:"max=4000"`
	SourceImage  string         `json:"source_image,omitempty"`
	ThumbnailRef string         `json:"thumbnail_ref,omitempty"`
	JobCount     int            `json:"job_count,omitempty" validate:"gte=0,lte=16"`
	Params       map[string]any `json:"params,omitempty"`
}

// CreateNotificationRequest is the body of the notification-create API.
type CreateNotificationRequest struct {
	UserID       string `json:"user_id"`
	Title        string `json:"title"`
	ThumbnailRef string `json:"thumbnail_ref,omitempty"`
	JobCount     int    `json:"job_count,omitempty"`
}

// GenerationRequest is the body sent to a generation engine endpoint.
type GenerationRequest struct {
	UserID         string         `json:"user_id"`
	Prompt         string         `json:"prompt"`
	SourceImage    string         `json:"source_image,omitempty"`
	NotificationID string         `json:"notification_id"`
	Params         map[string]any `json:"params,omitempty"`
}

// GenerationResponse is returned by a generation engine endpoint.
type GenerationResponse struct {
	JobID   string `json:"job_id"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// JobStatus is the direct job-state view returned by the job status API.
type JobStatus struct {
	JobID     string    `json:"job_id"`
	Status    Status    `json:"status"`
	Progress  *int      `json:"progress,omitempty"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
