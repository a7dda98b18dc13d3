package dto

type ListNotificationsRequest struct {
	Offset int `form:"offset" binding:"gte=0"`
	Limit  int `form:"limit" binding:"gte=0"`
}

type CreateNotificationRequest struct {
	UserID       string `json:"user_id"`
	Title        string `json:"title" binding:"required,max=200"`
	ThumbnailRef string `json:"thumbnail_ref"`
	JobCount     int    `json:"job_count" binding:"gte=0,lte=16"`
}

type CreateNotificationResponse struct {
	ID string `json:"id"`
}

type GenerateRequest struct {
	UserID         string         `json:"user_id" binding:"required"`
	Prompt         string         `json:"prompt" binding:"max=4000"`
	SourceImage    string         `json:"source_image"`
	NotificationID string         `json:"notification_id" binding:"required"`
	Params         map[string]any `json:"params"`
}

type JobStatusRequest struct {
	JobID string `form:"job_id" binding:"required"`
}

// GenerationMessage is the RabbitMQ payload consumed by worker-service
type GenerationMessage struct {
	JobID string `json:"job_id"`
}
