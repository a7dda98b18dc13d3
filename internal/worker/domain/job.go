package domain

// Job represents a generation job claimed by a worker
type Job struct {
	JobID          string
	NotificationID string
	Engine         string
	Prompt         string
	SourceImage    string
	Params         []byte // JSON object
	Status         string
	WorkerID       string
	RetryCount     int
	MaxRetries     int
	TimeoutSeconds int
}

// JobMessage represents a job message from RabbitMQ
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}
