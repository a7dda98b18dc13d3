package domain

// Job status constants, shared with the notifications table
const (
	JobStatusRequested  = "REQUESTED"
	JobStatusProcessing = "PROCESSING"
	JobStatusCompleted  = "COMPLETED"
	JobStatusFailed     = "FAILED"
)
