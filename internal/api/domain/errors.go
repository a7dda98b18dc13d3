package domain

import "errors"

var (
	// ErrNotificationNotFound is returned when a notification id does not exist
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrJobNotFound is returned when a generation job id does not exist
	ErrJobNotFound = errors.New("job not found")
)
