package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTrackerStopped is returned by operations attempted after teardown.
	ErrTrackerStopped = errors.New("tracker stopped")

	// ErrNotificationNotFound is returned when a record id is not in the current snapshot.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrUnknownEngine is returned when a job names an engine that is not registered.
	ErrUnknownEngine = errors.New("unknown generation engine")
)

// NetworkError wraps a transport-level failure talking to the backend.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerError is a non-2xx response from one of the backend APIs.
type ServerError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error during %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("server error during %s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

// ValidationError reports a malformed job spec.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid job spec: " + e.Reason
	}
	return fmt.Sprintf("invalid job spec: %s: %s", e.Field, e.Reason)
}

// OrphanedJobError is returned when the notification record was created but the
// generation request failed afterwards. The record stays at REQUESTED.
type OrphanedJobError struct {
	NotificationID string
	Err            error
}

func (e *OrphanedJobError) Error() string {
	return fmt.Sprintf("notification %s created but generation request failed: %v", e.NotificationID, e.Err)
}

func (e *OrphanedJobError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err (or any error in its chain) is a NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsServerError reports whether err (or any error in its chain) is a ServerError.
func IsServerError(err error) bool {
	var srvErr *ServerError
	return errors.As(err, &srvErr)
}

// IsValidationError reports whether err (or any error in its chain) is a ValidationError.
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}
