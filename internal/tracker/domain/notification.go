package domain

import "time"

// Status is the lifecycle state of a generation job as reported by its notification record.
type Status string

const (
	StatusRequested  Status = "REQUESTED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// InFlight reports whether a job in this status has not reached a terminal state yet.
func (s Status) InFlight() bool {
	return s == StatusRequested || s == StatusProcessing
}

// NotificationRecord is one job's visible state. Records are shared by pointer
// between snapshots and must never be mutated after construction.
type NotificationRecord struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Status       Status    `json:"status"`
	ResultRef    string    `json:"result_ref,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Normalize returns a copy of r with the status-dependent fields cleared
// where the status does not allow them.
func (r NotificationRecord) Normalize() NotificationRecord {
	if r.Status != StatusCompleted {
		r.ResultRef = ""
	}
	if r.Status != StatusFailed {
		r.ErrorMessage = ""
	}
	return r
}

// Viewable reports whether the record points at a finished artifact.
func (r *NotificationRecord) Viewable() bool {
	return r != nil && r.Status == StatusCompleted && r.ResultRef != ""
}

// Equal compares two records field by field.
func (r *NotificationRecord) Equal(o *NotificationRecord) bool {
	if r == o {
		return true
	}
	if r == nil || o == nil {
		return false
	}
	return r.ID == o.ID &&
		r.Title == o.Title &&
		r.Status == o.Status &&
		r.ResultRef == o.ResultRef &&
		r.ErrorMessage == o.ErrorMessage &&
		r.CreatedAt.Equal(o.CreatedAt) &&
		r.UpdatedAt.Equal(o.UpdatedAt)
}

// Snapshot is the full list of records as of one successful poll, in server order.
type Snapshot struct {
	Records   []*NotificationRecord
	FetchedAt time.Time
	// Seq is the sequence number of the refresh that produced this snapshot.
	Seq uint64
	// Loaded is false until the first successful poll.
	Loaded bool
}

// Find returns the record with the given id, or nil.
func (s Snapshot) Find(id string) *NotificationRecord {
	for _, r := range s.Records {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// HasInFlightJobs reports whether any record is still REQUESTED or PROCESSING.
func (s Snapshot) HasInFlightJobs() bool {
	for _, r := range s.Records {
		if r.Status.InFlight() {
			return true
		}
	}
	return false
}

// Change pairs the previous and current version of a record. Old is nil for brand-new records.
type Change struct {
	Old *NotificationRecord
	New *NotificationRecord
}

// IsNew reports whether the change introduces a record that was not known before.
func (c Change) IsNew() bool {
	return c.Old == nil
}

// TrackerState is the per-session state shared by the tracker components.
type TrackerState struct {
	Snapshot        Snapshot
	LastPollAt      time.Time
	HasInFlightJobs bool
	Visible         bool
}

// NotificationPage is one page of the notification-list API.
type NotificationPage struct {
	Items      []NotificationRecord `json:"items"`
	TotalCount int                  `json:"total_count"`
}
