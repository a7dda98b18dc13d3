package notifier

import (
	"fmt"
	"log/slog"

	"github.com/cuongbtq/genjob-notify/internal/tracker/domain"
)

// EventKind identifies a user-facing notification event.
type EventKind string

const (
	EventNewJob       EventKind = "new_job"
	EventJobCompleted EventKind = "job_completed"
	EventJobFailed    EventKind = "job_failed"
)

// User-facing messages.
const (
	MessageNewJob          = "A new generation job has been registered: %s"
	MessageResultViewable  = "Your generation \"%s\" is ready. Open it to view the result."
	MessageCheckWorkList   = "Your generation \"%s\" has finished. Check your work list for the result."
	MessageGenericFailure  = "Generation failed. Please try again."
	messageFailureWithText = "Generation \"%s\" failed: %s"
)

// Event is one user-facing notification produced from a status transition.
type Event struct {
	Kind           EventKind `json:"kind"`
	NotificationID string    `json:"notification_id"`
	Title          string    `json:"title"`
	ResultRef      string    `json:"result_ref,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	Message        string    `json:"message"`
}

// Listener receives tracker events. Implementations must not block for long.
type Listener interface {
	OnNewNotification(ev Event)
	OnJobCompleted(notificationID, resultRef string, ev Event)
	OnJobFailed(notificationID, errorMessage string, ev Event)
	OnSnapshotChanged(records []*domain.NotificationRecord)
}

// Evaluate turns a changed list into events. visible reports whether the
// notification surface is open; it suppresses new-job events only.
func Evaluate(changes []domain.Change, visible bool) []Event {
	var events []Event
	for _, c := range changes {
		if c.New == nil {
			continue
		}
		if ev, ok := evaluate(c, visible); ok {
			events = append(events, ev)
		}
	}
	return events
}

func evaluate(c domain.Change, visible bool) (Event, bool) {
	rec := c.New
	var oldStatus domain.Status
	if c.Old != nil {
		oldStatus = c.Old.Status
	}

	switch {
	case rec.Status == domain.StatusCompleted && oldStatus != domain.StatusCompleted:
		ev := Event{
			Kind:           EventJobCompleted,
			NotificationID: rec.ID,
			Title:          rec.Title,
			ResultRef:      rec.ResultRef,
		}
		if rec.ResultRef != "" {
			ev.Message = fmt.Sprintf(MessageResultViewable, rec.Title)
		} else {
			ev.Message = fmt.Sprintf(MessageCheckWorkList, rec.Title)
		}
		return ev, true

	case rec.Status == domain.StatusFailed && oldStatus != domain.StatusFailed:
		ev := Event{
			Kind:           EventJobFailed,
			NotificationID: rec.ID,
			Title:          rec.Title,
			ErrorMessage:   rec.ErrorMessage,
			Message:        MessageGenericFailure,
		}
		if rec.ErrorMessage != "" {
			ev.Message = fmt.Sprintf(messageFailureWithText, rec.Title, rec.ErrorMessage)
		}
		return ev, true

	case c.IsNew() && !visible:
		return Event{
			Kind:           EventNewJob,
			NotificationID: rec.ID,
			Title:          rec.Title,
			Message:        fmt.Sprintf(MessageNewJob, rec.Title),
		}, true
	}

	return Event{}, false
}

// Notifier dispatches evaluated events to a Listener.
type Notifier struct {
	listener Listener
	logger   *slog.Logger
}

// New creates a Notifier.
func New(listener Listener, logger *slog.Logger) *Notifier {
	return &Notifier{listener: listener, logger: logger}
}

// Notify evaluates changes and delivers the resulting events. It returns the delivered events.
func (n *Notifier) Notify(changes []domain.Change, visible bool) []Event {
	events := Evaluate(changes, visible)
	for _, ev := range events {
		n.logger.Info("Job notification emitted",
			slog.String("kind", string(ev.Kind)),
			slog.String("notification_id", ev.NotificationID),
		)

		switch ev.Kind {
		case EventNewJob:
			n.listener.OnNewNotification(ev)
		case EventJobCompleted:
			n.listener.OnJobCompleted(ev.NotificationID, ev.ResultRef, ev)
		case EventJobFailed:
			n.listener.OnJobFailed(ev.NotificationID, ev.ErrorMessage, ev)
		}
	}
	return events
}

// SnapshotChanged forwards a changed record list to the listener.
func (n *Notifier) SnapshotChanged(records []*domain.NotificationRecord) {
	n.listener.OnSnapshotChanged(records)
}
