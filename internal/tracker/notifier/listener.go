package notifier

import (
	"sync"

	"github.com/cuongbtq/genjob-notify/internal/tracker/domain"
)

// ListenerFuncs adapts optional callbacks to the Listener interface. Nil fields are skipped.
type ListenerFuncs struct {
	NewNotification func(ev Event)
	JobCompleted    func(notificationID, resultRef string, ev Event)
	JobFailed       func(notificationID, errorMessage string, ev Event)
	SnapshotChanged func(records []*domain.NotificationRecord)
}

func (f ListenerFuncs) OnNewNotification(ev Event) {
	if f.NewNotification != nil {
		f.NewNotification(ev)
	}
}

func (f ListenerFuncs) OnJobCompleted(notificationID, resultRef string, ev Event) {
	if f.JobCompleted != nil {
		f.JobCompleted(notificationID, resultRef, ev)
	}
}

func (f ListenerFuncs) OnJobFailed(notificationID, errorMessage string, ev Event) {
	if f.JobFailed != nil {
		f.JobFailed(notificationID, errorMessage, ev)
	}
}

func (f ListenerFuncs) OnSnapshotChanged(records []*domain.NotificationRecord) {
	if f.SnapshotChanged != nil {
		f.SnapshotChanged(records)
	}
}

// Broadcaster fans events out to a dynamic set of listeners.
type Broadcaster struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]Listener
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[uint64]Listener)}
}

// Add registers l and returns a function that removes it.
func (b *Broadcaster) Add(l Listener) (remove func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
		})
	}
}

// Len returns the number of registered listeners.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

func (b *Broadcaster) snapshot() []Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		out = append(out, l)
	}
	return out
}

func (b *Broadcaster) OnNewNotification(ev Event) {
	for _, l := range b.snapshot() {
		l.OnNewNotification(ev)
	}
}

func (b *Broadcaster) OnJobCompleted(notificationID, resultRef string, ev Event) {
	for _, l := range b.snapshot() {
		l.OnJobCompleted(notificationID, resultRef, ev)
	}
}

func (b *Broadcaster) OnJobFailed(notificationID, errorMessage string, ev Event) {
	for _, l := range b.snapshot() {
		l.OnJobFailed(notificationID, errorMessage, ev)
	}
}

func (b *Broadcaster) OnSnapshotChanged(records []*domain.NotificationRecord) {
	for _, l := range b.snapshot() {
		l.OnSnapshotChanged(records)
	}
}
