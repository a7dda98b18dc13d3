package tracker

import (
	"log/slog"
	"sync"
)

// Factory builds the tracker of one user session.
type Factory func(userID string) *Tracker

type session struct {
	tracker *Tracker
	holders int
}

// Registry keeps one running Tracker per user for as long as anyone holds it.
type Registry struct {
	factory Factory
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewRegistry creates an empty registry.
func NewRegistry(factory Factory, logger *slog.Logger) *Registry {
	return &Registry{
		factory:  factory,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// Acquire returns the user's tracker, creating and starting it on first use.
// The tracker is stopped when the last holder calls release.
func (r *Registry) Acquire(userID string) (*Tracker, func()) {
	r.mu.Lock()
	sess, ok := r.sessions[userID]
	if !ok {
		sess = &session{tracker: r.factory(userID)}
		r.sessions[userID] = sess
	}
	sess.holders++
	r.mu.Unlock()

	if !ok {
		sess.tracker.Start()
		r.logger.Info("Tracker session started", slog.String("user_id", userID))
	}

	var once sync.Once
	release := func() {
		once.Do(func() { r.release(userID, sess) })
	}
	return sess.tracker, release
}

func (r *Registry) release(userID string, sess *session) {
	r.mu.Lock()
	sess.holders--
	last := sess.holders <= 0
	if last && r.sessions[userID] == sess {
		delete(r.sessions, userID)
	}
	r.mu.Unlock()

	if last {
		sess.tracker.Stop()
		r.logger.Info("Tracker session stopped", slog.String("user_id", userID))
	}
}

// Get returns the running tracker of a user.
func (r *Registry) Get(userID string) (*Tracker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[userID]
	if !ok {
		return nil, false
	}
	return sess.tracker, true
}

// Len returns the number of running sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// StopAll stops every session regardless of holders.
func (r *Registry) StopAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	for userID, sess := range sessions {
		sess.tracker.Stop()
		r.logger.Info("Tracker session stopped", slog.String("user_id", userID))
	}
}
