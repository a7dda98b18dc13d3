// Package gateway exposes per-user tracker sessions to presentation code over
// HTTP and a websocket event stream.
package gateway

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/cuongbtq/genjob-notify/internal/tracker"
	"github.com/cuongbtq/genjob-notify/internal/tracker/domain"
	"github.com/cuongbtq/genjob-notify/internal/tracker/store"
	"github.com/cuongbtq/genjob-notify/internal/tracker/submit"
	"github.com/cuongbtq/genjob-notify/internal/tracker/visibility"
)

// UserBackend is the backend as seen by one user's session.
type UserBackend interface {
	store.Lister
	submit.NotificationCreator
	submit.Generator
	JobStatus(ctx context.Context, jobID string) (*domain.JobStatus, error)
}

// BackendFactory returns the backend scoped to a user.
type BackendFactory func(userID string) UserBackend

// Config holds gateway settings.
type Config struct {
	Tracker tracker.Config
	// SurfaceRoot is the element id prefix of the notification surface. Pointer
	// targets starting with it count as inside the surface.
	SurfaceRoot string
	Engines     *submit.Registry
}

// Option customizes the trackers built by the gateway.
type Option func(*tracker.Deps)

// Gateway owns the tracker sessions and the websocket clients attached to them.
type Gateway struct {
	cfg      Config
	backends BackendFactory
	logger   *slog.Logger
	opts     []Option
	registry *tracker.Registry

	mu      sync.Mutex
	mounts  map[string]func()
	clients map[string]map[*client]struct{}
}

// New creates a Gateway.
func New(cfg Config, backends BackendFactory, logger *slog.Logger, opts ...Option) *Gateway {
	if cfg.Engines == nil {
		cfg.Engines = submit.NewRegistry(submit.DefaultEngines()...)
	}
	g := &Gateway{
		cfg:      cfg,
		backends: backends,
		logger:   logger,
		opts:     opts,
		mounts:   make(map[string]func()),
		clients:  make(map[string]map[*client]struct{}),
	}
	g.registry = tracker.NewRegistry(g.newTracker, logger)
	return g
}

func (g *Gateway) newTracker(userID string) *tracker.Tracker {
	be := g.backends(userID)
	root := g.cfg.SurfaceRoot
	deps := tracker.Deps{
		Lister:    be,
		Creator:   be,
		Generator: be,
		Engines:   g.cfg.Engines,
		Surface: visibility.SurfaceFunc(func(target string) bool {
			return root != "" && strings.HasPrefix(target, root)
		}),
		Logger: g.logger.With(slog.String("user_id", userID)),
		OpenDetail: func(rec *domain.NotificationRecord) {
			g.broadcast(userID, message{Type: msgOpenDetail, Data: rec})
		},
	}
	for _, opt := range g.opts {
		opt(&deps)
	}
	return tracker.New(g.cfg.Tracker, deps)
}

// Mount starts the user's session if needed and keeps it alive until Unmount.
// It reports whether a new mount was registered.
func (g *Gateway) Mount(userID string) (*tracker.Tracker, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.mounts[userID]; ok {
		tr, _ := g.registry.Get(userID)
		return tr, false
	}
	tr, release := g.registry.Acquire(userID)
	g.mounts[userID] = release
	return tr, true
}

// Unmount drops the mount taken by Mount. It reports whether one existed.
func (g *Gateway) Unmount(userID string) bool {
	g.mu.Lock()
	release, ok := g.mounts[userID]
	delete(g.mounts, userID)
	g.mu.Unlock()

	if ok {
		release()
	}
	return ok
}

// Session returns the running tracker of a user.
func (g *Gateway) Session(userID string) (*tracker.Tracker, bool) {
	return g.registry.Get(userID)
}

// Shutdown closes every websocket client and stops all sessions.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	var all []*client
	for _, set := range g.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	g.mounts = make(map[string]func())
	g.mu.Unlock()

	for _, c := range all {
		c.close()
	}
	g.registry.StopAll()
}

func (g *Gateway) addClient(c *client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.clients[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		g.clients[c.userID] = set
	}
	set[c] = struct{}{}
}

func (g *Gateway) removeClient(c *client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	set := g.clients[c.userID]
	delete(set, c)
	if len(set) == 0 {
		delete(g.clients, c.userID)
	}
}

func (g *Gateway) broadcast(userID string, msg message) {
	g.mu.Lock()
	targets := make([]*client, 0, len(g.clients[userID]))
	for c := range g.clients[userID] {
		targets = append(targets, c)
	}
	g.mu.Unlock()

	for _, c := range targets {
		c.enqueue(msg)
	}
}
