// Package tracker composes the notification store, polling scheduler,
// transition notifier, visibility controller and submission facade into one
// per-session tracker.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cuongbtq/genjob-notify/internal/tracker/clock"
	"github.com/cuongbtq/genjob-notify/internal/tracker/domain"
	"github.com/cuongbtq/genjob-notify/internal/tracker/notifier"
	"github.com/cuongbtq/genjob-notify/internal/tracker/scheduler"
	"github.com/cuongbtq/genjob-notify/internal/tracker/store"
	"github.com/cuongbtq/genjob-notify/internal/tracker/submit"
	"github.com/cuongbtq/genjob-notify/internal/tracker/visibility"
)

// DefaultPageSize is the number of notifications fetched per poll.
const DefaultPageSize = 20

// Config holds tracker settings.
type Config struct {
	Scheduler scheduler.Config
	PageSize  int
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		Scheduler: scheduler.DefaultConfig(),
		PageSize:  DefaultPageSize,
	}
}

// Deps are the collaborators of a Tracker.
type Deps struct {
	Lister    store.Lister
	Creator   submit.NotificationCreator
	Generator submit.Generator
	Engines   *submit.Registry
	Surface   visibility.Surface
	Clock     clock.Clock
	Logger    *slog.Logger
	// OpenDetail is called when a viewable record is selected from the list.
	OpenDetail       func(rec *domain.NotificationRecord)
	SchedulerOptions []scheduler.Option
}

// Tracker tracks the generation jobs of one session.
type Tracker struct {
	cfg    Config
	logger *slog.Logger

	store      *store.Store
	scheduler  *scheduler.Scheduler
	notifier   *notifier.Notifier
	visibility *visibility.Controller
	facade     *submit.Facade
	listeners  *notifier.Broadcaster
	events     *visibility.EventBus

	mu      sync.Mutex
	started bool
	stopped bool
}

// New wires a Tracker. It does nothing until Start is called.
func New(cfg Config, deps Deps) *Tracker {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	if deps.Surface == nil {
		deps.Surface = visibility.SurfaceFunc(func(string) bool { return false })
	}

	t := &Tracker{
		cfg:       cfg,
		logger:    deps.Logger,
		listeners: notifier.NewBroadcaster(),
		events:    visibility.NewEventBus(),
	}
	t.store = store.New(deps.Lister, clk, deps.Logger)
	t.scheduler = scheduler.New(cfg.Scheduler, clk, t.refresh, deps.Logger, deps.SchedulerOptions...)
	t.notifier = notifier.New(t.listeners, deps.Logger)
	t.visibility = visibility.NewController(t.events, deps.Surface, visibility.Hooks{
		VisibilityChanged: t.scheduler.SetVisible,
		OpenDetail:        deps.OpenDetail,
	}, deps.Logger)
	t.facade = submit.NewFacade(deps.Creator, deps.Generator, t, deps.Engines, clk, deps.Logger)
	return t
}

// Subscribe registers a listener for tracker events.
func (t *Tracker) Subscribe(l notifier.Listener) (unsubscribe func()) {
	return t.listeners.Add(l)
}

// Start enables polling and requests the initial load.
func (t *Tracker) Start() {
	t.mu.Lock()
	if t.started || t.stopped {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()

	t.scheduler.Start()
	t.scheduler.RequestAsync(scheduler.TriggerMount)
}

// Stop tears the tracker down. Pending timers are cancelled and results of
// refreshes still in flight are dropped.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.mu.Unlock()

	t.scheduler.Stop()
	t.visibility.Shutdown()
}

func (t *Tracker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Open opens the notification surface.
func (t *Tracker) Open() visibility.State {
	if t.isStopped() {
		return visibility.StateClosed
	}
	return t.visibility.Open()
}

// Dismiss closes the notification surface.
func (t *Tracker) Dismiss() visibility.State {
	return t.visibility.Close()
}

// Toggle flips the notification surface.
func (t *Tracker) Toggle() visibility.State {
	if t.isStopped() {
		return visibility.StateClosed
	}
	return t.visibility.Toggle()
}

// Select activates the record with the given id.
func (t *Tracker) Select(notificationID string) (visibility.State, error) {
	rec := t.store.Snapshot().Find(notificationID)
	if rec == nil {
		return t.visibility.State(), fmt.Errorf("%w: %s", domain.ErrNotificationNotFound, notificationID)
	}
	return t.visibility.Select(rec), nil
}

// Visibility exposes the surface controller.
func (t *Tracker) Visibility() *visibility.Controller {
	return t.visibility
}

// Events is the input bus for pointer and key events of the session. Listeners
// are attached only while the surface is open.
func (t *Tracker) Events() *visibility.EventBus {
	return t.events
}

// Engines exposes the engine registry used for submissions.
func (t *Tracker) Engines() *submit.Registry {
	return t.facade.Engines()
}

// Refresh is a user-initiated refresh; errors are returned to the caller.
// Requests inside the rate-limit window are dropped silently.
func (t *Tracker) Refresh(ctx context.Context) error {
	if t.isStopped() {
		return domain.ErrTrackerStopped
	}
	return t.scheduler.ForceRefresh(ctx)
}

// Submit starts a new generation job. See submit.Facade.Submit.
func (t *Tracker) Submit(ctx context.Context, spec domain.JobSpec) (string, error) {
	if t.isStopped() {
		return "", domain.ErrTrackerStopped
	}
	return t.facade.Submit(ctx, spec)
}

// Snapshot returns the current notification snapshot.
func (t *Tracker) Snapshot() domain.Snapshot {
	return t.store.Snapshot()
}

// State returns the tracker state.
func (t *Tracker) State() domain.TrackerState {
	snap := t.store.Snapshot()
	return domain.TrackerState{
		Snapshot:        snap,
		LastPollAt:      t.scheduler.LastPollAt(),
		HasInFlightJobs: snap.HasInFlightJobs(),
		Visible:         t.visibility.Visible(),
	}
}

// SchedulerState returns the polling state.
func (t *Tracker) SchedulerState() scheduler.State {
	return t.scheduler.State()
}

// Track implements submit.Tracker.
func (t *Tracker) Track(rec domain.NotificationRecord) {
	if t.isStopped() {
		return
	}
	snap := t.store.Track(rec)
	t.notifier.SnapshotChanged(snap.Records)
	t.scheduler.SetInFlight(snap.HasInFlightJobs())
}

// JobSubmitted implements submit.Tracker.
func (t *Tracker) JobSubmitted() {
	t.scheduler.JobSubmitted()
}

func (t *Tracker) refresh(ctx context.Context, trigger scheduler.Trigger) error {
	if t.isStopped() {
		return nil
	}

	result, err := t.store.Refresh(ctx, 0, t.cfg.PageSize)
	if err != nil {
		return fmt.Errorf("refresh (%s): %w", trigger, err)
	}
	if result.Stale || t.isStopped() {
		return nil
	}

	t.notifier.Notify(result.Changed, t.visibility.Visible())
	if result.Modified {
		t.notifier.SnapshotChanged(result.New.Records)
	}
	t.scheduler.SetInFlight(result.New.HasInFlightJobs())

	t.logger.Debug("Notifications refreshed",
		slog.String("trigger", string(trigger)),
		slog.Int("records", len(result.New.Records)),
		slog.Int("changed", len(result.Changed)),
	)
	return nil
}
