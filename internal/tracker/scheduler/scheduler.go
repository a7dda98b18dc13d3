package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/genjob-notify/internal/tracker/clock"
)

// Trigger names the reason a refresh was requested.
type Trigger string

const (
	TriggerMount          Trigger = "mount"
	TriggerOpen           Trigger = "open"
	TriggerTick           Trigger = "tick"
	TriggerSubmit         Trigger = "submit"
	TriggerSubmitFollowUp Trigger = "submit_follow_up"
	TriggerManual         Trigger = "manual"
)

// State is the scheduler's polling state.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StatePolling:
		return "polling"
	case StateBackoff:
		return "backoff"
	default:
		return "idle"
	}
}

// Config holds the scheduler's timing rules.
type Config struct {
	// MinInterval is the floor between two polls; earlier requests are dropped.
	MinInterval time.Duration
	// PollInterval is the steady-state cadence while visible with in-flight jobs.
	PollInterval time.Duration
	// SubmitFollowUp is the delay of the second refresh after a job submission.
	SubmitFollowUp time.Duration
	// MaxBackoff caps the periodic interval after consecutive failures.
	MaxBackoff time.Duration
}

// DefaultConfig returns the production timing rules.
func DefaultConfig() Config {
	return Config{
		MinInterval:    2 * time.Second,
		PollInterval:   5 * time.Second,
		SubmitFollowUp: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// RefreshFunc performs one refresh. It is never called while the scheduler holds its lock.
type RefreshFunc func(ctx context.Context, trigger Trigger) error

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithExecutor replaces the function used to run refreshes requested from
// caller goroutines (open, submit). The default runs them on a new goroutine.
func WithExecutor(exec func(func())) Option {
	return func(s *Scheduler) {
		s.exec = exec
	}
}

// Scheduler decides when the notification store is refreshed.
type Scheduler struct {
	cfg     Config
	clock   clock.Clock
	refresh RefreshFunc
	logger  *slog.Logger
	exec    func(func())

	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	started    bool
	stopped    bool
	polled     bool
	lastPollAt time.Time
	visible    bool
	inFlight   bool
	failures   int
	tick       clock.Timer
	tickGen    uint64
	followSeq  uint64
	followUps  map[uint64]clock.Timer
}

// New creates a stopped scheduler. Call Start before requesting refreshes.
func New(cfg Config, clk clock.Clock, refresh RefreshFunc, logger *slog.Logger, opts ...Option) *Scheduler {
	if clk == nil {
		clk = clock.Real()
	}
	s := &Scheduler{
		cfg:       cfg,
		clock:     clk,
		refresh:   refresh,
		logger:    logger,
		exec:      func(f func()) { go f() },
		followUps: make(map[uint64]clock.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start enables the scheduler. Calling it twice or after Stop is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.started = true
	s.rescheduleLocked()

	s.logger.Debug("Polling scheduler started",
		slog.Duration("min_interval", s.cfg.MinInterval),
		slog.Duration("poll_interval", s.cfg.PollInterval),
	)
}

// Stop cancels every pending timer. No refresh is started after Stop returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	s.stopTickLocked()
	for id, t := range s.followUps {
		t.Stop()
		delete(s.followUps, id)
	}

	s.logger.Debug("Polling scheduler stopped")
}

// State returns the current polling state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// LastPollAt returns the time of the last admitted refresh, zero if none.
func (s *Scheduler) LastPollAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPollAt
}

// Request runs a background refresh on the caller's goroutine unless it falls
// inside the rate-limit window. Errors are logged and swallowed. It reports
// whether the refresh ran.
func (s *Scheduler) Request(trigger Trigger) bool {
	ctx, ok := s.admit(trigger, false)
	if !ok {
		return false
	}
	s.runBackground(ctx, trigger)
	return true
}

// RequestAsync hands Request to the executor.
func (s *Scheduler) RequestAsync(trigger Trigger) {
	s.exec(func() { s.Request(trigger) })
}

// ForceRefresh runs a user-initiated refresh and returns its error. A request
// inside the rate-limit window is dropped and returns nil.
func (s *Scheduler) ForceRefresh(ctx context.Context) error {
	if _, ok := s.admit(TriggerManual, false); !ok {
		return nil
	}
	err := s.refresh(ctx, TriggerManual)
	s.recordResult(err)
	return err
}

// SetVisible records the surface visibility. A false→true transition requests
// an immediate refresh.
func (s *Scheduler) SetVisible(visible bool) {
	s.mu.Lock()
	if s.stopped || s.visible == visible {
		s.mu.Unlock()
		return
	}
	becameVisible := visible && !s.visible
	s.visible = visible
	s.rescheduleLocked()
	s.mu.Unlock()

	if becameVisible {
		s.RequestAsync(TriggerOpen)
	}
}

// SetInFlight records whether any tracked job is still running.
func (s *Scheduler) SetInFlight(inFlight bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.inFlight == inFlight {
		return
	}
	s.inFlight = inFlight
	s.rescheduleLocked()
}

// JobSubmitted requests an immediate refresh and schedules a follow-up
// refresh. The follow-up is not subject to the rate-limit floor.
func (s *Scheduler) JobSubmitted() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.followSeq++
	id := s.followSeq
	s.followUps[id] = s.clock.AfterFunc(s.cfg.SubmitFollowUp, func() { s.fireFollowUp(id) })
	s.mu.Unlock()

	s.RequestAsync(TriggerSubmit)
}

func (s *Scheduler) fireFollowUp(id uint64) {
	s.mu.Lock()
	if _, ok := s.followUps[id]; !ok || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.followUps, id)
	s.mu.Unlock()

	ctx, ok := s.admit(TriggerSubmitFollowUp, true)
	if !ok {
		return
	}
	s.runBackground(ctx, TriggerSubmitFollowUp)
}

func (s *Scheduler) onTick(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.tickGen {
		s.mu.Unlock()
		return
	}
	s.tick = nil
	s.mu.Unlock()

	if ctx, ok := s.admit(TriggerTick, false); ok {
		s.runBackground(ctx, TriggerTick)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped && gen == s.tickGen {
		s.rescheduleLocked()
	}
}

// admit applies the rate-limit floor and stamps lastPollAt.
func (s *Scheduler) admit(trigger Trigger, force bool) (context.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopped {
		return nil, false
	}

	now := s.clock.Now()
	if !force && s.polled && now.Sub(s.lastPollAt) < s.cfg.MinInterval {
		s.logger.Debug("Refresh request dropped by rate limit",
			slog.String("trigger", string(trigger)),
			slog.Duration("since_last_poll", now.Sub(s.lastPollAt)),
		)
		return nil, false
	}

	s.polled = true
	s.lastPollAt = now
	return s.ctx, true
}

func (s *Scheduler) runBackground(ctx context.Context, trigger Trigger) {
	err := s.refresh(ctx, trigger)
	s.recordResult(err)
	if err != nil {
		s.logger.Warn("Background refresh failed",
			slog.String("trigger", string(trigger)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Scheduler) recordResult(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.failures++
		return
	}
	s.failures = 0
}

func (s *Scheduler) stateLocked() State {
	if !s.started || s.stopped || !s.visible || !s.inFlight {
		return StateIdle
	}
	if s.failures > 0 {
		return StateBackoff
	}
	return StatePolling
}

func (s *Scheduler) intervalLocked() time.Duration {
	interval := s.cfg.PollInterval
	for i := 0; i < s.failures && interval < s.cfg.MaxBackoff; i++ {
		interval *= 2
	}
	if s.cfg.MaxBackoff > 0 && interval > s.cfg.MaxBackoff {
		interval = s.cfg.MaxBackoff
	}
	return interval
}

// rescheduleLocked replaces the periodic timer to match the current state.
func (s *Scheduler) rescheduleLocked() {
	s.stopTickLocked()
	if s.stateLocked() == StateIdle {
		return
	}
	gen := s.tickGen
	s.tick = s.clock.AfterFunc(s.intervalLocked(), func() { s.onTick(gen) })
}

func (s *Scheduler) stopTickLocked() {
	s.tickGen++
	if s.tick != nil {
		s.tick.Stop()
		s.tick = nil
	}
}
