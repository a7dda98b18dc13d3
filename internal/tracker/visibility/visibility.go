package visibility

import (
	"log/slog"
	"sync"

	"github.com/cuongbtq/genjob-notify/internal/tracker/domain"
)

// State of the notification surface.
type State int

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// Input is an event that may change the surface state.
type Input string

const (
	InputOpen               Input = "open"
	InputClose              Input = "close"
	InputToggle             Input = "toggle"
	InputOutsidePointerDown Input = "outside_pointer_down"
	InputEscape             Input = "escape"
	InputSelectViewable     Input = "select_viewable"
	InputSelectOther        Input = "select_other"
)

// Next is the surface state machine. It is total: every input has a defined next state.
func Next(state State, input Input) State {
	switch input {
	case InputOpen:
		return StateOpen
	case InputToggle:
		if state == StateOpen {
			return StateClosed
		}
		return StateOpen
	case InputClose, InputOutsidePointerDown, InputEscape, InputSelectViewable:
		return StateClosed
	default:
		return state
	}
}

// Surface reports whether a pointer target lies inside the surface's bounding element.
type Surface interface {
	Contains(target string) bool
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(target string) bool

func (f SurfaceFunc) Contains(target string) bool {
	return f(target)
}

// Hooks are called after the state changed, outside the state lock.
// VisibilityChanged calls are delivered in the order the state changed.
type Hooks struct {
	// VisibilityChanged receives the new visibility.
	VisibilityChanged func(visible bool)
	// OpenDetail is called when a viewable record was selected.
	OpenDetail func(rec *domain.NotificationRecord)
}

// Controller owns the open/closed state and the implicit close rules.
type Controller struct {
	source  EventSource
	surface Surface
	hooks   Hooks
	logger  *slog.Logger

	// dispatchMu orders each state change with its VisibilityChanged call.
	dispatchMu sync.Mutex
	mu         sync.Mutex
	state      State
	detachers  []func()
}

// NewController creates a closed controller.
func NewController(source EventSource, surface Surface, hooks Hooks, logger *slog.Logger) *Controller {
	return &Controller{
		source:  source,
		surface: surface,
		hooks:   hooks,
		logger:  logger,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Visible reports whether the surface is open.
func (c *Controller) Visible() bool {
	return c.State() == StateOpen
}

// Open opens the surface.
func (c *Controller) Open() State {
	return c.Dispatch(InputOpen)
}

// Close closes the surface.
func (c *Controller) Close() State {
	return c.Dispatch(InputClose)
}

// Toggle flips the surface state.
func (c *Controller) Toggle() State {
	return c.Dispatch(InputToggle)
}

// Select activates a record from the list. A completed record with a result
// closes the surface and opens its detail view; anything else keeps the state.
func (c *Controller) Select(rec *domain.NotificationRecord) State {
	if rec.Viewable() && c.Visible() {
		state := c.Dispatch(InputSelectViewable)
		if c.hooks.OpenDetail != nil {
			c.hooks.OpenDetail(rec)
		}
		return state
	}
	return c.Dispatch(InputSelectOther)
}

// Dispatch applies input to the state machine.
func (c *Controller) Dispatch(input Input) State {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.mu.Lock()
	prev := c.state
	next := Next(prev, input)
	c.state = next

	if prev != next {
		if next == StateOpen {
			c.attachLocked()
		} else {
			c.detachLocked()
		}
	}
	c.mu.Unlock()

	if prev != next {
		c.logger.Debug("Notification surface state changed",
			slog.String("from", prev.String()),
			slog.String("to", next.String()),
			slog.String("input", string(input)),
		)
		if c.hooks.VisibilityChanged != nil {
			c.hooks.VisibilityChanged(next == StateOpen)
		}
	}
	return next
}

// Shutdown detaches any listeners without firing hooks.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detachLocked()
	c.state = StateClosed
}

func (c *Controller) attachLocked() {
	if c.source == nil {
		return
	}
	c.detachers = append(c.detachers,
		c.source.OnPointerDown(c.handlePointerDown),
		c.source.OnKeyDown(c.handleKeyDown),
	)
}

func (c *Controller) detachLocked() {
	for _, detach := range c.detachers {
		detach()
	}
	c.detachers = nil
}

func (c *Controller) handlePointerDown(ev PointerEvent) {
	if c.surface != nil && c.surface.Contains(ev.Target) {
		return
	}
	c.Dispatch(InputOutsidePointerDown)
}

func (c *Controller) handleKeyDown(ev KeyEvent) {
	if ev.Key == KeyEscape {
		c.Dispatch(InputEscape)
	}
}
