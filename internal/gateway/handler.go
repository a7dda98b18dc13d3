package gateway

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/genjob-notify/internal/tracker"
	"github.com/cuongbtq/genjob-notify/internal/tracker/domain"
	"github.com/cuongbtq/genjob-notify/internal/tracker/visibility"
)

type selectRequest struct {
	ID string `json:"id" binding:"required"`
}

type sessionResponse struct {
	UserID          string                       `json:"user_id"`
	Records         []*domain.NotificationRecord `json:"records"`
	Loaded          bool                         `json:"loaded"`
	LastPollAt      string                       `json:"last_poll_at,omitempty"`
	HasInFlightJobs bool                         `json:"has_in_flight_jobs"`
	Visible         bool                         `json:"visible"`
	Polling         string                       `json:"polling"`
}

type submitResponse struct {
	NotificationID string `json:"notification_id"`
}

func stateResponse(userID string, tr *tracker.Tracker) sessionResponse {
	state := tr.State()
	resp := sessionResponse{
		UserID:          userID,
		Records:         state.Snapshot.Records,
		Loaded:          state.Snapshot.Loaded,
		HasInFlightJobs: state.HasInFlightJobs,
		Visible:         state.Visible,
		Polling:         tr.SchedulerState().String(),
	}
	if resp.Records == nil {
		resp.Records = []*domain.NotificationRecord{}
	}
	if !state.LastPollAt.IsZero() {
		resp.LastPollAt = state.LastPollAt.UTC().Format(time.RFC3339Nano)
	}
	return resp
}

// session resolves the :user_id tracker or answers 404.
func (g *Gateway) session(c *gin.Context) (string, *tracker.Tracker, bool) {
	userID := c.Param("user_id")
	tr, ok := g.Session(userID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session for user"})
		return userID, nil, false
	}
	return userID, tr, true
}

// errorStatus maps tracker errors to HTTP status codes.
func errorStatus(err error) int {
	var srvErr *domain.ServerError
	switch {
	case domain.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTrackerStopped):
		return http.StatusConflict
	case errors.As(err, &srvErr) && srvErr.StatusCode == http.StatusNotFound:
		return http.StatusNotFound
	case domain.IsNetworkError(err), domain.IsServerError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// MountSession handles POST /api/v1/sessions/:user_id
func (g *Gateway) MountSession(c *gin.Context) {
	userID := c.Param("user_id")
	tr, created := g.Mount(userID)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, stateResponse(userID, tr))
}

// UnmountSession handles DELETE /api/v1/sessions/:user_id
func (g *Gateway) UnmountSession(c *gin.Context) {
	if !g.Unmount(c.Param("user_id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session is not mounted"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetNotifications handles GET /api/v1/sessions/:user_id/notifications
func (g *Gateway) GetNotifications(c *gin.Context) {
	userID, tr, ok := g.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, stateResponse(userID, tr))
}

// Refresh handles POST /api/v1/sessions/:user_id/refresh
func (g *Gateway) Refresh(c *gin.Context) {
	userID, tr, ok := g.session(c)
	if !ok {
		return
	}

	if err := tr.Refresh(c.Request.Context()); err != nil {
		g.logger.Warn("Manual refresh failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stateResponse(userID, tr))
}

// Surface handles POST /api/v1/sessions/:user_id/surface/:input
func (g *Gateway) Surface(c *gin.Context) {
	userID, tr, ok := g.session(c)
	if !ok {
		return
	}

	switch c.Param("input") {
	case "open":
		tr.Open()
	case "close":
		tr.Dismiss()
	case "toggle":
		tr.Toggle()
	case "escape":
		tr.Events().KeyDown(visibility.KeyEvent{Key: visibility.KeyEscape})
	case "select":
		var req selectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
			return
		}
		if _, err := tr.Select(req.ID); err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown surface input"})
		return
	}

	c.JSON(http.StatusOK, stateResponse(userID, tr))
}

// SubmitJob handles POST /api/v1/sessions/:user_id/jobs
func (g *Gateway) SubmitJob(c *gin.Context) {
	userID, tr, ok := g.session(c)
	if !ok {
		return
	}

	var spec domain.JobSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	spec.UserID = userID

	id, err := tr.Submit(c.Request.Context(), spec)
	if err != nil {
		var orphan *domain.OrphanedJobError
		if errors.As(err, &orphan) {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":           err.Error(),
				"notification_id": orphan.NotificationID,
			})
			return
		}
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, submitResponse{NotificationID: id})
}

// JobStatus handles GET /api/v1/sessions/:user_id/jobs/:job_id/status
func (g *Gateway) JobStatus(c *gin.Context) {
	userID := c.Param("user_id")
	status, err := g.backends(userID).JobStatus(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// Engines handles GET /api/v1/engines
func (g *Gateway) Engines(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"engines": g.cfg.Engines.Names()})
}

// ServeWS handles GET /api/v1/sessions/:user_id/ws. The connection holds the
// session for as long as it is open.
func (g *Gateway) ServeWS(c *gin.Context) {
	userID := c.Param("user_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Warn("Websocket upgrade failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}

	tr, release := g.registry.Acquire(userID)
	cl := newClient(userID, conn, tr, g.logger.With(slog.String("user_id", userID)))
	unsubscribe := tr.Subscribe(cl.listener())
	g.addClient(cl)

	g.logger.Info("Websocket client connected", slog.String("user_id", userID))
	cl.enqueue(message{Type: msgSnapshot, Data: tr.Snapshot().Records})

	go cl.writePump()
	go func() {
		cl.readPump()
		unsubscribe()
		g.removeClient(cl)
		release()
		g.logger.Info("Websocket client disconnected", slog.String("user_id", userID))
	}()
}
