package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/cuongbtq/genjob-notify/internal/api/model"
	"github.com/cuongbtq/genjob-notify/internal/tracker/submit"
)

// UserHeader identifies the calling user on the notification routes
const UserHeader = "X-User-ID"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Storage is the persistence used by the handlers
type Storage interface {
	ListNotifications(ctx context.Context, userID string, offset, limit int) ([]model.Notification, int, error)
	CreateNotification(ctx context.Context, n *model.Notification) error
	GetNotification(ctx context.Context, id string) (*model.Notification, error)
	CreateJob(ctx context.Context, job *model.GenerationJob) error
	GetJob(ctx context.Context, jobID string) (*model.GenerationJob, error)
	FailJob(ctx context.Context, jobID, errorMessage string) error
}

// Publisher enqueues generation jobs for worker-service
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger         *slog.Logger
	Storage        Storage
	Publisher      Publisher
	Engines        *submit.Registry
	MaxRetries     int
	TimeoutSeconds int
	Now            func() time.Time
	// HealthCheck reports backing-store reachability on /health; nil skips it
	HealthCheck func(ctx context.Context) error
}

// Handler serves the notification and generation APIs
type Handler struct {
	logger         *slog.Logger
	storage        Storage
	publisher      Publisher
	engines        *submit.Registry
	validate       *validator.Validate
	maxRetries     int
	timeoutSeconds int
	now            func() time.Time
}

// NewHandler creates a new Handler instance
func NewHandler(deps *Dependencies) *Handler {
	engines := deps.Engines
	if engines == nil {
		engines = submit.NewRegistry(submit.DefaultEngines()...)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		logger:         deps.Logger,
		storage:        deps.Storage,
		publisher:      deps.Publisher,
		engines:        engines,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		maxRetries:     deps.MaxRetries,
		timeoutSeconds: deps.TimeoutSeconds,
		now:            now,
	}
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg,
		slog.String("path", c.Request.URL.Path),
		slog.String("error", err.Error()),
	)
	abortWithError(c, http.StatusInternalServerError, msg)
}
