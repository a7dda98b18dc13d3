package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/genjob-notify/internal/api/handler"
	"github.com/cuongbtq/genjob-notify/shared/middleware"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "unhealthy",
					"error":  err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "genjob-api-service",
		})
	})

	h := handler.NewHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		notifications := v1.Group("/notifications")
		{
			// GET /api/v1/notifications - List the caller's notifications
			notifications.GET("", h.ListNotifications)

			// POST /api/v1/notifications - Create a notification
			notifications.POST("", h.CreateNotification)
		}

		generate := v1.Group("/generate")
		{
			// GET /api/v1/generate/status - Read a job's state
			generate.GET("/status", h.JobStatus)

			// POST /api/v1/generate/:engine - Queue a generation job
			generate.POST("/:engine", h.Generate)
		}
	}

	return r
}
