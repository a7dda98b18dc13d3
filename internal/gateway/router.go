package gateway

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/genjob-notify/shared/middleware"
)

// SetupRouter configures the tracker-service routes
func SetupRouter(g *Gateway, logger *slog.Logger) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "tracker-service",
		})
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/engines", g.Engines)

		sessions := v1.Group("/sessions/:user_id")
		{
			sessions.POST("", g.MountSession)
			sessions.DELETE("", g.UnmountSession)
			sessions.GET("/notifications", g.GetNotifications)
			sessions.POST("/refresh", g.Refresh)
			sessions.POST("/surface/:input", g.Surface)
			sessions.POST("/jobs", g.SubmitJob)
			sessions.GET("/jobs/:job_id/status", g.JobStatus)
			sessions.GET("/ws", g.ServeWS)
		}
	}

	return r
}
