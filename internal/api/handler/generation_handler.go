package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/genjob-notify/internal/api/domain"
	"github.com/cuongbtq/genjob-notify/internal/api/dto"
	"github.com/cuongbtq/genjob-notify/internal/api/model"
	trackerdomain "github.com/cuongbtq/genjob-notify/internal/tracker/domain"
)

// Generate handles POST /api/v1/generate/:engine
// Creates a generation job for an existing notification and queues it
func (h *Handler) Generate(c *gin.Context) {
	engine, ok := h.engines.Lookup(c.Param("engine"))
	if !ok {
		abortWithError(c, http.StatusNotFound, "unknown engine: "+c.Param("engine"))
		return
	}

	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		abortWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	// 1. Engine parameters
	if err := engine.ValidateParams(h.validate, trackerdomain.JobSpec{
		SourceImage: req.SourceImage,
		Params:      req.Params,
	}); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	// 2. The notification must exist and belong to the caller
	ctx := c.Request.Context()
	n, err := h.storage.GetNotification(ctx, req.NotificationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			abortWithError(c, http.StatusNotFound, "notification not found")
			return
		}
		h.internalError(c, "Failed to get notification", err)
		return
	}
	if n.UserID != req.UserID {
		abortWithError(c, http.StatusForbidden, "notification belongs to another user")
		return
	}

	if req.Params == nil {
		req.Params = map[string]any{}
	}
	params, err := json.Marshal(req.Params)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "params must be a JSON object")
		return
	}

	// 3. Create the job row
	now := h.now()
	job := model.GenerationJob{
		JobID:          uuid.NewString(),
		NotificationID: n.ID,
		UserID:         req.UserID,
		Engine:         engine.Name,
		Prompt:         req.Prompt,
		SourceImage:    sql.NullString{String: req.SourceImage, Valid: req.SourceImage != ""},
		Params:         params,
		Status:         string(trackerdomain.StatusRequested),
		MaxRetries:     h.maxRetries,
		TimeoutSeconds: h.timeoutSeconds,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.storage.CreateJob(ctx, &job); err != nil {
		h.internalError(c, "Failed to create generation job", err)
		return
	}

	// 4. Publish to RabbitMQ
	body, _ := json.Marshal(dto.GenerationMessage{JobID: job.JobID})
	if err := h.publisher.PublishWithRetry(ctx, body, "application/json"); err != nil {
		h.logger.Error("Failed to enqueue generation job",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		if failErr := h.storage.FailJob(ctx, job.JobID, "job could not be queued"); failErr != nil {
			h.logger.Error("Failed to mark unqueued job as failed",
				slog.String("job_id", job.JobID),
				slog.String("error", failErr.Error()),
			)
		}
		abortWithError(c, http.StatusServiceUnavailable, "Failed to enqueue generation job")
		return
	}

	h.logger.Info("Generation job queued",
		slog.String("job_id", job.JobID),
		slog.String("engine", job.Engine),
		slog.String("notification_id", job.NotificationID),
	)

	c.JSON(http.StatusAccepted, trackerdomain.GenerationResponse{
		JobID:   job.JobID,
		Status:  trackerdomain.StatusRequested,
		Message: "Generation job queued",
	})
}

// JobStatus handles GET /api/v1/generate/status
// Reads the state of a generation job directly
func (h *Handler) JobStatus(c *gin.Context) {
	var req dto.JobStatusRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "job_id is required")
		return
	}

	if _, err := uuid.Parse(req.JobID); err != nil {
		abortWithError(c, http.StatusBadRequest, "job_id must be a valid UUID")
		return
	}

	job, err := h.storage.GetJob(c.Request.Context(), req.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			abortWithError(c, http.StatusNotFound, "job not found")
			return
		}
		h.internalError(c, "Failed to get job", err)
		return
	}

	status := trackerdomain.JobStatus{
		JobID:     job.JobID,
		Status:    trackerdomain.Status(job.Status),
		Result:    job.ResultRef.String,
		Error:     job.ErrorMessage.String,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if job.Progress.Valid {
		progress := int(job.Progress.Int32)
		status.Progress = &progress
	}

	c.JSON(http.StatusOK, status)
}
