package handler

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/genjob-notify/internal/api/dto"
	"github.com/cuongbtq/genjob-notify/internal/api/model"
	trackerdomain "github.com/cuongbtq/genjob-notify/internal/tracker/domain"
)

func toRecord(n model.Notification) trackerdomain.NotificationRecord {
	return trackerdomain.NotificationRecord{
		ID:           n.ID,
		Title:        n.Title,
		Status:       trackerdomain.Status(n.Status),
		ResultRef:    n.ResultRef.String,
		ErrorMessage: n.ErrorMessage.String,
		CreatedAt:    n.CreatedAt,
		UpdatedAt:    n.UpdatedAt,
	}
}

// ListNotifications handles GET /api/v1/notifications
// Returns the caller's notifications, newest first
func (h *Handler) ListNotifications(c *gin.Context) {
	userID := c.GetHeader(UserHeader)
	if userID == "" {
		abortWithError(c, http.StatusBadRequest, UserHeader+" header is required")
		return
	}

	var req dto.ListNotificationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.String("error", err.Error()))
		abortWithError(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	if req.Limit <= 0 {
		req.Limit = defaultPageSize
	}
	if req.Limit > maxPageSize {
		req.Limit = maxPageSize
	}

	notifications, total, err := h.storage.ListNotifications(c.Request.Context(), userID, req.Offset, req.Limit)
	if err != nil {
		h.internalError(c, "Failed to list notifications", err)
		return
	}

	items := make([]trackerdomain.NotificationRecord, len(notifications))
	for i, n := range notifications {
		items[i] = toRecord(n)
	}

	c.JSON(http.StatusOK, trackerdomain.NotificationPage{
		Items:      items,
		TotalCount: total,
	})
}

// CreateNotification handles POST /api/v1/notifications
// Registers a notification before its generation job is requested
func (h *Handler) CreateNotification(c *gin.Context) {
	var req dto.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		abortWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.UserID == "" {
		req.UserID = c.GetHeader(UserHeader)
	}
	if req.UserID == "" {
		abortWithError(c, http.StatusBadRequest, "user_id is required")
		return
	}

	now := h.now()
	n := model.Notification{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		Title:        req.Title,
		Status:       string(trackerdomain.StatusRequested),
		ThumbnailRef: sql.NullString{String: req.ThumbnailRef, Valid: req.ThumbnailRef != ""},
		JobCount:     req.JobCount,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.storage.CreateNotification(c.Request.Context(), &n); err != nil {
		h.internalError(c, "Failed to create notification", err)
		return
	}

	h.logger.Info("Notification created",
		slog.String("notification_id", n.ID),
		slog.String("user_id", n.UserID),
	)

	c.JSON(http.StatusCreated, dto.CreateNotificationResponse{ID: n.ID})
}
