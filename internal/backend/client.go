// Package backend is the HTTP client for the notification and generation APIs
// served by api-service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/genjob-notify/internal/tracker/domain"
)

// UserHeader carries the id of the user the request is made for.
const UserHeader = "X-User-ID"

// DefaultTimeout bounds every outbound call.
const DefaultTimeout = 15 * time.Second

// Client talks to the backend on behalf of one user.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for baseURL (e.g. http://localhost:8080).
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// ForUser returns a copy of the client scoped to userID. The HTTP transport is shared.
func (c *Client) ForUser(userID string) *Client {
	clone := *c
	clone.userID = userID
	return &clone
}

type createNotificationResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ListNotifications fetches one page of the user's notifications, newest first.
func (c *Client) ListNotifications(ctx context.Context, offset, limit int) (*domain.NotificationPage, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var page domain.NotificationPage
	if err := c.do(ctx, "list notifications", http.MethodGet, "/api/v1/notifications?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateNotification registers a notification record and returns its id.
func (c *Client) CreateNotification(ctx context.Context, req domain.CreateNotificationRequest) (string, error) {
	if req.UserID == "" {
		req.UserID = c.userID
	}

	var resp createNotificationResponse
	if err := c.do(ctx, "create notification", http.MethodPost, "/api/v1/notifications", req, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", &domain.ServerError{Op: "create notification", StatusCode: http.StatusOK, Message: "response has no id"}
	}
	return resp.ID, nil
}

// Generate starts a generation job on the named engine.
func (c *Client) Generate(ctx context.Context, engine string, req domain.GenerationRequest) (*domain.GenerationResponse, error) {
	var resp domain.GenerationResponse
	path := "/api/v1/generate/" + url.PathEscape(engine)
	if err := c.do(ctx, "generate "+engine, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobStatus reads the state of a generation job directly.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*domain.JobStatus, error) {
	q := url.Values{}
	q.Set("job_id", jobID)

	var status domain.JobStatus
	if err := c.do(ctx, "job status", http.MethodGet, "/api/v1/generate/status?"+q.Encode(), nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// do sends one JSON request. Transport failures become *domain.NetworkError and
// non-2xx answers become *domain.ServerError.
func (c *Client) do(ctx context.Context, op, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling %s request: %w", op, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set(UserHeader, c.userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &domain.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.NetworkError{Op: op, Err: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		srvErr := &domain.ServerError{Op: op, StatusCode: resp.StatusCode}
		var apiErr errorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			srvErr.Message = apiErr.Error
		}
		c.logger.Debug("Backend returned an error",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
			slog.String("message", srvErr.Message),
		)
		return srvErr
	}

	if result == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return &domain.ServerError{Op: op, StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}
	return nil
}
