package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cuongbtq/genjob-notify/internal/tracker"
	"github.com/cuongbtq/genjob-notify/internal/tracker/domain"
	"github.com/cuongbtq/genjob-notify/internal/tracker/notifier"
	"github.com/cuongbtq/genjob-notify/internal/tracker/visibility"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Outbound message types.
const (
	msgNewNotification = "new_notification"
	msgJobCompleted    = "job_completed"
	msgJobFailed       = "job_failed"
	msgSnapshot        = "snapshot"
	msgOpenDetail      = "open_detail"
	msgSurface         = "surface"
	msgError           = "error"
)

// Inbound actions.
const (
	actionPointerDown = "pointer_down"
	actionKeyDown     = "key_down"
	actionOpen        = "open"
	actionClose       = "close"
	actionToggle      = "toggle"
	actionSelect      = "select"
)

type message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type incoming struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type completedPayload struct {
	NotificationID string `json:"notification_id"`
	ResultRef      string `json:"result_ref,omitempty"`
	Message        string `json:"message"`
}

type failedPayload struct {
	NotificationID string `json:"notification_id"`
	ErrorMessage   string `json:"error_message,omitempty"`
	Message        string `json:"message"`
}

type surfacePayload struct {
	Open bool `json:"open"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// client is one websocket connection attached to a user's tracker.
type client struct {
	userID  string
	conn    *websocket.Conn
	tracker *tracker.Tracker
	logger  *slog.Logger
	send    chan message

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(userID string, conn *websocket.Conn, tr *tracker.Tracker, logger *slog.Logger) *client {
	return &client{
		userID:  userID,
		conn:    conn,
		tracker: tr,
		logger:  logger,
		send:    make(chan message, sendBuffer),
		done:    make(chan struct{}),
	}
}

// listener forwards tracker events to the connection.
func (c *client) listener() notifier.Listener {
	return notifier.ListenerFuncs{
		NewNotification: func(ev notifier.Event) {
			c.enqueue(message{Type: msgNewNotification, Data: ev})
		},
		JobCompleted: func(id, resultRef string, ev notifier.Event) {
			c.enqueue(message{Type: msgJobCompleted, Data: completedPayload{
				NotificationID: id,
				ResultRef:      resultRef,
				Message:        ev.Message,
			}})
		},
		JobFailed: func(id, errorMessage string, ev notifier.Event) {
			c.enqueue(message{Type: msgJobFailed, Data: failedPayload{
				NotificationID: id,
				ErrorMessage:   errorMessage,
				Message:        ev.Message,
			}})
		},
		SnapshotChanged: func(records []*domain.NotificationRecord) {
			c.enqueue(message{Type: msgSnapshot, Data: records})
		},
	}
}

// enqueue never blocks; a client that cannot keep up loses messages.
func (c *client) enqueue(msg message) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		c.logger.Warn("Websocket send buffer full, dropping message",
			slog.String("type", msg.Type),
		)
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Websocket read failed", slog.String("error", err.Error()))
			}
			return
		}

		var msg incoming
		if err := json.Unmarshal(data, &msg); err != nil {
			c.enqueue(message{Type: msgError, Data: "malformed message"})
			continue
		}
		c.handle(msg)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn("Websocket write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) handle(msg incoming) {
	switch msg.Action {
	case actionPointerDown:
		var ev visibility.PointerEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			c.enqueue(message{Type: msgError, Data: "invalid pointer_down payload"})
			return
		}
		c.tracker.Events().PointerDown(ev)

	case actionKeyDown:
		var ev visibility.KeyEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			c.enqueue(message{Type: msgError, Data: "invalid key_down payload"})
			return
		}
		c.tracker.Events().KeyDown(ev)

	case actionOpen:
		c.tracker.Open()
	case actionClose:
		c.tracker.Dismiss()
	case actionToggle:
		c.tracker.Toggle()

	case actionSelect:
		var payload selectRequest
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			c.enqueue(message{Type: msgError, Data: "invalid select payload"})
			return
		}
		if _, err := c.tracker.Select(payload.ID); err != nil {
			c.enqueue(message{Type: msgError, Data: err.Error()})
			return
		}

	default:
		c.enqueue(message{Type: msgError, Data: "unknown action: " + msg.Action})
		return
	}

	c.enqueue(message{Type: msgSurface, Data: surfacePayload{Open: c.tracker.State().Visible}})
}
