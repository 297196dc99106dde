package chathub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"raaibar/backend/internal/config"
	"raaibar/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	UserID     string
	ConnID     string
	Conn       *websocket.Conn
	Router     *Router
	Dispatcher Dispatcher

	log    *slog.Logger
	send   chan models.Event
	mu     sync.Mutex
	closed bool
}

func NewWebSocketClient(userID string, conn *websocket.Conn, router *Router, d Dispatcher, log *slog.Logger) *WebSocketClient {
	connID := uuid.NewString()
	return &WebSocketClient{
		UserID:     userID,
		ConnID:     connID,
		Conn:       conn,
		Router:     router,
		Dispatcher: d,
		log:        log.With("identity", userID, "conn", connID),
		send:       make(chan models.Event, config.SendBufferSize),
	}
}

func (c *WebSocketClient) GetUserID() string { return c.UserID }
func (c *WebSocketClient) GetConnID() string { return c.ConnID }

func (c *WebSocketClient) Deliver(ev models.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Run starts the pumps for the WebSocket.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes the send channel, which stops writePump. readPump stops by
// itself once the connection is closed in writePump's defer.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Router.Leave(c.UserID, c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(config.MaxFrameSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("error reading frame", "error", err)
			}
			return
		}

		var frame models.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Warn("error decoding frame", "error", err)
			continue
		}
		c.Dispatcher.Dispatch(context.Background(), c.UserID, frame)
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(config.PingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if !ok {
				// Closed by the router.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(ev); err != nil {
				c.log.Warn("error writing event", "event", ev.Name, "error", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
