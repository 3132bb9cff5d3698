package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const ( // ping pong (2-way heartbeat) to keep connection alive
	WriteWait      = 10 * time.Second    // max time to write a message to the peer
	PongWait       = 60 * time.Second    // max time to wait for pong from peer => no pong = no connection
	PingPeriod     = (PongWait * 9) / 10 // send ping before pong wait expires, 10% slack for network jitter
	MaxMessageSize = 4096                // maximum inbound frame size allowed from peer
	SendBufferSize = 64                  // buffered outbound frames per connection
)

var errConnectionClosed = errors.New("connection closed")
var errSendBufferFull = errors.New("send buffer full")

// NotificationMarker lets a connected client mark a notification read over
// the socket without the websocket package depending on the service layer.
type NotificationMarker interface {
	MarkNotificationRead(ctx context.Context, notificationID, userID, tenantID uuid.UUID) error
}

// Client is one live WebSocket connection for one user
type Client struct {
	UserID   uuid.UUID
	TenantID uuid.UUID

	conn     *websocket.Conn
	registry *Registry
	marker   NotificationMarker
	limiter  *rate.Limiter // inbound frame rate limiter
	sendCh   chan []byte   // channel for outbound messages
	done     chan struct{}
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

func NewClient(conn *websocket.Conn, userID, tenantID uuid.UUID, registry *Registry, marker NotificationMarker, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		UserID:   userID,
		TenantID: tenantID,
		conn:     conn,
		registry: registry,
		marker:   marker,
		limiter:  rate.NewLimiter(rate.Limit(10), 20), // 10 msgs/sec with burst of 20
		sendCh:   make(chan []byte, SendBufferSize),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Send queues a message for the write pump. It never blocks on the network:
// a full buffer or a closed connection reports an error, which the registry
// treats as a disconnect signal.
func (c *Client) Send(message []byte) error {
	select {
	case <-c.done:
		return errConnectionClosed
	default:
	}

	select {
	case c.sendCh <- message:
		return nil
	case <-c.done:
		return errConnectionClosed
	default:
		return errSendBufferFull
	}
}

// Close shuts the connection down; safe to call from multiple goroutines,
// only the first call closes the underlying connection.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// ReadPump consumes inbound frames until the connection dies. Malformed
// payloads are ignored without closing the connection.
func (c *Client) ReadPump() {
	defer func() {
		c.registry.Disconnect(c)
		c.Close()
	}()

	c.conn.SetReadLimit(MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(PongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("ws_read_error", "user_id", c.UserID.String(), "error", err.Error())
			}
			return
		}

		if !c.limiter.Allow() {
			c.logger.Warn("ws_rate_limit_exceeded", "user_id", c.UserID.String())
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.logger.Warn("ws_invalid_json", "user_id", c.UserID.String())
			continue
		}

		c.handleMessage(&msg)
	}
}

func (c *Client) handleMessage(msg *ClientMessage) {
	switch msg.Type {
	case TypePing:
		c.Send(NewPongMessage())

	case TypeMarkRead:
		notificationID, err := uuid.Parse(msg.NotificationID)
		if err != nil {
			c.logger.Warn("ws_invalid_notification_id", "user_id", c.UserID.String())
			return
		}
		if c.marker == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.marker.MarkNotificationRead(ctx, notificationID, c.UserID, c.TenantID); err != nil {
			c.logger.Error("ws_mark_read_failed",
				"user_id", c.UserID.String(),
				"notification_id", msg.NotificationID,
				"error", err.Error(),
			)
		}

	case TypeGetStatus:
		c.Send(NewStatusMessage(
			len(c.registry.ActiveUsers()),
			c.registry.ConnectionCount(c.UserID.String()),
		))

	default:
		// unknown message types are ignored, connection stays open
	}
}

// WritePump drains the send channel onto the wire and keeps the heartbeat
// going. One write pump per connection serializes all writes.
func (c *Client) WritePump() {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
