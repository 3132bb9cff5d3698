package websocket

import (
	"encoding/json"
	"time"

	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/models"
)

// Message protocol definitions

// Outbound message kinds
const (
	TypeConnectionEstablished = "connection_established"
	TypeNotification          = "notification"
	TypePong                  = "pong"
	TypeStatus                = "status"
	TypeSystemMessage         = "system_message"
)

// Inbound message kinds accepted from a client
const (
	TypePing      = "ping"
	TypeMarkRead  = "mark_read"
	TypeGetStatus = "get_status"
)

// ClientMessage is an inbound frame from a connected client. Unknown or
// malformed frames are ignored without closing the connection.
type ClientMessage struct {
	Type           string `json:"type"`
	NotificationID string `json:"notification_id,omitempty"`
}

// NotificationData is the payload of a real-time notification push
type NotificationData struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Priority  string         `json:"priority"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	ActionURL string         `json:"action_url,omitempty"`
	CreatedAt string         `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewNotificationMessage serializes a notification into the wire envelope
// {type: "notification", data: {...}}
func NewNotificationMessage(n *models.Notification) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type": TypeNotification,
		"data": NotificationData{
			ID:        n.ID.String(),
			Type:      string(n.Type),
			Priority:  string(n.Priority),
			Title:     n.Title,
			Message:   n.Message,
			ActionURL: n.ActionURL,
			CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
			Metadata:  n.Metadata,
		},
	})
}

// NewConnectionEstablishedMessage is sent once to a freshly registered connection
func NewConnectionEstablishedMessage() []byte {
	data, _ := json.Marshal(map[string]any{
		"type":    TypeConnectionEstablished,
		"message": "WebSocket connection established",
	})
	return data
}

// NewPongMessage is the heartbeat reply to an inbound {type:"ping"}
func NewPongMessage() []byte {
	data, _ := json.Marshal(map[string]string{"type": TypePong})
	return data
}

// NewStatusMessage reports the online user count and the caller's own
// connection count
func NewStatusMessage(onlineUsers, yourConnections int) []byte {
	data, _ := json.Marshal(map[string]any{
		"type":             TypeStatus,
		"online_users":     onlineUsers,
		"your_connections": yourConnections,
	})
	return data
}

// NewSystemMessage wraps an operator broadcast
func NewSystemMessage(message string) []byte {
	data, _ := json.Marshal(map[string]any{
		"type":      TypeSystemMessage,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	return data
}
