package websocket

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// HTTP upgrade handler to WebSocket connections

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// allow all origins; transport security belongs to the hosting layer
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades an authenticated HTTP request to a WebSocket connection
// and registers it under the caller's identity.
func WSHandler(registry *Registry, marker NotificationMarker, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// identity comes from the JWT middleware
		userID, userOK := c.Get("user_id")
		tenantID, tenantOK := c.Get("tenant_id")
		if !userOK || !tenantOK {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
			return
		}

		userUUID, err := uuid.Parse(userID.(string))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user identity"})
			return
		}
		tenantUUID, err := uuid.Parse(tenantID.(string))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid tenant identity"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// the upgrader has already written its own HTTP error response
			logger.Error("websocket upgrade failed", "user_id", userUUID, "error", err)
			return
		}

		client := NewClient(conn, userUUID, tenantUUID, registry, marker, logger)
		registry.Connect(client, userUUID.String())

		go client.ReadPump()
		go client.WritePump()
	}
}
