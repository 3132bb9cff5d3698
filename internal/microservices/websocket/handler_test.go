package websocket

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func setupWSRouter(identity gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := gin.New()
	if identity != nil {
		router.Use(identity)
	}
	router.GET("/ws", WSHandler(NewRegistry(nil), nil, logger))
	return router
}

func TestWSHandlerRejectsAnonymousRequest(t *testing.T) {
	router := setupWSRouter(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "not authenticated")
}

func TestWSHandlerUpgradeFailureWritesSingleResponse(t *testing.T) {
	router := setupWSRouter(func(c *gin.Context) {
		c.Set("user_id", uuid.New().String())
		c.Set("tenant_id", uuid.New().String())
	})

	// a plain HTTP request cannot be upgraded; the upgrader replies on its own
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotContains(t, w.Body.String(), "failed to upgrade")
}
