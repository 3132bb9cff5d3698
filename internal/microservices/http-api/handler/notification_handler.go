package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/dto"
	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/middleware"
	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/models"
	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/repository"
	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/service"
	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/websocket"
)

type NotificationHandler struct {
	svc      service.NotificationService
	notifier service.ConstructionNotifier
	registry *websocket.Registry
}

func NewNotificationHandler(svc service.NotificationService, notifier service.ConstructionNotifier, registry *websocket.Registry) *NotificationHandler {
	return &NotificationHandler{svc: svc, notifier: notifier, registry: registry}
}

func (h *NotificationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/", h.List)
	rg.GET("/stats/summary", h.Stats)
	rg.GET("/preferences/me", h.GetPreferences)
	rg.PATCH("/preferences/me", h.UpdatePreferences)
	rg.PATCH("/mark-all-read", h.MarkAllAsRead)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id/read", h.MarkAsRead)
	rg.DELETE("/:id", h.Delete)

	rg.POST("/", h.Create)
	rg.POST("/bulk", h.CreateBulk)

	construction := rg.Group("/construction")
	construction.POST("/task-assigned", h.TaskAssigned)
	construction.POST("/task-deadline", h.TaskDeadline)
	construction.POST("/stage-completed", h.StageCompleted)
	construction.POST("/stage-delayed", h.StageDelayed)
	construction.POST("/handoff-request", h.HandoffRequest)
	construction.POST("/bottleneck-alert", h.BottleneckAlert)

	admin := rg.Group("/admin", middleware.RequireSuperuser())
	admin.POST("/broadcast", h.Broadcast)
	admin.GET("/online-users", h.OnlineUsers)
}

// identity pulls the authenticated (user, tenant) pair out of the request
// context. The auth middleware guarantees the values parse.
func identity(c *gin.Context) (userID, tenantID uuid.UUID, ok bool) {
	rawUser, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return uuid.Nil, uuid.Nil, false
	}
	rawTenant, exists := c.Get("tenant_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not resolved"})
		return uuid.Nil, uuid.Nil, false
	}

	userID, err := uuid.Parse(rawUser.(string))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
		return uuid.Nil, uuid.Nil, false
	}
	tenantID, err = uuid.Parse(rawTenant.(string))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid tenant id"})
		return uuid.Nil, uuid.Nil, false
	}
	return userID, tenantID, true
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return uuid.Nil, false
	}
	return id, true
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 5*time.Second)
}

// List returns the caller's notifications, newest first
func (h *NotificationHandler) List(c *gin.Context) {
	userID, tenantID, ok := identity(c)
	if !ok {
		return
	}

	filter := repository.NotificationFilter{Limit: 20}
	if skip, err := strconv.Atoi(c.DefaultQuery("skip", "0")); err == nil && skip >= 0 {
		filter.Skip = skip
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && limit > 0 && limit <= 100 {
		filter.Limit = limit
	}
	filter.UnreadOnly = c.Query("unread_only") == "true"
	filter.Type = models.NotificationType(c.Query("type"))
	filter.Priority = models.NotificationPriority(c.Query("priority"))

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := h.svc.List(ctx, userID, tenantID, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *NotificationHandler) Get(c *gin.Context) {
	userID, tenantID, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	notification, err := h.svc.GetByID(ctx, id, userID, tenantID)
	if err != nil {
		if errors.Is(err, service.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, notification)
}

func (h *NotificationHandler) Create(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}

	var req dto.CreateNotificationDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	notification, err := h.svc.Create(ctx, &req, tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, notification)
}

func (h *NotificationHandler) CreateBulk(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}

	var req dto.CreateBulkNotificationDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// bulk fan-out can outlive the 5s timeout of the simple routes
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	notifications, err := h.svc.CreateBulk(ctx, &req, tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"notifications": notifications,
		"created":       len(notifications),
	})
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID, tenantID, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	notification, err := h.svc.MarkAsRead(ctx, id, userID, tenantID)
	if err != nil {
		if errors.Is(err, service.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, notification)
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID, tenantID, ok := identity(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	updated, err := h.svc.MarkAllAsRead(ctx, userID, tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked_read": updated})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, tenantID, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.svc.Delete(ctx, id, userID, tenantID); err != nil {
		if errors.Is(err, service.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "notification deleted"})
}

func (h *NotificationHandler) Stats(c *gin.Context) {
	userID, tenantID, ok := identity(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := h.svc.Stats(ctx, userID, tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	userID, tenantID, ok := identity(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	preferences, err := h.svc.GetPreferences(ctx, userID, tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, preferences)
}

func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	userID, tenantID, ok := identity(c)
	if !ok {
		return
	}

	var req dto.UpdatePreferencesDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	preferences, err := h.svc.UpdatePreferences(ctx, userID, tenantID, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, preferences)
}

// === Construction workflow routes ===

func (h *NotificationHandler) TaskAssigned(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}

	var req dto.TaskAssignedDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	notification, err := h.notifier.NotifyTaskAssigned(ctx, &req, tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, notification)
}

func (h *NotificationHandler) TaskDeadline(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}

	var req dto.TaskDeadlineDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	notification, err := h.notifier.NotifyTaskDeadline(ctx, &req, tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, notification)
}

func (h *NotificationHandler) StageCompleted(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}

	var req dto.StageCompletedDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	notifications, err := h.notifier.NotifyStageCompleted(ctx, &req, tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"notifications": notifications, "created": len(notifications)})
}

func (h *NotificationHandler) StageDelayed(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}

	var req dto.StageDelayedDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	notifications, err := h.notifier.NotifyStageDelayed(ctx, &req, tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"notifications": notifications, "created": len(notifications)})
}

func (h *NotificationHandler) HandoffRequest(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}

	var req dto.HandoffRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	notifications, err := h.notifier.NotifyHandoffRequest(ctx, &req, tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"notifications": notifications, "created": len(notifications)})
}

func (h *NotificationHandler) BottleneckAlert(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}

	var req dto.BottleneckAlertDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	notifications, err := h.notifier.NotifyBottleneckAlert(ctx, &req, tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"notifications": notifications, "created": len(notifications)})
}

// === Admin routes ===

func (h *NotificationHandler) Broadcast(c *gin.Context) {
	var req dto.BroadcastMessageDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.svc.BroadcastSystemMessage(req.Message, req.UserIDs)
	c.JSON(http.StatusOK, gin.H{"message": "broadcast sent"})
}

func (h *NotificationHandler) OnlineUsers(c *gin.Context) {
	users := h.registry.ActiveUsers()
	c.JSON(http.StatusOK, gin.H{
		"online_users": users,
		"count":        len(users),
	})
}
