package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/models"
)

// CreateNotificationDTO for creating a single notification
type CreateNotificationDTO struct {
	Type            models.NotificationType     `json:"type" binding:"required"`
	Priority        models.NotificationPriority `json:"priority"`
	Title           string                      `json:"title" binding:"required,max=255"`
	Message         string                      `json:"message" binding:"required"`
	ActionURL       string                      `json:"action_url" binding:"max=500"`
	ActionLabel     string                      `json:"action_label" binding:"max=100"`
	Metadata        map[string]any              `json:"metadata"`
	RecipientID     uuid.UUID                   `json:"recipient_id" binding:"required"`
	SenderID        *uuid.UUID                  `json:"sender_id"`
	RelatedProject  *uuid.UUID                  `json:"related_project_id"`
	RelatedTask     *uuid.UUID                  `json:"related_task_id"`
	RelatedStage    *uuid.UUID                  `json:"related_stage_id"`
	DeliveryMethods []string                    `json:"delivery_methods"`
	ExpiresAt       *time.Time                  `json:"expires_at"`
}

// CreateBulkNotificationDTO shares all fields across recipients; one
// notification row is created per recipient.
type CreateBulkNotificationDTO struct {
	Type            models.NotificationType     `json:"type" binding:"required"`
	Priority        models.NotificationPriority `json:"priority"`
	Title           string                      `json:"title" binding:"required,max=255"`
	Message         string                      `json:"message" binding:"required"`
	ActionURL       string                      `json:"action_url" binding:"max=500"`
	ActionLabel     string                      `json:"action_label" binding:"max=100"`
	Metadata        map[string]any              `json:"metadata"`
	RecipientIDs    []uuid.UUID                 `json:"recipient_ids" binding:"required,min=1"`
	SenderID        *uuid.UUID                  `json:"sender_id"`
	RelatedProject  *uuid.UUID                  `json:"related_project_id"`
	RelatedTask     *uuid.UUID                  `json:"related_task_id"`
	RelatedStage    *uuid.UUID                  `json:"related_stage_id"`
	DeliveryMethods []string                    `json:"delivery_methods"`
	ExpiresAt       *time.Time                  `json:"expires_at"`
}

// ToNotification builds the model for one recipient. The metadata map is
// copied so bulk rows never share one instance.
func (d *CreateBulkNotificationDTO) ToNotification(recipientID, tenantID uuid.UUID) *models.Notification {
	return &models.Notification{
		TenantID:         tenantID,
		RecipientID:      recipientID,
		SenderID:         d.SenderID,
		Type:             d.Type,
		Priority:         defaultPriority(d.Priority),
		Title:            d.Title,
		Message:          d.Message,
		ActionURL:        d.ActionURL,
		ActionLabel:      d.ActionLabel,
		Metadata:         copyMetadata(d.Metadata),
		RelatedProjectID: d.RelatedProject,
		RelatedTaskID:    d.RelatedTask,
		RelatedStageID:   d.RelatedStage,
		DeliveryMethods:  append([]string(nil), d.DeliveryMethods...),
		ExpiresAt:        d.ExpiresAt,
	}
}

// ToNotification builds the model from a single-recipient create request
func (d *CreateNotificationDTO) ToNotification(tenantID uuid.UUID) *models.Notification {
	return &models.Notification{
		TenantID:         tenantID,
		RecipientID:      d.RecipientID,
		SenderID:         d.SenderID,
		Type:             d.Type,
		Priority:         defaultPriority(d.Priority),
		Title:            d.Title,
		Message:          d.Message,
		ActionURL:        d.ActionURL,
		ActionLabel:      d.ActionLabel,
		Metadata:         copyMetadata(d.Metadata),
		RelatedProjectID: d.RelatedProject,
		RelatedTaskID:    d.RelatedTask,
		RelatedStageID:   d.RelatedStage,
		DeliveryMethods:  append([]string(nil), d.DeliveryMethods...),
		ExpiresAt:        d.ExpiresAt,
	}
}

func defaultPriority(p models.NotificationPriority) models.NotificationPriority {
	if p == "" {
		return models.PriorityMedium
	}
	return p
}

func copyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// NotificationListResponse for returning a paginated notification page
type NotificationListResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Total         int64                 `json:"total"`
	UnreadCount   int64                 `json:"unread_count"`
	HasMore       bool                  `json:"has_more"`
}

// NotificationStatsResponse aggregates unread counters for one user
type NotificationStatsResponse struct {
	Total       int64            `json:"total"`
	Unread      int64            `json:"unread"`
	ByType      map[string]int64 `json:"by_type"`
	ByPriority  map[string]int64 `json:"by_priority"`
	RecentCount int64            `json:"recent_count"` // trailing 24 hours
}

// UpdatePreferencesDTO carries partial updates; only non-nil fields are
// applied to the stored record.
type UpdatePreferencesDTO struct {
	EnableDesktopNotifications *bool                     `json:"enable_desktop_notifications"`
	EnableEmailNotifications   *bool                     `json:"enable_email_notifications"`
	EnableSoundNotifications   *bool                     `json:"enable_sound_notifications"`
	EnablePushNotifications    *bool                     `json:"enable_push_notifications"`
	TypePreferences            map[string]map[string]any `json:"type_preferences"`
	QuietHoursEnabled          *bool                     `json:"quiet_hours_enabled"`
	QuietHoursStart            *string                   `json:"quiet_hours_start" binding:"omitempty,len=5"`
	QuietHoursEnd              *string                   `json:"quiet_hours_end" binding:"omitempty,len=5"`
	AllowUrgentInQuietHours    *bool                     `json:"allow_urgent_in_quiet_hours"`
	GroupingEnabled            *bool                     `json:"grouping_enabled"`
	GroupingTimeWindow         *int                      `json:"grouping_time_window" binding:"omitempty,min=1,max=60"`
}

// === Construction helper request DTOs ===

type TaskAssignedDTO struct {
	TaskName    string     `json:"task_name" binding:"required"`
	ProjectName string     `json:"project_name" binding:"required"`
	RecipientID uuid.UUID  `json:"recipient_id" binding:"required"`
	ProjectID   uuid.UUID  `json:"project_id" binding:"required"`
	TaskID      *uuid.UUID `json:"task_id"`
}

type TaskDeadlineDTO struct {
	TaskName       string     `json:"task_name" binding:"required"`
	ProjectName    string     `json:"project_name" binding:"required"`
	HoursRemaining int        `json:"hours_remaining"`
	RecipientID    uuid.UUID  `json:"recipient_id" binding:"required"`
	ProjectID      uuid.UUID  `json:"project_id" binding:"required"`
	TaskID         *uuid.UUID `json:"task_id"`
}

type StageCompletedDTO struct {
	StageName    string      `json:"stage_name" binding:"required"`
	ProjectName  string      `json:"project_name" binding:"required"`
	CompletedBy  string      `json:"completed_by" binding:"required"`
	RecipientIDs []uuid.UUID `json:"recipient_ids" binding:"required,min=1"`
	ProjectID    uuid.UUID   `json:"project_id" binding:"required"`
	StageID      *uuid.UUID  `json:"stage_id"`
}

type StageDelayedDTO struct {
	StageName    string      `json:"stage_name" binding:"required"`
	ProjectName  string      `json:"project_name" binding:"required"`
	DelayDays    int         `json:"delay_days" binding:"required,min=1"`
	Reason       string      `json:"reason"`
	RecipientIDs []uuid.UUID `json:"recipient_ids" binding:"required,min=1"`
	ProjectID    uuid.UUID   `json:"project_id" binding:"required"`
	StageID      *uuid.UUID  `json:"stage_id"`
}

type HandoffRequestDTO struct {
	FromRole     string      `json:"from_role" binding:"required"`
	ToRole       string      `json:"to_role" binding:"required"`
	ProjectName  string      `json:"project_name" binding:"required"`
	TaskCount    int         `json:"task_count" binding:"min=0"`
	RecipientIDs []uuid.UUID `json:"recipient_ids" binding:"required,min=1"`
	ProjectID    uuid.UUID   `json:"project_id" binding:"required"`
}

type BottleneckAlertDTO struct {
	Role         string      `json:"role" binding:"required"`
	TaskName     string      `json:"task_name" binding:"required"`
	ImpactCount  int         `json:"impact_count" binding:"min=0"`
	Severity     string      `json:"severity" binding:"required,oneof=medium high critical"`
	RecipientIDs []uuid.UUID `json:"recipient_ids" binding:"required,min=1"`
}

type BroadcastMessageDTO struct {
	Message string      `json:"message" binding:"required"`
	UserIDs []uuid.UUID `json:"user_ids"`
}
