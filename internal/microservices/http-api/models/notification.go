package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationType is the domain kind of a notification
type NotificationType string

const (
	NotificationTaskAssigned    NotificationType = "task_assigned"
	NotificationTaskDeadline    NotificationType = "task_deadline"
	NotificationStageCompleted  NotificationType = "stage_completed"
	NotificationStageDelayed    NotificationType = "stage_delayed"
	NotificationHandoffRequest  NotificationType = "handoff_request"
	NotificationBottleneckAlert NotificationType = "bottleneck_alert"
	NotificationSystemMessage   NotificationType = "system_message"
)

// NotificationPriority controls routing (urgent may override quiet hours)
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// Delivery method identifiers used in delivery_methods and the delivery log
const (
	DeliveryMethodWebSocket = "websocket"
	DeliveryMethodEmail     = "email"
	DeliveryMethodPush      = "push"
)

// Notification belongs to exactly one tenant and one recipient. It is
// immutable after creation except for the read/delivered state transitions.
type Notification struct {
	ID          uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    uuid.UUID            `gorm:"type:uuid;not null;index" json:"tenant_id"`
	RecipientID uuid.UUID            `gorm:"type:uuid;not null;index" json:"recipient_id"`
	SenderID    *uuid.UUID           `gorm:"type:uuid" json:"sender_id,omitempty"`
	Type        NotificationType     `gorm:"not null;index" json:"type"`
	Priority    NotificationPriority `gorm:"not null;default:medium" json:"priority"`
	Title       string               `gorm:"size:255;not null" json:"title"`
	Message     string               `gorm:"type:text;not null" json:"message"`
	ActionURL   string               `gorm:"size:500" json:"action_url,omitempty"`
	ActionLabel string               `gorm:"size:100" json:"action_label,omitempty"`
	Metadata    map[string]any       `gorm:"serializer:json" json:"metadata,omitempty"`

	RelatedProjectID *uuid.UUID `gorm:"type:uuid" json:"related_project_id,omitempty"`
	RelatedTaskID    *uuid.UUID `gorm:"type:uuid" json:"related_task_id,omitempty"`
	RelatedStageID   *uuid.UUID `gorm:"type:uuid" json:"related_stage_id,omitempty"`

	// Requested channels; nil means websocket only
	DeliveryMethods []string `gorm:"serializer:json" json:"delivery_methods,omitempty"`

	IsRead      bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	IsDelivered bool       `gorm:"default:false" json:"is_delivered"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
