package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Delivery attempt statuses
const (
	DeliveryStatusSent    = "sent"
	DeliveryStatusFailed  = "failed"
	DeliveryStatusPending = "pending"
)

// NotificationDeliveryLog is an append-only record of one delivery attempt
// per channel. Retries create new rows, never in-place edits.
type NotificationDeliveryLog struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	NotificationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"notification_id"`
	DeliveryMethod string     `gorm:"size:20;not null" json:"delivery_method"`
	Status         string     `gorm:"size:20;not null" json:"status"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message,omitempty"`
	AttemptedAt    time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"attempted_at"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
}

func (NotificationDeliveryLog) TableName() string {
	return "notification_delivery_logs"
}

func (l *NotificationDeliveryLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
