package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationPreferences holds per-(user, tenant) delivery configuration.
// At most one record per pair; created lazily with defaults on first access.
type NotificationPreferences struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_prefs_user_tenant" json:"user_id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_prefs_user_tenant" json:"tenant_id"`

	EnableDesktopNotifications bool `gorm:"default:true" json:"enable_desktop_notifications"`
	EnableEmailNotifications   bool `gorm:"default:false" json:"enable_email_notifications"`
	EnableSoundNotifications   bool `gorm:"default:true" json:"enable_sound_notifications"`
	EnablePushNotifications    bool `gorm:"default:false" json:"enable_push_notifications"`

	// Per-type overrides, e.g. {"task_deadline": {"email": true}}
	TypePreferences map[string]map[string]any `gorm:"serializer:json" json:"type_preferences,omitempty"`

	QuietHoursEnabled       bool   `gorm:"default:false" json:"quiet_hours_enabled"`
	QuietHoursStart         string `gorm:"size:5;default:'22:00'" json:"quiet_hours_start"`
	QuietHoursEnd           string `gorm:"size:5;default:'08:00'" json:"quiet_hours_end"`
	AllowUrgentInQuietHours bool   `gorm:"default:true" json:"allow_urgent_in_quiet_hours"`

	GroupingEnabled    bool `gorm:"default:true" json:"grouping_enabled"`
	GroupingTimeWindow int  `gorm:"default:5" json:"grouping_time_window"` // minutes, 1-60

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (NotificationPreferences) TableName() string {
	return "notification_preferences"
}

func (p *NotificationPreferences) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// DefaultNotificationPreferences returns the defaults applied when a user has
// no stored record yet.
func DefaultNotificationPreferences(userID, tenantID uuid.UUID) *NotificationPreferences {
	return &NotificationPreferences{
		UserID:                     userID,
		TenantID:                   tenantID,
		EnableDesktopNotifications: true,
		EnableEmailNotifications:   false,
		EnableSoundNotifications:   true,
		EnablePushNotifications:    false,
		QuietHoursEnabled:          false,
		QuietHoursStart:            "22:00",
		QuietHoursEnd:              "08:00",
		AllowUrgentInQuietHours:    true,
		GroupingEnabled:            true,
		GroupingTimeWindow:         5,
	}
}
