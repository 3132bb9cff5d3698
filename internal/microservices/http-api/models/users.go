package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the minimal identity record the notification core needs: the email
// sender resolves recipient addresses through it and the admin endpoints
// check the superuser flag. Authentication lives outside this service.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Email       string    `gorm:"size:255;not null;index" json:"email"`
	DisplayName string    `gorm:"size:100" json:"display_name"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	IsSuperuser bool      `gorm:"default:false" json:"is_superuser"`
	CreatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
