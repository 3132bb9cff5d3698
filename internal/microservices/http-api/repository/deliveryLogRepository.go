package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/models"
)

// DeliveryLogRepository is append-only: attempts are recorded, never edited.
type DeliveryLogRepository interface {
	Create(ctx context.Context, entry *models.NotificationDeliveryLog) error
	GetByNotification(ctx context.Context, notificationID uuid.UUID) ([]models.NotificationDeliveryLog, error)
}

type deliveryLogRepository struct {
	db *gorm.DB
}

func NewDeliveryLogRepository(db *gorm.DB) DeliveryLogRepository {
	return &deliveryLogRepository{db: db}
}

func (r *deliveryLogRepository) Create(ctx context.Context, entry *models.NotificationDeliveryLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *deliveryLogRepository) GetByNotification(ctx context.Context, notificationID uuid.UUID) ([]models.NotificationDeliveryLog, error) {
	var entries []models.NotificationDeliveryLog
	err := r.db.WithContext(ctx).
		Where("notification_id = ?", notificationID).
		Order("attempted_at ASC").
		Find(&entries).Error
	return entries, err
}
