package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/models"
)

type PreferencesRepository interface {
	GetByUser(ctx context.Context, userID, tenantID uuid.UUID) (*models.NotificationPreferences, error)
	Create(ctx context.Context, preferences *models.NotificationPreferences) error
	Save(ctx context.Context, preferences *models.NotificationPreferences) error
}

type preferencesRepository struct {
	db *gorm.DB
}

func NewPreferencesRepository(db *gorm.DB) PreferencesRepository {
	return &preferencesRepository{db: db}
}

func (r *preferencesRepository) GetByUser(ctx context.Context, userID, tenantID uuid.UUID) (*models.NotificationPreferences, error) {
	var preferences models.NotificationPreferences
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND tenant_id = ?", userID, tenantID).
		First(&preferences).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &preferences, nil
}

func (r *preferencesRepository) Create(ctx context.Context, preferences *models.NotificationPreferences) error {
	return r.db.WithContext(ctx).Create(preferences).Error
}

func (r *preferencesRepository) Save(ctx context.Context, preferences *models.NotificationPreferences) error {
	return r.db.WithContext(ctx).Save(preferences).Error
}
