package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/models"
)

// NotificationFilter narrows List results; zero values mean "no filter"
type NotificationFilter struct {
	UnreadOnly bool
	Type       models.NotificationType
	Priority   models.NotificationPriority
	Skip       int
	Limit      int
}

// NotificationStats aggregates unread counters scoped to one (user, tenant)
type NotificationStats struct {
	Total       int64
	Unread      int64
	ByType      map[string]int64
	ByPriority  map[string]int64
	RecentCount int64
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	CreateAll(ctx context.Context, notifications []*models.Notification) error
	GetByID(ctx context.Context, id, userID, tenantID uuid.UUID) (*models.Notification, error)
	List(ctx context.Context, userID, tenantID uuid.UUID, filter NotificationFilter) ([]models.Notification, int64, error)
	CountUnread(ctx context.Context, userID, tenantID uuid.UUID) (int64, error)
	MarkAsRead(ctx context.Context, id uuid.UUID, readAt time.Time) error
	MarkAllAsRead(ctx context.Context, userID, tenantID uuid.UUID, readAt time.Time) (int64, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, deliveredAt time.Time) error
	Delete(ctx context.Context, id, userID, tenantID uuid.UUID) (bool, error)
	Stats(ctx context.Context, userID, tenantID uuid.UUID, now time.Time) (*NotificationStats, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// CreateAll persists the whole batch in one transaction so a bulk create
// either produces all rows or none.
func (r *notificationRepository) CreateAll(ctx context.Context, notifications []*models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, n := range notifications {
			if err := tx.Create(n).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *notificationRepository) GetByID(ctx context.Context, id, userID, tenantID uuid.UUID) (*models.Notification, error) {
	var notification models.Notification
	err := r.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ? AND tenant_id = ?", id, userID, tenantID).
		First(&notification).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

func (r *notificationRepository) List(ctx context.Context, userID, tenantID uuid.UUID, filter NotificationFilter) ([]models.Notification, int64, error) {
	query := r.scoped(ctx, userID, tenantID).
		Where("expires_at IS NULL OR expires_at > ?", time.Now().UTC())

	if filter.UnreadOnly {
		query = query.Where("is_read = false")
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var notifications []models.Notification
	err := query.
		Order("created_at DESC").
		Offset(filter.Skip).
		Limit(limit).
		Find(&notifications).Error
	return notifications, total, err
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := r.scoped(ctx, userID, tenantID).
		Where("is_read = false").
		Count(&count).Error
	return count, err
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, id uuid.UUID, readAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_read": true, "read_at": readAt}).Error
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, userID, tenantID uuid.UUID, readAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND tenant_id = ? AND is_read = false", userID, tenantID).
		Updates(map[string]any{"is_read": true, "read_at": readAt})
	return result.RowsAffected, result.Error
}

func (r *notificationRepository) MarkDelivered(ctx context.Context, id uuid.UUID, deliveredAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_delivered": true, "delivered_at": deliveredAt}).Error
}

func (r *notificationRepository) Delete(ctx context.Context, id, userID, tenantID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ? AND tenant_id = ?", id, userID, tenantID).
		Delete(&models.Notification{})
	return result.RowsAffected > 0, result.Error
}

func (r *notificationRepository) Stats(ctx context.Context, userID, tenantID uuid.UUID, now time.Time) (*NotificationStats, error) {
	stats := &NotificationStats{
		ByType:     make(map[string]int64),
		ByPriority: make(map[string]int64),
	}

	if err := r.scoped(ctx, userID, tenantID).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := r.scoped(ctx, userID, tenantID).Where("is_read = false").Count(&stats.Unread).Error; err != nil {
		return nil, err
	}

	type groupCount struct {
		Key   string `gorm:"column:key"`
		Count int64  `gorm:"column:count"`
	}

	var typeCounts []groupCount
	if err := r.scoped(ctx, userID, tenantID).
		Select("type AS key, count(id) AS count").
		Where("is_read = false").
		Group("type").
		Scan(&typeCounts).Error; err != nil {
		return nil, err
	}
	for _, row := range typeCounts {
		stats.ByType[row.Key] = row.Count
	}

	var priorityCounts []groupCount
	if err := r.scoped(ctx, userID, tenantID).
		Select("priority AS key, count(id) AS count").
		Where("is_read = false").
		Group("priority").
		Scan(&priorityCounts).Error; err != nil {
		return nil, err
	}
	for _, row := range priorityCounts {
		stats.ByPriority[row.Key] = row.Count
	}

	if err := r.scoped(ctx, userID, tenantID).
		Where("created_at >= ?", now.Add(-24*time.Hour)).
		Count(&stats.RecentCount).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// scoped returns a query restricted to one recipient in one tenant
func (r *notificationRepository) scoped(ctx context.Context, userID, tenantID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND tenant_id = ?", userID, tenantID)
}
