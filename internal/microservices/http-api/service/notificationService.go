package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kosuke-kagatsume/construction-todo-system/internal/cache"
	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/dto"
	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/models"
	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/repository"
	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/websocket"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationService interface {
	Create(ctx context.Context, input *dto.CreateNotificationDTO, tenantID uuid.UUID) (*models.Notification, error)
	CreateBulk(ctx context.Context, input *dto.CreateBulkNotificationDTO, tenantID uuid.UUID) ([]*models.Notification, error)
	List(ctx context.Context, userID, tenantID uuid.UUID, filter repository.NotificationFilter) (*dto.NotificationListResponse, error)
	GetByID(ctx context.Context, id, userID, tenantID uuid.UUID) (*models.Notification, error)
	MarkAsRead(ctx context.Context, id, userID, tenantID uuid.UUID) (*models.Notification, error)
	MarkAllAsRead(ctx context.Context, userID, tenantID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id, userID, tenantID uuid.UUID) error
	Stats(ctx context.Context, userID, tenantID uuid.UUID) (*dto.NotificationStatsResponse, error)
	GetPreferences(ctx context.Context, userID, tenantID uuid.UUID) (*models.NotificationPreferences, error)
	UpdatePreferences(ctx context.Context, userID, tenantID uuid.UUID, update *dto.UpdatePreferencesDTO) (*models.NotificationPreferences, error)

	// MarkNotificationRead satisfies websocket.NotificationMarker
	MarkNotificationRead(ctx context.Context, notificationID, userID, tenantID uuid.UUID) error
	BroadcastSystemMessage(message string, userIDs []uuid.UUID)
}

type notificationService struct {
	notifications repository.NotificationRepository
	preferences   repository.PreferencesRepository
	deliveryLogs  repository.DeliveryLogRepository
	users         repository.UserRepository
	registry      *websocket.Registry
	email         EmailSender
	statsCache    *cache.StatsCache
	logger        *slog.Logger
}

func NewNotificationService(
	notifications repository.NotificationRepository,
	preferences repository.PreferencesRepository,
	deliveryLogs repository.DeliveryLogRepository,
	users repository.UserRepository,
	registry *websocket.Registry,
	email EmailSender,
	statsCache *cache.StatsCache,
	logger *slog.Logger,
) NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &notificationService{
		notifications: notifications,
		preferences:   preferences,
		deliveryLogs:  deliveryLogs,
		users:         users,
		registry:      registry,
		email:         email,
		statsCache:    statsCache,
		logger:        logger,
	}
}

// Create persists one notification then delivers it. Persistence failures
// propagate; delivery failures only produce failed delivery log rows.
func (s *notificationService) Create(ctx context.Context, input *dto.CreateNotificationDTO, tenantID uuid.UUID) (*models.Notification, error) {
	notification := input.ToNotification(tenantID)
	if err := s.notifications.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to persist notification: %w", err)
	}

	s.statsCache.Invalidate(ctx, notification.RecipientID, tenantID)
	s.deliver(ctx, notification)
	return notification, nil
}

// CreateBulk persists one notification row per recipient (sharing all other
// fields), then delivers each concurrently. One slow or failing recipient
// never blocks or fails the others.
func (s *notificationService) CreateBulk(ctx context.Context, input *dto.CreateBulkNotificationDTO, tenantID uuid.UUID) ([]*models.Notification, error) {
	notifications := make([]*models.Notification, 0, len(input.RecipientIDs))
	for _, recipientID := range input.RecipientIDs {
		notifications = append(notifications, input.ToNotification(recipientID, tenantID))
	}

	if err := s.notifications.CreateAll(ctx, notifications); err != nil {
		return nil, fmt.Errorf("failed to persist bulk notifications: %w", err)
	}

	var wg sync.WaitGroup
	for _, notification := range notifications {
		s.statsCache.Invalidate(ctx, notification.RecipientID, tenantID)

		wg.Add(1)
		go func(n *models.Notification) {
			defer wg.Done()
			s.deliver(ctx, n)
		}(notification)
	}
	wg.Wait()

	return notifications, nil
}

// deliver routes one persisted notification across its channels. A channel
// sender failure never propagates past this call; each attempt is recorded
// in the delivery log.
func (s *notificationService) deliver(ctx context.Context, notification *models.Notification) {
	preferences, err := s.preferences.GetByUser(ctx, notification.RecipientID, notification.TenantID)
	if err != nil {
		// safe default when the preference store is unreachable:
		// real-time only
		s.logger.Warn("preferences_load_failed",
			"user_id", notification.RecipientID.String(),
			"error", err.Error(),
		)
		s.sendWebSocket(ctx, notification)
		return
	}
	if preferences == nil {
		s.sendWebSocket(ctx, notification)
		return
	}

	if !shouldDeliverNow(notification, preferences, time.Now().UTC()) {
		s.logger.Info("notification_suppressed_quiet_hours",
			"notification_id", notification.ID.String(),
			"user_id", notification.RecipientID.String(),
		)
		return
	}

	methods := notification.DeliveryMethods
	if len(methods) == 0 {
		methods = []string{models.DeliveryMethodWebSocket}
	}

	var wg sync.WaitGroup
	for _, method := range methods {
		switch method {
		case models.DeliveryMethodWebSocket:
			// real-time is the baseline channel and is not preference-gated
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.sendWebSocket(ctx, notification)
			}()
		case models.DeliveryMethodEmail:
			if preferences.EnableEmailNotifications {
				wg.Add(1)
				go func() {
					defer wg.Done()
					s.sendEmail(ctx, notification)
				}()
			}
		case models.DeliveryMethodPush:
			if preferences.EnablePushNotifications {
				wg.Add(1)
				go func() {
					defer wg.Done()
					s.sendPush(ctx, notification)
				}()
			}
		}
	}
	wg.Wait()
}

// shouldDeliverNow evaluates quiet hours for one notification. Time-of-day
// strings are compared lexically in "HH:MM" form; when start > end the quiet
// window wraps midnight.
func shouldDeliverNow(notification *models.Notification, preferences *models.NotificationPreferences, now time.Time) bool {
	if !preferences.QuietHoursEnabled {
		return true
	}

	// urgent notifications may override quiet hours
	if notification.Priority == models.PriorityUrgent && preferences.AllowUrgentInQuietHours {
		return true
	}

	currentTime := now.Format("15:04")
	start := preferences.QuietHoursStart
	end := preferences.QuietHoursEnd

	var isQuietTime bool
	if start > end {
		isQuietTime = currentTime >= start || currentTime <= end
	} else {
		isQuietTime = start <= currentTime && currentTime <= end
	}

	return !isQuietTime
}

func (s *notificationService) sendWebSocket(ctx context.Context, notification *models.Notification) {
	message, err := websocket.NewNotificationMessage(notification)
	if err != nil {
		s.logDelivery(ctx, notification.ID, models.DeliveryMethodWebSocket, models.DeliveryStatusFailed, err.Error())
		return
	}

	if delivered := s.registry.SendToUser(notification.RecipientID.String(), message); delivered {
		s.logDelivery(ctx, notification.ID, models.DeliveryMethodWebSocket, models.DeliveryStatusSent, "")
		return
	}

	// recipient offline or all writes failed: best effort, no retry queue
	s.logDelivery(ctx, notification.ID, models.DeliveryMethodWebSocket, models.DeliveryStatusFailed, "no active connections")
}

func (s *notificationService) sendEmail(ctx context.Context, notification *models.Notification) {
	user, err := s.users.GetByID(ctx, notification.RecipientID)
	if err != nil {
		s.logDelivery(ctx, notification.ID, models.DeliveryMethodEmail, models.DeliveryStatusFailed, err.Error())
		return
	}
	if user == nil || user.Email == "" {
		s.logDelivery(ctx, notification.ID, models.DeliveryMethodEmail, models.DeliveryStatusFailed, ErrRecipientEmailNotFound.Error())
		return
	}

	if err := s.email.SendNotificationEmail(ctx, notification, user.Email); err != nil {
		s.logDelivery(ctx, notification.ID, models.DeliveryMethodEmail, models.DeliveryStatusFailed, err.Error())
		return
	}

	s.logDelivery(ctx, notification.ID, models.DeliveryMethodEmail, models.DeliveryStatusSent, "")

	// email is the durable channel; its success marks the record delivered
	deliveredAt := time.Now().UTC()
	if err := s.notifications.MarkDelivered(ctx, notification.ID, deliveredAt); err != nil {
		s.logger.Error("mark_delivered_failed",
			"notification_id", notification.ID.String(),
			"error", err.Error(),
		)
		return
	}
	notification.IsDelivered = true
	notification.DeliveredAt = &deliveredAt
}

// sendPush records a pending attempt; the push transport is not wired yet.
func (s *notificationService) sendPush(ctx context.Context, notification *models.Notification) {
	s.logDelivery(ctx, notification.ID, models.DeliveryMethodPush, models.DeliveryStatusPending, "")
}

func (s *notificationService) logDelivery(ctx context.Context, notificationID uuid.UUID, method, status, errorMessage string) {
	entry := &models.NotificationDeliveryLog{
		NotificationID: notificationID,
		DeliveryMethod: method,
		Status:         status,
		ErrorMessage:   errorMessage,
		AttemptedAt:    time.Now().UTC(),
	}
	if status == models.DeliveryStatusSent {
		entry.DeliveredAt = &entry.AttemptedAt
	}

	if err := s.deliveryLogs.Create(ctx, entry); err != nil {
		s.logger.Error("delivery_log_write_failed",
			"notification_id", notificationID.String(),
			"method", method,
			"error", err.Error(),
		)
	}
}

func (s *notificationService) List(ctx context.Context, userID, tenantID uuid.UUID, filter repository.NotificationFilter) (*dto.NotificationListResponse, error) {
	notifications, total, err := s.notifications.List(ctx, userID, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	unread, err := s.notifications.CountUnread(ctx, userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	return &dto.NotificationListResponse{
		Notifications: notifications,
		Total:         total,
		UnreadCount:   unread,
		HasMore:       int64(filter.Skip+limit) < total,
	}, nil
}

func (s *notificationService) GetByID(ctx context.Context, id, userID, tenantID uuid.UUID) (*models.Notification, error) {
	notification, err := s.notifications.GetByID(ctx, id, userID, tenantID)
	if err != nil {
		return nil, err
	}
	if notification == nil {
		return nil, ErrNotificationNotFound
	}
	return notification, nil
}

// MarkAsRead is idempotent: marking an already-read notification returns the
// existing record with read_at untouched.
func (s *notificationService) MarkAsRead(ctx context.Context, id, userID, tenantID uuid.UUID) (*models.Notification, error) {
	notification, err := s.GetByID(ctx, id, userID, tenantID)
	if err != nil {
		return nil, err
	}
	if notification.IsRead {
		return notification, nil
	}

	readAt := time.Now().UTC()
	if err := s.notifications.MarkAsRead(ctx, notification.ID, readAt); err != nil {
		return nil, fmt.Errorf("failed to mark notification as read: %w", err)
	}
	notification.IsRead = true
	notification.ReadAt = &readAt

	s.statsCache.Invalidate(ctx, userID, tenantID)
	return notification, nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID, tenantID uuid.UUID) (int64, error) {
	updated, err := s.notifications.MarkAllAsRead(ctx, userID, tenantID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications as read: %w", err)
	}

	s.statsCache.Invalidate(ctx, userID, tenantID)
	return updated, nil
}

func (s *notificationService) Delete(ctx context.Context, id, userID, tenantID uuid.UUID) error {
	deleted, err := s.notifications.Delete(ctx, id, userID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if !deleted {
		return ErrNotificationNotFound
	}

	s.statsCache.Invalidate(ctx, userID, tenantID)
	return nil
}

func (s *notificationService) Stats(ctx context.Context, userID, tenantID uuid.UUID) (*dto.NotificationStatsResponse, error) {
	if cached, ok := s.statsCache.Get(ctx, userID, tenantID); ok {
		return statsToResponse(cached), nil
	}

	stats, err := s.notifications.Stats(ctx, userID, tenantID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate notification stats: %w", err)
	}

	s.statsCache.Set(ctx, userID, tenantID, stats)
	return statsToResponse(stats), nil
}

func statsToResponse(stats *repository.NotificationStats) *dto.NotificationStatsResponse {
	return &dto.NotificationStatsResponse{
		Total:       stats.Total,
		Unread:      stats.Unread,
		ByType:      stats.ByType,
		ByPriority:  stats.ByPriority,
		RecentCount: stats.RecentCount,
	}
}

// GetPreferences returns the stored record, creating one with defaults on
// first access.
func (s *notificationService) GetPreferences(ctx context.Context, userID, tenantID uuid.UUID) (*models.NotificationPreferences, error) {
	preferences, err := s.preferences.GetByUser(ctx, userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	if preferences != nil {
		return preferences, nil
	}

	preferences = models.DefaultNotificationPreferences(userID, tenantID)
	if err := s.preferences.Create(ctx, preferences); err != nil {
		return nil, fmt.Errorf("failed to create default preferences: %w", err)
	}
	return preferences, nil
}

// UpdatePreferences applies a partial update: only non-nil fields change,
// everything else keeps its prior value.
func (s *notificationService) UpdatePreferences(ctx context.Context, userID, tenantID uuid.UUID, update *dto.UpdatePreferencesDTO) (*models.NotificationPreferences, error) {
	preferences, err := s.GetPreferences(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}

	if update.QuietHoursStart != nil {
		if err := validateTimeOfDay(*update.QuietHoursStart); err != nil {
			return nil, err
		}
		preferences.QuietHoursStart = *update.QuietHoursStart
	}
	if update.QuietHoursEnd != nil {
		if err := validateTimeOfDay(*update.QuietHoursEnd); err != nil {
			return nil, err
		}
		preferences.QuietHoursEnd = *update.QuietHoursEnd
	}
	if update.EnableDesktopNotifications != nil {
		preferences.EnableDesktopNotifications = *update.EnableDesktopNotifications
	}
	if update.EnableEmailNotifications != nil {
		preferences.EnableEmailNotifications = *update.EnableEmailNotifications
	}
	if update.EnableSoundNotifications != nil {
		preferences.EnableSoundNotifications = *update.EnableSoundNotifications
	}
	if update.EnablePushNotifications != nil {
		preferences.EnablePushNotifications = *update.EnablePushNotifications
	}
	if update.TypePreferences != nil {
		preferences.TypePreferences = update.TypePreferences
	}
	if update.QuietHoursEnabled != nil {
		preferences.QuietHoursEnabled = *update.QuietHoursEnabled
	}
	if update.AllowUrgentInQuietHours != nil {
		preferences.AllowUrgentInQuietHours = *update.AllowUrgentInQuietHours
	}
	if update.GroupingEnabled != nil {
		preferences.GroupingEnabled = *update.GroupingEnabled
	}
	if update.GroupingTimeWindow != nil {
		window := *update.GroupingTimeWindow
		if window < 1 {
			window = 1
		}
		if window > 60 {
			window = 60
		}
		preferences.GroupingTimeWindow = window
	}

	preferences.UpdatedAt = time.Now().UTC()
	if err := s.preferences.Save(ctx, preferences); err != nil {
		return nil, fmt.Errorf("failed to save preferences: %w", err)
	}
	return preferences, nil
}

func validateTimeOfDay(value string) error {
	if _, err := time.Parse("15:04", value); err != nil {
		return fmt.Errorf("invalid time of day %q: expected HH:MM", value)
	}
	return nil
}

// MarkNotificationRead is the websocket-facing mark-as-read entry point
func (s *notificationService) MarkNotificationRead(ctx context.Context, notificationID, userID, tenantID uuid.UUID) error {
	_, err := s.MarkAsRead(ctx, notificationID, userID, tenantID)
	return err
}

// BroadcastSystemMessage pushes a system_message envelope to the given users
// or, with no user list, to every live connection.
func (s *notificationService) BroadcastSystemMessage(message string, userIDs []uuid.UUID) {
	payload := websocket.NewSystemMessage(message)
	if len(userIDs) == 0 {
		s.registry.Broadcast(payload)
		return
	}

	ids := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		ids = append(ids, id.String())
	}
	s.registry.SendToUsers(ids, payload)
}
