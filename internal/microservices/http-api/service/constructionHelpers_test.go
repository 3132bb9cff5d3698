package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/dto"
	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/models"
)

func TestNotifyTaskAssigned(t *testing.T) {
	f := newFixture()
	notifier := NewConstructionNotifier(f.svc)
	projectID := uuid.New()

	n, err := notifier.NotifyTaskAssigned(context.Background(), &dto.TaskAssignedDTO{
		TaskName:    "配筋検査",
		ProjectName: "中央タワー新築工事",
		RecipientID: f.userID,
		ProjectID:   projectID,
	}, f.tenantID)
	require.NoError(t, err)

	assert.Equal(t, models.NotificationTaskAssigned, n.Type)
	assert.Equal(t, models.PriorityMedium, n.Priority)
	assert.Contains(t, n.Message, "配筋検査")
	assert.Contains(t, n.Message, "中央タワー新築工事")
	require.NotNil(t, n.RelatedProjectID)
	assert.Equal(t, projectID, *n.RelatedProjectID)
	assert.Equal(t, "配筋検査", n.Metadata["task_name"])
}

func TestNotifyTaskDeadlinePriorityEscalation(t *testing.T) {
	f := newFixture()
	notifier := NewConstructionNotifier(f.svc)

	tests := []struct {
		name           string
		hoursRemaining int
		want           models.NotificationPriority
	}{
		{"overdue is urgent", 0, models.PriorityUrgent},
		{"negative is urgent", -5, models.PriorityUrgent},
		{"within a day is high", 12, models.PriorityHigh},
		{"further out is medium", 72, models.PriorityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := notifier.NotifyTaskDeadline(context.Background(), &dto.TaskDeadlineDTO{
				TaskName:       "基礎打設",
				ProjectName:    "中央タワー新築工事",
				HoursRemaining: tt.hoursRemaining,
				RecipientID:    f.userID,
				ProjectID:      uuid.New(),
			}, f.tenantID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.Priority)
		})
	}
}

func TestNotifyStageDelayed(t *testing.T) {
	f := newFixture()
	notifier := NewConstructionNotifier(f.svc)
	projectID := uuid.New()
	recipients := []uuid.UUID{uuid.New(), uuid.New()}

	notifications, err := notifier.NotifyStageDelayed(context.Background(), &dto.StageDelayedDTO{
		StageName:    "上棟",
		ProjectName:  "中央タワー新築工事",
		DelayDays:    10,
		Reason:       "資材納入の遅れ",
		RecipientIDs: recipients,
		ProjectID:    projectID,
	}, f.tenantID)
	require.NoError(t, err)
	require.Len(t, notifications, 2)

	for _, n := range notifications {
		// a delay over a week escalates to urgent
		assert.Equal(t, models.PriorityUrgent, n.Priority)
		assert.Contains(t, n.Title, "遅延")
		assert.Contains(t, n.Message, "10日遅延")
		assert.Contains(t, n.Message, "資材納入の遅れ")
		require.NotNil(t, n.RelatedProjectID)
		assert.Equal(t, projectID, *n.RelatedProjectID)
	}
}

func TestNotifyStageDelayedShortDelayIsHigh(t *testing.T) {
	f := newFixture()
	notifier := NewConstructionNotifier(f.svc)

	notifications, err := notifier.NotifyStageDelayed(context.Background(), &dto.StageDelayedDTO{
		StageName:    "基礎",
		ProjectName:  "西巣鴨の家",
		DelayDays:    3,
		RecipientIDs: []uuid.UUID{uuid.New()},
		ProjectID:    uuid.New(),
	}, f.tenantID)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.PriorityHigh, notifications[0].Priority)
}

func TestNotifyStageCompleted(t *testing.T) {
	f := newFixture()
	notifier := NewConstructionNotifier(f.svc)

	notifications, err := notifier.NotifyStageCompleted(context.Background(), &dto.StageCompletedDTO{
		StageName:    "地盤調査",
		ProjectName:  "西巣鴨の家",
		CompletedBy:  "田中",
		RecipientIDs: []uuid.UUID{uuid.New(), uuid.New(), uuid.New()},
		ProjectID:    uuid.New(),
	}, f.tenantID)
	require.NoError(t, err)
	require.Len(t, notifications, 3)
	assert.Equal(t, models.PriorityLow, notifications[0].Priority)
	assert.Contains(t, notifications[0].Message, "田中")
}

func TestNotifyHandoffRequest(t *testing.T) {
	f := newFixture()
	notifier := NewConstructionNotifier(f.svc)

	notifications, err := notifier.NotifyHandoffRequest(context.Background(), &dto.HandoffRequestDTO{
		FromRole:     "営業",
		ToRole:       "設計",
		ProjectName:  "西巣鴨の家",
		TaskCount:    4,
		RecipientIDs: []uuid.UUID{uuid.New()},
		ProjectID:    uuid.New(),
	}, f.tenantID)
	require.NoError(t, err)
	require.Len(t, notifications, 1)

	n := notifications[0]
	assert.Equal(t, models.NotificationHandoffRequest, n.Type)
	assert.Equal(t, models.PriorityHigh, n.Priority)
	assert.Contains(t, n.Message, "営業")
	assert.Contains(t, n.Message, "設計")
	assert.EqualValues(t, 4, n.Metadata["task_count"])
}

func TestNotifyBottleneckAlertSeverityMapping(t *testing.T) {
	f := newFixture()
	notifier := NewConstructionNotifier(f.svc)

	tests := []struct {
		severity string
		want     models.NotificationPriority
	}{
		{"medium", models.PriorityHigh},
		{"high", models.PriorityUrgent},
		{"critical", models.PriorityUrgent},
	}

	for _, tt := range tests {
		t.Run(tt.severity, func(t *testing.T) {
			notifications, err := notifier.NotifyBottleneckAlert(context.Background(), &dto.BottleneckAlertDTO{
				Role:         "工務",
				TaskName:     "見積承認",
				ImpactCount:  6,
				Severity:     tt.severity,
				RecipientIDs: []uuid.UUID{uuid.New()},
			}, f.tenantID)
			require.NoError(t, err)
			require.Len(t, notifications, 1)
			assert.Equal(t, tt.want, notifications[0].Priority)
			// bottleneck alerts point at the analytics dashboard
			assert.Equal(t, "/analytics", notifications[0].ActionURL)
		})
	}
}
