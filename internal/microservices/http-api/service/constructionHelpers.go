package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/dto"
	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/models"
)

// ConstructionNotifier builds domain-shaped notifications (titles, priorities,
// action links) from construction workflow events and hands them to the
// dispatcher.
type ConstructionNotifier interface {
	NotifyTaskAssigned(ctx context.Context, input *dto.TaskAssignedDTO, tenantID uuid.UUID) (*models.Notification, error)
	NotifyTaskDeadline(ctx context.Context, input *dto.TaskDeadlineDTO, tenantID uuid.UUID) (*models.Notification, error)
	NotifyStageCompleted(ctx context.Context, input *dto.StageCompletedDTO, tenantID uuid.UUID) ([]*models.Notification, error)
	NotifyStageDelayed(ctx context.Context, input *dto.StageDelayedDTO, tenantID uuid.UUID) ([]*models.Notification, error)
	NotifyHandoffRequest(ctx context.Context, input *dto.HandoffRequestDTO, tenantID uuid.UUID) ([]*models.Notification, error)
	NotifyBottleneckAlert(ctx context.Context, input *dto.BottleneckAlertDTO, tenantID uuid.UUID) ([]*models.Notification, error)
}

type constructionNotifier struct {
	notifications NotificationService
}

func NewConstructionNotifier(notifications NotificationService) ConstructionNotifier {
	return &constructionNotifier{notifications: notifications}
}

func (c *constructionNotifier) NotifyTaskAssigned(ctx context.Context, input *dto.TaskAssignedDTO, tenantID uuid.UUID) (*models.Notification, error) {
	return c.notifications.Create(ctx, &dto.CreateNotificationDTO{
		Type:        models.NotificationTaskAssigned,
		Priority:    models.PriorityMedium,
		Title:       "新しいタスクが割り当てられました",
		Message:     fmt.Sprintf("「%s」プロジェクトのタスク「%s」があなたに割り当てられました。", input.ProjectName, input.TaskName),
		ActionURL:   fmt.Sprintf("/projects/%s", input.ProjectID),
		ActionLabel: "タスクを確認",
		Metadata: map[string]any{
			"task_name":    input.TaskName,
			"project_name": input.ProjectName,
		},
		RecipientID:    input.RecipientID,
		RelatedProject: &input.ProjectID,
		RelatedTask:    input.TaskID,
	}, tenantID)
}

// NotifyTaskDeadline escalates priority as the deadline approaches: urgent
// when overdue, high within 24 hours, medium otherwise.
func (c *constructionNotifier) NotifyTaskDeadline(ctx context.Context, input *dto.TaskDeadlineDTO, tenantID uuid.UUID) (*models.Notification, error) {
	priority := models.PriorityMedium
	title := "タスクの期限が近づいています"
	message := fmt.Sprintf("「%s」プロジェクトのタスク「%s」の期限まで残り%d時間です。", input.ProjectName, input.TaskName, input.HoursRemaining)

	switch {
	case input.HoursRemaining <= 0:
		priority = models.PriorityUrgent
		title = "⚠️ タスクの期限が過ぎています"
		message = fmt.Sprintf("「%s」プロジェクトのタスク「%s」の期限が過ぎています。至急対応してください。", input.ProjectName, input.TaskName)
	case input.HoursRemaining <= 24:
		priority = models.PriorityHigh
	}

	return c.notifications.Create(ctx, &dto.CreateNotificationDTO{
		Type:        models.NotificationTaskDeadline,
		Priority:    priority,
		Title:       title,
		Message:     message,
		ActionURL:   fmt.Sprintf("/projects/%s", input.ProjectID),
		ActionLabel: "タスクを確認",
		Metadata: map[string]any{
			"task_name":       input.TaskName,
			"project_name":    input.ProjectName,
			"hours_remaining": input.HoursRemaining,
		},
		RecipientID:    input.RecipientID,
		RelatedProject: &input.ProjectID,
		RelatedTask:    input.TaskID,
	}, tenantID)
}

func (c *constructionNotifier) NotifyStageCompleted(ctx context.Context, input *dto.StageCompletedDTO, tenantID uuid.UUID) ([]*models.Notification, error) {
	return c.notifications.CreateBulk(ctx, &dto.CreateBulkNotificationDTO{
		Type:        models.NotificationStageCompleted,
		Priority:    models.PriorityLow,
		Title:       "ステージが完了しました",
		Message:     fmt.Sprintf("「%s」プロジェクトのステージ「%s」が%sさんによって完了されました。", input.ProjectName, input.StageName, input.CompletedBy),
		ActionURL:   fmt.Sprintf("/projects/%s", input.ProjectID),
		ActionLabel: "プロジェクトを確認",
		Metadata: map[string]any{
			"stage_name":   input.StageName,
			"project_name": input.ProjectName,
			"completed_by": input.CompletedBy,
		},
		RecipientIDs:   input.RecipientIDs,
		RelatedProject: &input.ProjectID,
		RelatedStage:   input.StageID,
	}, tenantID)
}

// NotifyStageDelayed treats delays over a week as urgent.
func (c *constructionNotifier) NotifyStageDelayed(ctx context.Context, input *dto.StageDelayedDTO, tenantID uuid.UUID) ([]*models.Notification, error) {
	priority := models.PriorityHigh
	if input.DelayDays > 7 {
		priority = models.PriorityUrgent
	}

	message := fmt.Sprintf("「%s」プロジェクトのステージ「%s」が%d日遅延しています。", input.ProjectName, input.StageName, input.DelayDays)
	if input.Reason != "" {
		message = fmt.Sprintf("%s 理由: %s", message, input.Reason)
	}

	return c.notifications.CreateBulk(ctx, &dto.CreateBulkNotificationDTO{
		Type:        models.NotificationStageDelayed,
		Priority:    priority,
		Title:       "🚨 ステージ遅延が発生しています",
		Message:     message,
		ActionURL:   fmt.Sprintf("/projects/%s", input.ProjectID),
		ActionLabel: "対応状況を確認",
		Metadata: map[string]any{
			"stage_name":   input.StageName,
			"project_name": input.ProjectName,
			"delay_days":   input.DelayDays,
			"reason":       input.Reason,
		},
		RecipientIDs:   input.RecipientIDs,
		RelatedProject: &input.ProjectID,
		RelatedStage:   input.StageID,
	}, tenantID)
}

func (c *constructionNotifier) NotifyHandoffRequest(ctx context.Context, input *dto.HandoffRequestDTO, tenantID uuid.UUID) ([]*models.Notification, error) {
	return c.notifications.CreateBulk(ctx, &dto.CreateBulkNotificationDTO{
		Type:        models.NotificationHandoffRequest,
		Priority:    models.PriorityHigh,
		Title:       "引き継ぎリクエストがあります",
		Message:     fmt.Sprintf("「%s」プロジェクトで%sから%sへの引き継ぎリクエストがあります（対象タスク: %d件）。", input.ProjectName, input.FromRole, input.ToRole, input.TaskCount),
		ActionURL:   fmt.Sprintf("/projects/%s", input.ProjectID),
		ActionLabel: "引き継ぎ内容を確認",
		Metadata: map[string]any{
			"from_role":    input.FromRole,
			"to_role":      input.ToRole,
			"project_name": input.ProjectName,
			"task_count":   input.TaskCount,
		},
		RecipientIDs:   input.RecipientIDs,
		RelatedProject: &input.ProjectID,
	}, tenantID)
}

// NotifyBottleneckAlert maps severity to priority: medium stays high-visible
// but non-urgent; high and critical escalate to urgent.
func (c *constructionNotifier) NotifyBottleneckAlert(ctx context.Context, input *dto.BottleneckAlertDTO, tenantID uuid.UUID) ([]*models.Notification, error) {
	priority := models.PriorityHigh
	if input.Severity == "high" || input.Severity == "critical" {
		priority = models.PriorityUrgent
	}

	return c.notifications.CreateBulk(ctx, &dto.CreateBulkNotificationDTO{
		Type:        models.NotificationBottleneckAlert,
		Priority:    priority,
		Title:       "⚡ ボトルネックが検出されました",
		Message:     fmt.Sprintf("%sのタスク「%s」がボトルネックになっています。影響を受けるタスク: %d件。", input.Role, input.TaskName, input.ImpactCount),
		ActionURL:   "/analytics",
		ActionLabel: "状況を確認",
		Metadata: map[string]any{
			"role":         input.Role,
			"task_name":    input.TaskName,
			"impact_count": input.ImpactCount,
			"severity":     input.Severity,
		},
		RecipientIDs: input.RecipientIDs,
	}, tenantID)
}
