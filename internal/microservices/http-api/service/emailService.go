package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"sync"
	texttemplate "text/template"
	"time"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"

	"github.com/kosuke-kagatsume/construction-todo-system/internal/config"
	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/models"
)

// ErrEmailNotConfigured is reported when sender credentials are absent; the
// sender fails immediately without attempting a network call.
var ErrEmailNotConfigured = errors.New("email credentials not configured")

// ErrRecipientEmailNotFound marks bulk entries whose recipient id resolves
// to no email address.
var ErrRecipientEmailNotFound = errors.New("recipient email not found")

// EmailSender is the outbound mail channel contract the dispatcher consumes
type EmailSender interface {
	SendNotificationEmail(ctx context.Context, notification *models.Notification, recipientEmail string) error
	SendBulkNotificationEmails(ctx context.Context, notifications []*models.Notification, recipientEmails map[uuid.UUID]string) []EmailResult
	TestConnection(ctx context.Context) error
}

// EmailResult is the per-notification outcome of a bulk send
type EmailResult struct {
	NotificationID uuid.UUID
	Err            error
}

type emailTemplate struct {
	subject *texttemplate.Template
	html    *htmltemplate.Template
}

type emailService struct {
	cfg       *config.Config
	templates map[models.NotificationType]*emailTemplate
	fallback  *emailTemplate
	logger    *slog.Logger
}

func NewEmailService(cfg *config.Config, logger *slog.Logger) EmailSender {
	if logger == nil {
		logger = slog.Default()
	}
	s := &emailService{
		cfg:    cfg,
		logger: logger,
	}
	s.initTemplates()
	return s
}

// templateContext is the variable set every template renders from
type templateContext struct {
	Title       string
	Message     string
	Priority    string
	ActionURL   string
	ActionLabel string
	Metadata    map[string]any
	CreatedAt   string
	ProjectName string
}

const emailFooter = `<div style="border-top: 1px solid #eee; padding-top: 16px; margin-top: 24px; text-align: center; color: #666; font-size: 12px;">
<p>このメールは Dandori TODO System から自動送信されています。</p>
</div>`

func htmlBody(accent, heading, detail string) string {
	return `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f8f9fa;">
<div style="background-color: white; padding: 24px; border-radius: 8px;">
<div style="border-left: 4px solid ` + accent + `; padding-left: 16px; margin-bottom: 20px;">
<h2 style="color: ` + accent + `; margin: 0 0 8px 0;">` + heading + `</h2>
<p style="color: #666; margin: 0; font-size: 13px;">{{.CreatedAt}}</p>
</div>
` + detail + `
<div style="margin-bottom: 20px;"><p style="color: #333; line-height: 1.6; margin: 0;">{{.Message}}</p></div>
{{if .ActionURL}}<div style="text-align: center; margin: 24px 0;">
<a href="{{.ActionURL}}" style="background-color: ` + accent + `; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block; font-weight: bold;">{{if .ActionLabel}}{{.ActionLabel}}{{else}}プロジェクトを確認する{{end}}</a>
</div>{{end}}
` + emailFooter + `
</div>
</div>`
}

func (s *emailService) initTemplates() {
	projectRow := `<table style="width: 100%; border-collapse: collapse; margin-bottom: 20px;">
<tr><td style="padding: 6px 0; font-weight: bold; width: 120px;">プロジェクト:</td><td style="padding: 6px 0;">{{.ProjectName}}</td></tr>
<tr><td style="padding: 6px 0; font-weight: bold;">優先度:</td><td style="padding: 6px 0;">{{.Priority}}</td></tr>
</table>`

	definitions := map[models.NotificationType]struct {
		subject string
		html    string
	}{
		models.NotificationTaskAssigned: {
			subject: "【{{.ProjectName}}】新しいタスクが割り当てられました",
			html:    htmlBody("#007bff", "📋 新しいタスクが割り当てられました", projectRow),
		},
		models.NotificationTaskDeadline: {
			subject: "【緊急】{{.ProjectName}} - タスクの期限が迫っています",
			html:    htmlBody("#dc3545", "⏰ タスクの期限が迫っています", projectRow),
		},
		models.NotificationStageDelayed: {
			subject: "【緊急】{{.ProjectName}} - ステージ遅延が発生",
			html:    htmlBody("#dc3545", "🚨 ステージ遅延が発生しています", projectRow),
		},
		models.NotificationHandoffRequest: {
			subject: "【引き継ぎ要求】{{.ProjectName}}",
			html:    htmlBody("#28a745", "🤝 引き継ぎ要求があります", projectRow),
		},
	}

	s.templates = make(map[models.NotificationType]*emailTemplate, len(definitions))
	for notificationType, def := range definitions {
		s.templates[notificationType] = &emailTemplate{
			subject: texttemplate.Must(texttemplate.New("subject").Parse(def.subject)),
			html:    htmltemplate.Must(htmltemplate.New("html").Parse(def.html)),
		}
	}

	// default template for types with no specific one
	s.fallback = &emailTemplate{
		subject: texttemplate.Must(texttemplate.New("subject").Parse("【Dandori TODO】{{.Title}}")),
		html:    htmltemplate.Must(htmltemplate.New("html").Parse(htmlBody("#007bff", "{{.Title}}", ""))),
	}
}

// getTemplate returns the template for the notification type, falling back
// to the default template when the type has no specific one.
func (s *emailService) getTemplate(notificationType models.NotificationType) *emailTemplate {
	if tmpl, ok := s.templates[notificationType]; ok {
		return tmpl
	}
	return s.fallback
}

func (s *emailService) buildContext(notification *models.Notification) templateContext {
	ctx := templateContext{
		Title:       notification.Title,
		Message:     notification.Message,
		Priority:    string(notification.Priority),
		ActionURL:   notification.ActionURL,
		ActionLabel: notification.ActionLabel,
		Metadata:    notification.Metadata,
		CreatedAt:   notification.CreatedAt.Format("2006年01月02日 15:04"),
		ProjectName: "N/A",
	}
	if name, ok := notification.Metadata["project_name"].(string); ok && name != "" {
		ctx.ProjectName = name
	}
	return ctx
}

func (s *emailService) render(tmpl *emailTemplate, ctx templateContext) (subject, html string, err error) {
	var subjectBuf, htmlBuf bytes.Buffer
	if err := tmpl.subject.Execute(&subjectBuf, ctx); err != nil {
		return "", "", fmt.Errorf("failed to render subject: %w", err)
	}
	if err := tmpl.html.Execute(&htmlBuf, ctx); err != nil {
		return "", "", fmt.Errorf("failed to render html body: %w", err)
	}
	return subjectBuf.String(), htmlBuf.String(), nil
}

// textFallback is the plain-text alternative body
func (s *emailService) textFallback(notification *models.Notification, ctx templateContext) string {
	return fmt.Sprintf(`%s

%s

プロジェクト: %s
優先度: %s
作成日時: %s

%s

---
このメールは Dandori TODO System から自動送信されています。`,
		notification.Title,
		notification.Message,
		ctx.ProjectName,
		notification.Priority,
		ctx.CreatedAt,
		notification.ActionURL,
	)
}

// tlsPolicy maps the EMAIL_USE_TLS setting onto go-mail's STARTTLS policy:
// when set, STARTTLS is required; otherwise it is used only if offered.
func (s *emailService) tlsPolicy() mail.TLSPolicy {
	if s.cfg.EmailUseStartTLS {
		return mail.TLSMandatory
	}
	return mail.TLSOpportunistic
}

func (s *emailService) newClient() (*mail.Client, error) {
	return mail.NewClient(s.cfg.EmailSMTPServer,
		mail.WithPort(s.cfg.EmailSMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.EmailSender),
		mail.WithPassword(s.cfg.EmailPassword),
		mail.WithTLSPolicy(s.tlsPolicy()),
		mail.WithTimeout(15*time.Second),
	)
}

// SendNotificationEmail renders the notification into the type's template
// and delivers it over SMTP. Network and auth failures are returned with the
// underlying error preserved; retries belong to a higher-level scheduler.
func (s *emailService) SendNotificationEmail(ctx context.Context, notification *models.Notification, recipientEmail string) error {
	if !s.cfg.EmailConfigured() {
		s.logger.Warn("email_not_configured")
		return ErrEmailNotConfigured
	}

	tmpl := s.getTemplate(notification.Type)
	templateCtx := s.buildContext(notification)

	subject, html, err := s.render(tmpl, templateCtx)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(s.cfg.EmailSenderName, s.cfg.EmailSender); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(recipientEmail); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, s.textFallback(notification, templateCtx))
	msg.AddAlternativeString(mail.TypeTextHTML, html)

	client, err := s.newClient()
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		s.logger.Error("email_send_failed", "to", recipientEmail, "error", err.Error())
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email_sent", "to", recipientEmail, "notification_id", notification.ID.String())
	return nil
}

// SendBulkNotificationEmails sends concurrently for every notification with
// a resolvable recipient email; entries with no resolvable email are
// reported as failed with ErrRecipientEmailNotFound.
func (s *emailService) SendBulkNotificationEmails(ctx context.Context, notifications []*models.Notification, recipientEmails map[uuid.UUID]string) []EmailResult {
	results := make([]EmailResult, len(notifications))

	var wg sync.WaitGroup
	for i, notification := range notifications {
		email, ok := recipientEmails[notification.RecipientID]
		if !ok || email == "" {
			results[i] = EmailResult{NotificationID: notification.ID, Err: ErrRecipientEmailNotFound}
			continue
		}

		wg.Add(1)
		go func(i int, n *models.Notification, to string) {
			defer wg.Done()
			results[i] = EmailResult{NotificationID: n.ID, Err: s.SendNotificationEmail(ctx, n, to)}
		}(i, notification, email)
	}
	wg.Wait()

	return results
}

// TestConnection dials and authenticates against the SMTP server without
// sending a message.
func (s *emailService) TestConnection(ctx context.Context) error {
	if !s.cfg.EmailConfigured() {
		return ErrEmailNotConfigured
	}

	client, err := s.newClient()
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}

	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("email connection test failed: %w", err)
	}
	return client.Close()
}
