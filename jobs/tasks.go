package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeAuditPurge is the task type for trimming old audit entries.
	TaskTypeAuditPurge = "audit:purge"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// SMTPConfig carries the mail relay settings for the worker.
type SMTPConfig struct {
	Host string
	Port int
	From string
}

// NewSendEmailHandler returns the handler that delivers queued emails over
// the configured relay.
func NewSendEmailHandler(cfg SMTPConfig, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
			cfg.From, payload.To, payload.Subject, payload.Body)
		addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
		if err := smtp.SendMail(addr, nil, cfg.From, []string{payload.To}, []byte(msg)); err != nil {
			logger.Warn("send email", slog.String("to", payload.To), slog.Any("error", err))
			return err
		}
		logger.Info("email sent", slog.String("to", payload.To), slog.String("subject", payload.Subject))
		return nil
	}
}

// AuditPurgePayload configures the retention window for the purge task.
type AuditPurgePayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewAuditPurgeTask constructs the recurring audit purge task.
func NewAuditPurgeTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(AuditPurgePayload{RetentionHours: int(retention.Hours())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditPurge, data), nil
}

// AuditPurger deletes audit entries older than the retention window.
type AuditPurger interface {
	Purge(ctx context.Context, retention time.Duration) (int64, error)
}

// NewAuditPurgeHandler returns the handler that trims the audit trail.
func NewAuditPurgeHandler(purger AuditPurger, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AuditPurgePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		retention := time.Duration(payload.RetentionHours) * time.Hour
		if retention <= 0 {
			return asynq.SkipRetry
		}
		removed, err := purger.Purge(ctx, retention)
		if err != nil {
			return err
		}
		logger.Info("audit purge", slog.Int64("removed", removed), slog.Duration("retention", retention))
		return nil
	}
}
