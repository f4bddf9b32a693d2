// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package notify sends job-outcome notifications, either by SMTP to a
// family/job's configured email addresses or by webhook POST. Channels are
// wired through config rather than hardcoded endpoints.
package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/go-resty/resty/v2"
	"github.com/sk-pkg/logger"
	"go.uber.org/zap"

	"github.com/taskforest/pytf/internal/config"
)

// Notifier sends job-completion notifications through the configured
// channels.
type Notifier struct {
	cfg    *config.Config
	logger *logger.Manager
	client *resty.Client
}

// New builds a Notifier from ambient config.
func New(cfg *config.Config, log *logger.Manager) *Notifier {
	return &Notifier{cfg: cfg, logger: log, client: resty.New()}
}

// Event describes one job outcome worth notifying about.
type Event struct {
	FamilyName string
	JobName    string
	Status     string
	ErrorCode  *int
	Recipients []string // email addresses, e.g. job.Email / job.RetryEmail
}

// Notify sends an email (if recipients and SMTPAddr are configured) and a
// webhook POST (if WebhookURL is configured) for one job outcome. Errors
// from either channel are logged, not returned, since a notification
// failure must never block the scheduler's tick.
func (n *Notifier) Notify(ctx context.Context, ev Event) {
	if len(ev.Recipients) > 0 && n.cfg.SMTPAddr != "" {
		if err := n.sendEmail(ev); err != nil && n.logger != nil {
			n.logger.Error(ctx, "failed to send notification email",
				zap.String("family", ev.FamilyName), zap.String("job", ev.JobName), zap.Error(err))
		}
	}

	if n.cfg.WebhookURL != "" {
		if err := n.sendWebhook(ev); err != nil && n.logger != nil {
			n.logger.Error(ctx, "failed to send notification webhook",
				zap.String("family", ev.FamilyName), zap.String("job", ev.JobName), zap.Error(err))
		}
	}
}

func (n *Notifier) sendEmail(ev Event) error {
	subject := fmt.Sprintf("[pytf] %s::%s -> %s", ev.FamilyName, ev.JobName, ev.Status)
	body := subject
	if ev.ErrorCode != nil {
		body = fmt.Sprintf("%s\nerror_code=%d", subject, *ev.ErrorCode)
	}
	msg := []byte(fmt.Sprintf("Subject: %s\r\n\r\n%s\r\n", subject, body))
	return smtp.SendMail(n.cfg.SMTPAddr, nil, n.cfg.NotifyFrom, ev.Recipients, msg)
}

func (n *Notifier) sendWebhook(ev Event) error {
	_, err := n.client.R().
		SetBody(map[string]interface{}{
			"family_name": ev.FamilyName,
			"job_name":    ev.JobName,
			"status":      ev.Status,
			"error_code":  ev.ErrorCode,
		}).
		Post(n.cfg.WebhookURL)
	return err
}
