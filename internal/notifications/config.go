package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/systmms/approtate/internal/config"
	"github.com/systmms/approtate/internal/logging"
)

// NewManagerFromConfig builds a manager with every provider cfg enables.
// It returns nil when nothing is configured.
func NewManagerFromConfig(cfg *config.NotificationConfig, logger *logging.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, nil
	}

	var providers []NotificationProvider
	if cfg.Slack != nil {
		providers = append(providers, NewSlackProvider(slackConfig(cfg.Slack)))
	}
	if cfg.PagerDuty != nil {
		providers = append(providers, NewPagerDutyProvider(PagerDutyConfig{
			IntegrationKey: cfg.PagerDuty.IntegrationKey,
			Severity:       cfg.PagerDuty.Severity,
			Events:         cfg.PagerDuty.Events,
			AutoResolve:    cfg.PagerDuty.AutoResolve,
		}))
	}
	if cfg.Email != nil {
		providers = append(providers, NewEmailProvider(EmailConfig{
			SMTP: SMTPConfig{
				Host:     cfg.Email.SMTP.Host,
				Port:     cfg.Email.SMTP.Port,
				Username: cfg.Email.SMTP.Username,
				Password: cfg.Email.SMTP.Password,
			},
			From:   cfg.Email.From,
			To:     cfg.Email.To,
			Events: cfg.Email.Events,
		}))
	}
	for i := range cfg.Webhooks {
		providers = append(providers, NewWebhookProvider(webhookConfig(i, cfg.Webhooks[i])))
	}
	if len(providers) == 0 {
		return nil, nil
	}

	manager := NewManager(cfg.QueueSize, logger)
	for _, p := range providers {
		if err := p.Validate(context.Background()); err != nil {
			return nil, fmt.Errorf("invalid %s notification config: %w", p.Name(), err)
		}
		manager.RegisterProvider(p)
	}
	return manager, nil
}

func slackConfig(c *config.SlackNotificationConfig) SlackConfig {
	sc := SlackConfig{
		WebhookURL: c.WebhookURL,
		Channel:    c.Channel,
		Events:     c.Events,
	}
	if c.Mentions != nil {
		sc.Mentions = &SlackMentions{
			OnFailure:      c.Mentions.OnFailure,
			OnInconsistent: c.Mentions.OnInconsistent,
		}
	}
	return sc
}

func webhookConfig(i int, c config.WebhookNotificationConfig) WebhookConfig {
	name := c.Name
	if name == "" {
		name = fmt.Sprintf("webhook-%d", i+1)
	}

	wc := WebhookConfig{
		Name:            name,
		URL:             c.URL,
		Method:          strings.ToUpper(c.Method),
		Headers:         c.Headers,
		Events:          c.Events,
		PayloadTemplate: c.PayloadTemplate,
		Timeout:         time.Duration(c.TimeoutSeconds) * time.Second,
	}
	if c.Retry != nil {
		wc.Retry = &RetryConfig{
			MaxAttempts: c.Retry.MaxAttempts,
			Backoff:     c.Retry.Backoff,
		}
	}
	return wc
}
