package config

import (
	"fmt"
	"net/url"
	"strings"

	dserrors "github.com/systmms/approtate/internal/errors"
)

// Event names accepted in the events lists.
var notificationEvents = []string{"completed", "failed", "inconsistent"}

// NotificationConfig holds configuration for rotation notifications.
type NotificationConfig struct {
	// QueueSize bounds the async delivery queue.
	QueueSize int `yaml:"queue_size,omitempty" json:"queue_size,omitempty"`

	Slack *SlackNotificationConfig `yaml:"slack,omitempty" json:"slack,omitempty"`

	Webhooks []WebhookNotificationConfig `yaml:"webhooks,omitempty" json:"webhooks,omitempty"`

	PagerDuty *PagerDutyNotificationConfig `yaml:"pagerduty,omitempty" json:"pagerduty,omitempty"`

	Email *EmailNotificationConfig `yaml:"email,omitempty" json:"email,omitempty"`
}

// SlackNotificationConfig holds Slack webhook configuration for rotation events.
type SlackNotificationConfig struct {
	// WebhookURL is the Slack incoming webhook URL.
	WebhookURL string `yaml:"webhook_url" json:"webhook_url"`

	// Channel is the Slack channel to post to (optional, uses webhook default).
	Channel string `yaml:"channel,omitempty" json:"channel,omitempty"`

	// Events specifies which rotation events trigger notifications.
	// Valid values: completed, failed, inconsistent. Empty means all.
	Events []string `yaml:"events,omitempty" json:"events,omitempty"`

	Mentions *SlackMentions `yaml:"mentions,omitempty" json:"mentions,omitempty"`
}

// SlackMentions defines who to mention for specific event types.
type SlackMentions struct {
	// OnFailure lists Slack handles to mention when rotation fails.
	// Examples: ["@oncall", "@platform-team"]
	OnFailure []string `yaml:"on_failure,omitempty" json:"on_failure,omitempty"`

	// OnInconsistent lists handles to mention when manual reconciliation
	// is required.
	OnInconsistent []string `yaml:"on_inconsistent,omitempty" json:"on_inconsistent,omitempty"`
}

// PagerDutyNotificationConfig holds PagerDuty Events API v2 settings.
type PagerDutyNotificationConfig struct {
	IntegrationKey string   `yaml:"integration_key" json:"integration_key"`
	Severity       string   `yaml:"severity,omitempty" json:"severity,omitempty"`
	Events         []string `yaml:"events,omitempty" json:"events,omitempty"`

	// AutoResolve closes the incident when a later run completes.
	AutoResolve bool `yaml:"auto_resolve,omitempty" json:"auto_resolve,omitempty"`
}

// EmailNotificationConfig holds SMTP delivery settings.
type EmailNotificationConfig struct {
	SMTP   SMTPConfig `yaml:"smtp" json:"smtp"`
	From   string     `yaml:"from" json:"from"`
	To     []string   `yaml:"to" json:"to"`
	Events []string   `yaml:"events,omitempty" json:"events,omitempty"`
}

// SMTPConfig holds SMTP server settings. Username enables PLAIN auth.
type SMTPConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
}

// WebhookNotificationConfig holds configuration for custom webhook notifications.
type WebhookNotificationConfig struct {
	Name    string            `yaml:"name" json:"name"`
	URL     string            `yaml:"url" json:"url"`
	Method  string            `yaml:"method,omitempty" json:"method,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Events  []string          `yaml:"events,omitempty" json:"events,omitempty"`

	// PayloadTemplate is a Go template for the request body, for example
	// {"text": {{json .Summary}}}. The json function quotes and escapes its
	// argument. If empty, a default JSON payload is used.
	PayloadTemplate string `yaml:"payload_template,omitempty" json:"payload_template,omitempty"`

	Retry *WebhookRetryConfig `yaml:"retry,omitempty" json:"retry,omitempty"`

	// TimeoutSeconds defaults to 10.
	TimeoutSeconds int `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// WebhookRetryConfig holds retry configuration for webhooks.
type WebhookRetryConfig struct {
	// MaxAttempts is the maximum number of attempts (default: 3).
	MaxAttempts int `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`

	// Backoff strategy: linear, exponential, fixed (default: exponential).
	Backoff string `yaml:"backoff,omitempty" json:"backoff,omitempty"`
}

// Validate checks URLs and event names.
func (n *NotificationConfig) Validate() error {
	if n.Slack != nil {
		if err := validateURL("notifications.slack.webhook_url", n.Slack.WebhookURL); err != nil {
			return err
		}
		if err := validateEvents("notifications.slack.events", n.Slack.Events); err != nil {
			return err
		}
	}
	if n.PagerDuty != nil {
		if n.PagerDuty.IntegrationKey == "" {
			return dserrors.ConfigError{
				Field:      "notifications.pagerduty.integration_key",
				Message:    "integration key is required",
				Suggestion: "Use the Events API v2 integration key of the PagerDuty service",
			}
		}
		if err := validateEvents("notifications.pagerduty.events", n.PagerDuty.Events); err != nil {
			return err
		}
	}
	if n.Email != nil {
		if n.Email.SMTP.Host == "" || n.Email.SMTP.Port == 0 {
			return dserrors.ConfigError{
				Field:   "notifications.email.smtp",
				Message: "host and port are required",
			}
		}
		if n.Email.From == "" || len(n.Email.To) == 0 {
			return dserrors.ConfigError{
				Field:   "notifications.email",
				Message: "from and at least one to address are required",
			}
		}
		if err := validateEvents("notifications.email.events", n.Email.Events); err != nil {
			return err
		}
	}
	for i, wh := range n.Webhooks {
		field := fmt.Sprintf("notifications.webhooks[%d]", i)
		if err := validateURL(field+".url", wh.URL); err != nil {
			return err
		}
		if err := validateEvents(field+".events", wh.Events); err != nil {
			return err
		}
	}
	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return dserrors.ConfigError{
			Field:   field,
			Value:   raw,
			Message: "must be an absolute http(s) URL",
		}
	}
	return nil
}

func validateEvents(field string, events []string) error {
	for _, e := range events {
		ok := false
		for _, known := range notificationEvents {
			if strings.EqualFold(strings.TrimSpace(e), known) {
				ok = true
				break
			}
		}
		if !ok {
			return dserrors.ConfigError{
				Field:      field,
				Value:      e,
				Message:    "unknown notification event",
				Suggestion: "Use one of: " + strings.Join(notificationEvents, ", "),
			}
		}
	}
	return nil
}
