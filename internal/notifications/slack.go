package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SlackConfig holds configuration for Slack webhook notifications.
type SlackConfig struct {
	// WebhookURL is the Slack incoming webhook URL.
	WebhookURL string

	// Channel overrides the webhook's default channel.
	Channel string

	// Events specifies which rotation events trigger notifications.
	// If empty, all events are sent.
	Events []string

	Mentions *SlackMentions
}

// SlackMentions defines who to mention for specific event types.
type SlackMentions struct {
	// OnFailure lists Slack handles to mention when rotation fails.
	OnFailure []string

	// OnInconsistent lists handles to mention when manual reconciliation is
	// needed. Falls back to OnFailure when empty.
	OnInconsistent []string
}

// SlackProvider sends rotation notifications to Slack via webhooks.
type SlackProvider struct {
	config SlackConfig
	client *http.Client
}

// NewSlackProvider creates a new Slack notification provider.
func NewSlackProvider(config SlackConfig) *SlackProvider {
	return &SlackProvider{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns the provider name.
func (p *SlackProvider) Name() string {
	return "slack"
}

// SupportsEvent returns true if this provider handles the given event type.
func (p *SlackProvider) SupportsEvent(eventType EventType) bool {
	return supportsEvent(p.config.Events, eventType)
}

// Validate checks if the provider configuration is valid.
func (p *SlackProvider) Validate(_ context.Context) error {
	if p.config.WebhookURL == "" {
		return fmt.Errorf("webhook URL is required")
	}

	parsed, err := url.Parse(p.config.WebhookURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid webhook URL: %s", p.config.WebhookURL)
	}

	return nil
}

// Send posts a Block Kit message for the event.
func (p *SlackProvider) Send(ctx context.Context, event RotationEvent) error {
	body, err := json.Marshal(p.buildMessage(event))
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}

	return nil
}

func (p *SlackProvider) buildMessage(event RotationEvent) map[string]interface{} {
	blocks := make([]map[string]interface{}, 0)

	blocks = append(blocks, map[string]interface{}{
		"type": "header",
		"text": map[string]interface{}{
			"type":  "plain_text",
			"text":  fmt.Sprintf("%s %s", eventEmoji(event.Type), eventTitle(event.Type)),
			"emoji": true,
		},
	})

	blocks = append(blocks, map[string]interface{}{
		"type": "section",
		"fields": []map[string]interface{}{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Application:*\n%s", event.AppObjectID),
			},
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Secret:*\n%s", event.SecretName),
			},
		},
	})

	fields := make([]map[string]interface{}, 0)
	if event.Stage != "" {
		fields = append(fields, map[string]interface{}{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Stage:*\n%s", event.Stage),
		})
	}
	if event.Duration > 0 {
		fields = append(fields, map[string]interface{}{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Duration:*\n%s", event.Duration.Round(time.Millisecond)),
		})
	}
	if event.CreatedKeyID != "" {
		fields = append(fields, map[string]interface{}{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*New credential:*\n`%s`", event.CreatedKeyID),
		})
	}
	if len(fields) > 0 {
		blocks = append(blocks, map[string]interface{}{
			"type":   "section",
			"fields": fields,
		})
	}

	blocks = append(blocks, map[string]interface{}{
		"type": "section",
		"text": map[string]interface{}{
			"type": "mrkdwn",
			"text": RenderSummary(event),
		},
	})

	if event.Error != nil {
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]interface{}{
				"type": "mrkdwn",
				"text": fmt.Sprintf(":warning: *Error:*\n```%s```", event.Error.Error()),
			},
		})
	}

	if mentions := p.getMentions(event); mentions != "" {
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]interface{}{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Attention:* %s", mentions),
			},
		})
	}

	blocks = append(blocks, map[string]interface{}{
		"type": "context",
		"elements": []map[string]interface{}{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("<!date^%d^{date_short_pretty} at {time}|%s> run %s",
					event.Timestamp.Unix(), event.Timestamp.Format(time.RFC3339), event.RunID),
			},
		},
	})

	message := map[string]interface{}{
		"text":   RenderSummary(event),
		"blocks": blocks,
	}
	if p.config.Channel != "" {
		message["channel"] = p.config.Channel
	}
	return message
}

func eventEmoji(eventType EventType) string {
	switch eventType {
	case EventTypeCompleted:
		return ":white_check_mark:"
	case EventTypeFailed:
		return ":x:"
	case EventTypeInconsistent:
		return ":rotating_light:"
	default:
		return ":bell:"
	}
}

func eventTitle(eventType EventType) string {
	switch eventType {
	case EventTypeCompleted:
		return "Secret Rotated"
	case EventTypeFailed:
		return "Secret Rotation Failed"
	case EventTypeInconsistent:
		return "Secret Rotation Needs Manual Reconciliation"
	default:
		return "Rotation Event"
	}
}

func (p *SlackProvider) getMentions(event RotationEvent) string {
	if p.config.Mentions == nil {
		return ""
	}

	var mentions []string
	switch event.Type {
	case EventTypeFailed:
		mentions = p.config.Mentions.OnFailure
	case EventTypeInconsistent:
		mentions = p.config.Mentions.OnInconsistent
		if len(mentions) == 0 {
			mentions = p.config.Mentions.OnFailure
		}
	}

	return strings.Join(mentions, " ")
}
