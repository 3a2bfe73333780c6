package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// PagerDuty Events API v2 endpoint
const pagerDutyAPIURL = "https://events.pagerduty.com/v2/enqueue"

// PagerDutySeverity represents PagerDuty incident severity levels.
type PagerDutySeverity string

const (
	SeverityCritical PagerDutySeverity = "critical"
	SeverityError    PagerDutySeverity = "error"
	SeverityWarning  PagerDutySeverity = "warning"
	SeverityInfo     PagerDutySeverity = "info"
)

// PagerDutyConfig holds configuration for PagerDuty notifications.
type PagerDutyConfig struct {
	// IntegrationKey is the PagerDuty Events API v2 integration key.
	IntegrationKey string

	// Severity is used for failed runs: critical, error, warning, info.
	// Defaults to "error". Inconsistent state is always critical.
	Severity string

	// Events specifies which rotation events trigger notifications.
	// If empty, all events are sent.
	Events []string

	// AutoResolve resolves the open incident for the application when a
	// later run completes.
	AutoResolve bool
}

// PagerDutyProvider raises incidents for failed and inconsistent runs.
type PagerDutyProvider struct {
	config PagerDutyConfig
	client *http.Client
	apiURL string
}

// NewPagerDutyProvider creates a new PagerDuty notification provider.
func NewPagerDutyProvider(config PagerDutyConfig) *PagerDutyProvider {
	return &PagerDutyProvider{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
		apiURL: pagerDutyAPIURL,
	}
}

// Name returns the provider name.
func (p *PagerDutyProvider) Name() string {
	return "pagerduty"
}

// SupportsEvent returns true if this provider handles the given event type.
func (p *PagerDutyProvider) SupportsEvent(eventType EventType) bool {
	return supportsEvent(p.config.Events, eventType)
}

// Validate checks if the provider configuration is valid.
func (p *PagerDutyProvider) Validate(_ context.Context) error {
	if p.config.IntegrationKey == "" {
		return fmt.Errorf("integration key is required")
	}

	if p.config.Severity != "" {
		switch PagerDutySeverity(strings.ToLower(p.config.Severity)) {
		case SeverityCritical, SeverityError, SeverityWarning, SeverityInfo:
		default:
			return fmt.Errorf("invalid severity: %s (must be critical, error, warning, or info)", p.config.Severity)
		}
	}

	return nil
}

// Send enqueues a PagerDuty event for the given rotation event.
func (p *PagerDutyProvider) Send(ctx context.Context, event RotationEvent) error {
	action := p.determineAction(event)
	if action == "resolve" && !p.config.AutoResolve {
		return nil
	}

	body, err := json.Marshal(p.buildPayload(event, action))
	if err != nil {
		return fmt.Errorf("failed to marshal PagerDuty payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send PagerDuty notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("PagerDuty returned status %d", resp.StatusCode)
	}

	return nil
}

func (p *PagerDutyProvider) determineAction(event RotationEvent) string {
	if event.Type == EventTypeCompleted {
		return "resolve"
	}
	return "trigger"
}

func (p *PagerDutyProvider) buildPayload(event RotationEvent, action string) map[string]interface{} {
	payload := map[string]interface{}{
		"routing_key":  p.config.IntegrationKey,
		"event_action": action,
		"dedup_key":    p.buildDedupKey(event),
	}
	if action == "resolve" {
		return payload
	}

	customDetails := map[string]interface{}{
		"run_id":        event.RunID,
		"app_object_id": event.AppObjectID,
		"secret_name":   event.SecretName,
		"event_type":    string(event.Type),
	}
	if event.VaultBackend != "" {
		customDetails["vault"] = event.VaultBackend
	}
	if event.Stage != "" {
		customDetails["stage"] = event.Stage
	}
	if event.CreatedKeyID != "" {
		customDetails["created_key_id"] = event.CreatedKeyID
	}
	if event.Error != nil {
		customDetails["error"] = event.Error.Error()
	}

	body := map[string]interface{}{
		"summary":        p.buildSummary(event),
		"severity":       p.severityFor(event),
		"source":         "approtate",
		"component":      event.AppObjectID,
		"custom_details": customDetails,
	}
	if !event.Timestamp.IsZero() {
		body["timestamp"] = event.Timestamp.Format(time.RFC3339)
	}
	payload["payload"] = body
	return payload
}

// buildSummary truncates to PagerDuty's 1024 character limit.
func (p *PagerDutyProvider) buildSummary(event RotationEvent) string {
	summary := RenderSummary(event)
	if len(summary) > 1024 {
		summary = summary[:1021] + "..."
	}
	return summary
}

// buildDedupKey groups every run for one application secret, so a
// completed run resolves the incident an earlier failure opened.
func (p *PagerDutyProvider) buildDedupKey(event RotationEvent) string {
	return strings.Join([]string{"approtate", event.AppObjectID, event.SecretName}, "-")
}

func (p *PagerDutyProvider) severityFor(event RotationEvent) string {
	if event.Type == EventTypeInconsistent {
		return string(SeverityCritical)
	}
	if p.config.Severity == "" {
		return string(SeverityError)
	}
	return strings.ToLower(p.config.Severity)
}
