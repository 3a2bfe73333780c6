package notifications

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/approtate/internal/config"
	"github.com/systmms/approtate/internal/logging"
)

func TestNewManagerFromConfig_Nothing(t *testing.T) {
	t.Parallel()

	m, err := NewManagerFromConfig(nil, logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = NewManagerFromConfig(&config.NotificationConfig{QueueSize: 5}, logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestNewManagerFromConfig_AllProviders(t *testing.T) {
	t.Parallel()

	m, err := NewManagerFromConfig(&config.NotificationConfig{
		Slack: &config.SlackNotificationConfig{
			WebhookURL: "https://hooks.slack.com/services/T/B/X",
			Mentions:   &config.SlackMentions{OnInconsistent: []string{"@identity"}},
		},
		PagerDuty: &config.PagerDutyNotificationConfig{IntegrationKey: "routing", Events: []string{"inconsistent"}},
		Email: &config.EmailNotificationConfig{
			SMTP: config.SMTPConfig{Host: "smtp.example.com", Port: 25},
			From: "approtate@example.com",
			To:   []string{"ops@example.com"},
		},
		Webhooks: []config.WebhookNotificationConfig{
			{URL: "https://hooks.example.com/a", Method: "put", TimeoutSeconds: 3},
			{Name: "audit", URL: "https://hooks.example.com/b", Retry: &config.WebhookRetryConfig{MaxAttempts: 1, Backoff: "fixed"}},
		},
	}, logging.Discard())
	require.NoError(t, err)
	require.NotNil(t, m)

	var names []string
	for _, p := range m.Providers() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"slack", "pagerduty", "email", "webhook:webhook-1", "webhook:audit"}, names)

	pd := m.Providers()[1]
	assert.True(t, pd.SupportsEvent(EventTypeInconsistent))
	assert.False(t, pd.SupportsEvent(EventTypeFailed))

	mail := m.Providers()[2].(*EmailProvider)
	assert.Equal(t, "smtp.example.com", mail.config.SMTP.Host)

	first := m.Providers()[3].(*WebhookProvider)
	assert.Equal(t, "PUT", first.config.Method)
	assert.Equal(t, 3*time.Second, first.config.Timeout)

	second := m.Providers()[4].(*WebhookProvider)
	assert.Equal(t, 1, second.config.Retry.MaxAttempts)
	assert.Equal(t, "fixed", second.config.Retry.Backoff)
}

func TestNewManagerFromConfig_InvalidProvider(t *testing.T) {
	t.Parallel()

	_, err := NewManagerFromConfig(&config.NotificationConfig{
		Webhooks: []config.WebhookNotificationConfig{{URL: "https://hooks.example.com", Method: "DELETE"}},
	}, logging.Discard())
	assert.ErrorContains(t, err, "invalid webhook:webhook-1 notification config")
}
