package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) *RetryConfig {
	return &RetryConfig{MaxAttempts: attempts, Backoff: "fixed", InitialWait: time.Millisecond}
}

func TestWebhookProvider_Name(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "webhook:ops", NewWebhookProvider(WebhookConfig{Name: "ops"}).Name())
	assert.Equal(t, "webhook", NewWebhookProvider(WebhookConfig{}).Name())
}

func TestWebhookProvider_SupportsEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		events    []string
		eventType EventType
		want      bool
	}{
		{"empty events supports all", nil, EventTypeInconsistent, true},
		{"explicit failed supported", []string{"failed", "inconsistent"}, EventTypeFailed, true},
		{"completed not in list", []string{"failed", "inconsistent"}, EventTypeCompleted, false},
		{"case insensitive", []string{" Inconsistent "}, EventTypeInconsistent, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			provider := NewWebhookProvider(WebhookConfig{Events: tt.events})
			assert.Equal(t, tt.want, provider.SupportsEvent(tt.eventType))
		})
	}
}

func TestWebhookProvider_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config WebhookConfig
		errMsg string
	}{
		{"valid config", WebhookConfig{URL: "https://example.com/webhook"}, ""},
		{"missing URL", WebhookConfig{}, "URL is required"},
		{"invalid URL", WebhookConfig{URL: "not-a-url"}, "invalid URL"},
		{"invalid method", WebhookConfig{URL: "https://example.com/webhook", Method: "DELETE"}, "invalid method"},
		{"put method", WebhookConfig{URL: "https://example.com/webhook", Method: "put"}, ""},
		{"invalid backoff", WebhookConfig{URL: "https://example.com/webhook", Retry: &RetryConfig{Backoff: "random"}}, "invalid backoff"},
		{"bad template", WebhookConfig{URL: "https://example.com/webhook", PayloadTemplate: "{{.Type"}, "payload template"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := NewWebhookProvider(tt.config).Validate(context.Background())
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestWebhookProvider_SendDefaultPayload(t *testing.T) {
	t.Parallel()

	var received map[string]interface{}
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	provider := NewWebhookProvider(WebhookConfig{
		URL:     server.URL,
		Headers: map[string]string{"Authorization": "Bearer hook-token"},
		Retry:   fastRetry(1),
	})

	event := RotationEvent{
		Type:         EventTypeInconsistent,
		RunID:        "run-1",
		AppObjectID:  "obj-1",
		SecretName:   "ClientSecretName",
		VaultBackend: "azure-keyvault",
		Stage:        "persist-secret",
		CreatedKeyID: "key-1",
		Duration:     2 * time.Second,
		Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, provider.Send(context.Background(), event))

	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "Bearer hook-token", headers.Get("Authorization"))
	assert.Equal(t, "inconsistent", received["event"])
	assert.Equal(t, "run-1", received["run_id"])
	assert.Equal(t, "obj-1", received["app_object_id"])
	assert.Equal(t, "azure-keyvault", received["vault"])
	assert.Equal(t, "persist-secret", received["stage"])
	assert.Equal(t, "key-1", received["created_key_id"])
	assert.Equal(t, 2.0, received["duration_seconds"])
	assert.Equal(t, "2026-03-01T12:00:00Z", received["timestamp"])
	assert.Contains(t, received["summary"], "Manual reconciliation required")
	assert.NotContains(t, received, "error")
}

func TestWebhookProvider_SendCustomTemplate(t *testing.T) {
	t.Parallel()

	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider := NewWebhookProvider(WebhookConfig{
		URL:             server.URL,
		PayloadTemplate: `{"text":"{{.Type}} {{.SecretName}} {{.RemovedCount}}"}`,
		Retry:           fastRetry(1),
	})
	require.NoError(t, provider.Send(context.Background(), RotationEvent{
		Type:         EventTypeCompleted,
		SecretName:   "ClientSecretName",
		RemovedCount: 3,
	}))

	assert.Equal(t, `{"text":"completed ClientSecretName 3"}`, body)
}

func TestWebhookProvider_TemplateEscapesFreeText(t *testing.T) {
	t.Parallel()

	var raw []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider := NewWebhookProvider(WebhookConfig{
		URL:             server.URL,
		PayloadTemplate: `{"error": {{json .Error}}, "summary": {{json .Summary}}, "removed": {{json .RemovedCount}}}`,
		Retry:           fastRetry(1),
	})
	cause := errors.New("vault said \"denied\"\nretry later")
	require.NoError(t, provider.Send(context.Background(), RotationEvent{
		Type:       EventTypeFailed,
		SecretName: "ClientSecretName",
		Stage:      "persist-secret",
		Error:      cause,
	}))

	var received map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &received), "body: %s", raw)
	assert.Equal(t, cause.Error(), received["error"])
	assert.Contains(t, received["summary"], "ClientSecretName")
	assert.Equal(t, 0.0, received["removed"])
}

func TestWebhookProvider_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider := NewWebhookProvider(WebhookConfig{URL: server.URL, Retry: fastRetry(3)})
	require.NoError(t, provider.Send(context.Background(), RotationEvent{Type: EventTypeFailed}))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWebhookProvider_GivesUp(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := NewWebhookProvider(WebhookConfig{URL: server.URL, Retry: fastRetry(2)})
	err := provider.Send(context.Background(), RotationEvent{Type: EventTypeFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestWebhookProvider_CalculateBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		backoff string
		attempt int
		want    time.Duration
	}{
		{"linear", 3, 3 * time.Second},
		{"exponential", 1, 1 * time.Second},
		{"exponential", 3, 4 * time.Second},
		{"fixed", 5, 1 * time.Second},
	}

	for _, tt := range tests {
		provider := NewWebhookProvider(WebhookConfig{Retry: &RetryConfig{Backoff: tt.backoff}})
		assert.Equal(t, tt.want, provider.calculateBackoff(tt.attempt), "%s/%d", tt.backoff, tt.attempt)
	}
}
