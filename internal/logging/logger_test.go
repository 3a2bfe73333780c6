package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevels(t *testing.T) {
	t.Parallel()

	var quiet, verbose bytes.Buffer
	NewWithOptions(Options{NoColor: true, Output: &quiet}).Debug("hidden %d", 1)
	NewWithOptions(Options{Debug: true, NoColor: true, Output: &verbose}).Debug("shown %d", 2)

	assert.Empty(t, quiet.String(), "debug is off by default")
	assert.Contains(t, verbose.String(), "shown 2")
	assert.Contains(t, verbose.String(), "level=debug")
}

func TestLoggerTextFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithOptions(Options{NoColor: true, Output: &buf}).
		WithField("run_id", "run-1").
		WithFields(map[string]interface{}{"stage": "read-secret"})

	logger.WithError(errors.New("denied")).Warn("Stage %s failed", "read-secret")

	out := buf.String()
	assert.Contains(t, out, "level=warning")
	assert.Contains(t, out, `msg="Stage read-secret failed"`)
	assert.Contains(t, out, "run_id=run-1")
	assert.Contains(t, out, "stage=read-secret")
	assert.Contains(t, out, "error=denied")
}

func TestLoggerJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewWithOptions(Options{JSON: true, Output: &buf}).
		WithField("secret", Secret("hunter22")).
		Info("Stored %s", "ClientSecretName")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Stored ClientSecretName", entry["msg"])
	assert.Equal(t, "[REDACTED]", entry["secret"])
	assert.NotContains(t, buf.String(), "hunter22")
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	// Must not panic or write anywhere visible.
	Discard().WithField("k", "v").Error("dropped %s", "message")
}

func TestRedact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		secrets  []string
		expected string
	}{
		{"single secret", "stored new-secret in vault", []string{"new-secret"}, "stored [REDACTED] in vault"},
		{"old and new", "old-secret -> new-secret", []string{"old-secret", "new-secret"}, "[REDACTED] -> [REDACTED]"},
		{"empty secret ignored", "nothing to hide", []string{""}, "nothing to hide"},
		{"short secret ignored", "id ab", []string{"ab"}, "id ab"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Redact(tt.input, tt.secrets))
		})
	}
}
