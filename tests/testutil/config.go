// Package testutil provides test helpers shared across approtate packages:
// configuration builders and a log-capturing logger.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/systmms/approtate/internal/config"
	"github.com/systmms/approtate/internal/vaults"
)

// Identifiers used by the builder's default configuration.
const (
	TestTenantID    = "11111111-1111-1111-1111-111111111111"
	TestClientID    = "22222222-2222-2222-2222-222222222222"
	TestAppObjectID = "33333333-3333-3333-3333-333333333333"
	TestSecretName  = "ClientSecretName"
	TestVaultURL    = "https://rotate-test.vault.azure.net/"
)

// TestConfigBuilder provides a fluent API for building test configurations.
//
// Example usage:
//
//	path := testutil.NewTestConfig(t).
//	    WithVault(vaults.Config{Type: vaults.TypeKeyring}).
//	    WithSchedule("*/5 * * * *").
//	    Write()
type TestConfigBuilder struct {
	config  *config.Definition
	tempDir string
	t       *testing.T
}

// NewTestConfig creates a builder that starts from a complete, valid
// Azure Key Vault configuration.
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	return &TestConfigBuilder{
		config: &config.Definition{
			Version:     1,
			TenantID:    TestTenantID,
			ClientID:    TestClientID,
			SecretName:  TestSecretName,
			AppObjectID: TestAppObjectID,
			Vault: vaults.Config{
				Type: vaults.TypeAzureKeyVault,
				URL:  TestVaultURL,
			},
		},
		tempDir: t.TempDir(),
		t:       t,
	}
}

// WithVault replaces the vault section.
func (b *TestConfigBuilder) WithVault(v vaults.Config) *TestConfigBuilder {
	b.config.Vault = v
	return b
}

// WithSchedule sets the cron schedule.
func (b *TestConfigBuilder) WithSchedule(schedule string) *TestConfigBuilder {
	b.config.Schedule = schedule
	return b
}

// WithHistoryDir points run history at dir.
func (b *TestConfigBuilder) WithHistoryDir(dir string) *TestConfigBuilder {
	b.config.History.Dir = dir
	return b
}

// WithNotifications sets the notifications section.
func (b *TestConfigBuilder) WithNotifications(n *config.NotificationConfig) *TestConfigBuilder {
	b.config.Notifications = n
	return b
}

// Mutate applies fn to the definition for anything the builder lacks.
func (b *TestConfigBuilder) Mutate(fn func(*config.Definition)) *TestConfigBuilder {
	fn(b.config)
	return b
}

// Build returns the in-memory definition.
func (b *TestConfigBuilder) Build() *config.Definition {
	return b.config
}

// Write writes the configuration to a temporary approtate.yaml and returns
// its path.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	data, err := yaml.Marshal(b.config)
	if err != nil {
		b.t.Fatalf("Failed to marshal test config: %v", err)
	}

	path := filepath.Join(b.tempDir, "approtate.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		b.t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

// WriteTestConfig writes a hand-written YAML document to a temporary file
// and returns its path.
func WriteTestConfig(t *testing.T, yamlContent string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "approtate.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

// NoEnv is a LookupEnv that finds nothing, isolating tests from the
// process environment.
func NoEnv(string) (string, bool) {
	return "", false
}

// MapEnv returns a LookupEnv backed by env.
func MapEnv(env map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
}
