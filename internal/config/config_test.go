package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/approtate/internal/config"
	dserrors "github.com/systmms/approtate/internal/errors"
	"github.com/systmms/approtate/internal/vaults"
	"github.com/systmms/approtate/pkg/rotation"
	"github.com/systmms/approtate/tests/testutil"
)

const fullConfig = `
version: 1
tenant_id: tenant-a
client_id: client-a
secret_name: ClientSecretName
app_object_id: object-a
display_name: rotated-by-approtate
validity_days: 90
prune_policy: always
cloud: AzureGovernment
schedule: "0 3 * * 1"
vault:
  type: azure-keyvault
  url: https://rotate.vault.azure.net/
  azure:
    use_managed_identity: true
log:
  format: json
metrics:
  enabled: true
  listen: ":9191"
history:
  keep: 20
notifications:
  slack:
    webhook_url: https://hooks.slack.com/services/T/B/X
    events: [failed, inconsistent]
  webhooks:
    - name: pager
      url: https://pager.example.com/hook
      retry:
        max_attempts: 2
        backoff: fixed
`

func load(t *testing.T, yamlContent string, env map[string]string) (*config.Config, error) {
	t.Helper()

	cfg := &config.Config{
		Path:      testutil.WriteTestConfig(t, yamlContent),
		LookupEnv: testutil.MapEnv(env),
	}
	return cfg, cfg.Load()
}

func TestLoadFullConfig(t *testing.T) {
	t.Parallel()

	cfg, err := load(t, fullConfig, nil)
	require.NoError(t, err)

	def := cfg.Definition
	assert.Equal(t, "tenant-a", def.TenantID)
	assert.Equal(t, "client-a", def.ClientID)
	assert.Equal(t, "ClientSecretName", def.SecretName)
	assert.Equal(t, "object-a", def.AppObjectID)
	assert.Equal(t, "AzureGovernment", def.Cloud)
	assert.Equal(t, "0 3 * * 1", def.Schedule)
	assert.Equal(t, "json", def.Log.Format)
	assert.True(t, def.Metrics.Enabled)
	assert.Equal(t, ":9191", def.Metrics.Listen)
	assert.Equal(t, 20, def.History.Keep)
	assert.True(t, def.Vault.Azure.UseManagedIdentity)

	require.NotNil(t, def.Notifications)
	require.NotNil(t, def.Notifications.Slack)
	assert.Equal(t, []string{"failed", "inconsistent"}, def.Notifications.Slack.Events)
	require.Len(t, def.Notifications.Webhooks, 1)
	assert.Equal(t, "fixed", def.Notifications.Webhooks[0].Retry.Backoff)

	rc := def.Rotation()
	assert.Equal(t, "https://rotate.vault.azure.net/", rc.VaultURL)
	assert.Equal(t, 90*24*time.Hour, rc.Validity)
	assert.Equal(t, rotation.PruneAlways, rc.PrunePolicy)
	assert.Equal(t, "rotated-by-approtate", rc.DisplayName)

	assert.NoError(t, def.Validate())
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := load(t, `
tenant_id: t
client_id: c
secret_name: s
app_object_id: o
vault:
  url: https://rotate.vault.azure.net/
`, nil)
	require.NoError(t, err)

	def := cfg.Definition
	assert.Equal(t, 1, def.Version)
	assert.Equal(t, vaults.TypeAzureKeyVault, def.Vault.Type)
	assert.Equal(t, config.DefaultSchedule, def.Schedule)
	assert.Equal(t, "AzurePublic", def.Cloud)
	assert.Equal(t, config.DefaultMetricsListen, def.Metrics.Listen)
	assert.Equal(t, "text", def.Log.Format)
	assert.Nil(t, def.Notifications)

	rc := def.Rotation().WithDefaults()
	assert.Equal(t, rotation.DefaultValidity, rc.Validity)
	assert.Equal(t, rotation.PruneSkipUnchanged, rc.PrunePolicy)
	assert.Equal(t, "s", rc.DisplayName)
}

func TestEnvOverrides(t *testing.T) {
	t.Parallel()

	t.Run("prefixed names win over legacy names and the file", func(t *testing.T) {
		t.Parallel()

		cfg, err := load(t, fullConfig, map[string]string{
			"APPROTATE_TENANT_ID": "tenant-env",
			"TenantId":            "tenant-legacy",
			"ClientId":            "client-legacy",
		})
		require.NoError(t, err)
		assert.Equal(t, "tenant-env", cfg.Definition.TenantID)
		assert.Equal(t, "client-legacy", cfg.Definition.ClientID)
	})

	t.Run("legacy app settings are enough on their own", func(t *testing.T) {
		t.Parallel()

		cfg := &config.Config{
			Path:     "/nonexistent/approtate.yaml",
			Optional: true,
			LookupEnv: testutil.MapEnv(map[string]string{
				"TenantId":         "t",
				"ClientId":         "c",
				"ClientSecretName": "s",
				"AppObjectId":      "o",
				"KeyVaultURI":      "https://rotate.vault.azure.net/",
			}),
		}
		require.NoError(t, cfg.Load())
		assert.NoError(t, cfg.Definition.Validate())
		assert.Equal(t, "https://rotate.vault.azure.net/", cfg.Definition.Rotation().VaultURL)
	})

	t.Run("empty values are ignored", func(t *testing.T) {
		t.Parallel()

		cfg, err := load(t, fullConfig, map[string]string{"APPROTATE_TENANT_ID": ""})
		require.NoError(t, err)
		assert.Equal(t, "tenant-a", cfg.Definition.TenantID)
	})

	t.Run("validity days", func(t *testing.T) {
		t.Parallel()

		cfg, err := load(t, fullConfig, map[string]string{"APPROTATE_VALIDITY_DAYS": "30"})
		require.NoError(t, err)
		assert.Equal(t, 30, cfg.Definition.ValidityDays)

		_, err = load(t, fullConfig, map[string]string{"APPROTATE_VALIDITY_DAYS": "soon"})
		var cfgErr dserrors.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "APPROTATE_VALIDITY_DAYS", cfgErr.Field)
	})
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Path: "/nonexistent/approtate.yaml", LookupEnv: testutil.NoEnv}
	err := cfg.Load()

	var cfgErr dserrors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "path", cfgErr.Field)

	cfg.Optional = true
	require.NoError(t, cfg.Load())
	assert.Equal(t, config.DefaultSchedule, cfg.Definition.Schedule)
}

func TestLoadRejectsBadDocuments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name:    "invalid yaml",
			yaml:    "tenant_id: [unclosed",
			wantMsg: "invalid YAML syntax",
		},
		{
			name:    "unknown top-level key",
			yaml:    "tenant_id: t\nteant_id: typo\n",
			wantMsg: "schema validation failed",
		},
		{
			name:    "unknown vault key",
			yaml:    "vault:\n  type: keyring\n  uri: x\n",
			wantMsg: "schema validation failed",
		},
		{
			name:    "bad prune policy",
			yaml:    "prune_policy: sometimes\n",
			wantMsg: "prune_policy",
		},
		{
			name:    "bad vault type",
			yaml:    "vault:\n  type: etcd\n",
			wantMsg: "schema validation failed",
		},
		{
			name:    "bad notification event",
			yaml:    "notifications:\n  slack:\n    webhook_url: https://hooks.slack.com/x\n    events: [started]\n",
			wantMsg: "schema validation failed",
		},
		{
			name:    "unsupported version",
			yaml:    "version: 2\n",
			wantMsg: "version",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := load(t, tt.yaml, nil)
			require.Error(t, err)

			var cfgErr dserrors.ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %T", err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadEmptyFile(t *testing.T) {
	t.Parallel()

	cfg, err := load(t, "\n", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Definition.Version)
}

func TestRotationVaultURLFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		vault vaults.Config
		want  string
	}{
		{"keyring", vaults.Config{Type: vaults.TypeKeyring}, "keyring://approtate"},
		{"keyring custom service", vaults.Config{Type: vaults.TypeKeyring, Keyring: vaults.KeyringConfig{Service: "ops"}}, "keyring://ops"},
		{"aws region", vaults.Config{Type: vaults.TypeAWSSecretsManager, AWS: vaults.AWSConfig{Region: "eu-west-1"}}, "https://secretsmanager.eu-west-1.amazonaws.com"},
		{"gcp project", vaults.Config{Type: vaults.TypeGCPSecretManager, GCP: vaults.GCPConfig{ProjectID: "p1"}}, "projects/p1"},
		{"explicit url wins", vaults.Config{Type: vaults.TypeKeyring, URL: "https://override"}, "https://override"},
		{"azure without url", vaults.Config{Type: vaults.TypeAzureKeyVault}, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			def := testutil.NewTestConfig(t).WithVault(tt.vault).Build()
			assert.Equal(t, tt.want, def.Rotation().VaultURL)
		})
	}
}

func TestDefinitionValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*config.Definition)
		wantField string
		wantMsg   string
	}{
		{
			name:    "valid",
			mutate:  func(*config.Definition) {},
			wantMsg: "",
		},
		{
			name:    "missing identifiers",
			mutate:  func(d *config.Definition) { d.TenantID = ""; d.AppObjectID = " " },
			wantMsg: "tenant_id, app_object_id",
		},
		{
			name:    "azure vault without url",
			mutate:  func(d *config.Definition) { d.Vault.URL = "" },
			wantMsg: "vault_url",
		},
		{
			name:    "negative validity",
			mutate:  func(d *config.Definition) { d.ValidityDays = -1 },
			wantMsg: "negative",
		},
		{
			name:      "unknown vault type",
			mutate:    func(d *config.Definition) { d.Vault.Type = "etcd" },
			wantField: "vault.type",
			wantMsg:   "unknown vault type",
		},
		{
			name: "bad slack url",
			mutate: func(d *config.Definition) {
				d.Notifications = &config.NotificationConfig{
					Slack: &config.SlackNotificationConfig{WebhookURL: "not a url"},
				}
			},
			wantField: "notifications.slack.webhook_url",
			wantMsg:   "absolute",
		},
		{
			name: "bad webhook event",
			mutate: func(d *config.Definition) {
				d.Notifications = &config.NotificationConfig{
					Webhooks: []config.WebhookNotificationConfig{
						{URL: "https://hooks.example.com", Events: []string{"started"}},
					},
				}
			},
			wantField: "notifications.webhooks[0].events",
			wantMsg:   "unknown notification event",
		},
		{
			name: "pagerduty without key",
			mutate: func(d *config.Definition) {
				d.Notifications = &config.NotificationConfig{PagerDuty: &config.PagerDutyNotificationConfig{}}
			},
			wantField: "notifications.pagerduty.integration_key",
			wantMsg:   "integration key is required",
		},
		{
			name: "email without recipients",
			mutate: func(d *config.Definition) {
				d.Notifications = &config.NotificationConfig{Email: &config.EmailNotificationConfig{
					SMTP: config.SMTPConfig{Host: "smtp.example.com", Port: 587},
					From: "approtate@example.com",
				}}
			},
			wantField: "notifications.email",
			wantMsg:   "at least one to address",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			def := testutil.NewTestConfig(t).Mutate(tt.mutate).Build()
			err := def.Validate()
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)

			var cfgErr dserrors.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, cfgErr.Field)
			}
		})
	}
}

func TestBuilderRoundTripsThroughLoad(t *testing.T) {
	t.Parallel()

	path := testutil.NewTestConfig(t).
		WithVault(vaults.Config{Type: vaults.TypeHashiCorpVault, URL: "https://vault.example.com:8200"}).
		WithSchedule("*/5 * * * *").
		WithNotifications(&config.NotificationConfig{
			PagerDuty: &config.PagerDutyNotificationConfig{IntegrationKey: "routing", AutoResolve: true},
		}).
		Write()

	cfg := &config.Config{Path: path, LookupEnv: testutil.NoEnv}
	require.NoError(t, cfg.Load())
	assert.Equal(t, "*/5 * * * *", cfg.Definition.Schedule)
	assert.Equal(t, vaults.TypeHashiCorpVault, cfg.Definition.Vault.Type)
	require.NotNil(t, cfg.Definition.Notifications)
	assert.True(t, cfg.Definition.Notifications.PagerDuty.AutoResolve)
	assert.NoError(t, cfg.Definition.Validate())
}
