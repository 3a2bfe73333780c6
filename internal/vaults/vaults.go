// Package vaults implements vault.Store for the supported secret backends
// and selects one from configuration.
package vaults

import (
	"context"
	"fmt"
	"sort"

	dserrors "github.com/systmms/approtate/internal/errors"
	"github.com/systmms/approtate/internal/logging"
	"github.com/systmms/approtate/pkg/rotation"
	"github.com/systmms/approtate/pkg/vault"
)

// Backend names.
const (
	TypeAzureKeyVault     = "azure-keyvault"
	TypeAWSSecretsManager = "aws-secretsmanager"
	TypeGCPSecretManager  = "gcp-secretmanager"
	TypeHashiCorpVault    = "hashicorp-vault"
	TypeKeyring           = "keyring"
)

// Config selects a backend and carries every backend's settings. Only the
// section matching Type is used.
type Config struct {
	Type string `yaml:"type" json:"type"`
	// URL is the Key Vault URL for azure-keyvault, the server address for
	// hashicorp-vault and an endpoint override for aws-secretsmanager.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	Azure     AzureConfig     `yaml:"azure,omitempty" json:"azure,omitempty"`
	AWS       AWSConfig       `yaml:"aws,omitempty" json:"aws,omitempty"`
	GCP       GCPConfig       `yaml:"gcp,omitempty" json:"gcp,omitempty"`
	HashiCorp HashiCorpConfig `yaml:"hashicorp,omitempty" json:"hashicorp,omitempty"`
	Keyring   KeyringConfig   `yaml:"keyring,omitempty" json:"keyring,omitempty"`
}

// TypeOrDefault returns Type, defaulting to azure-keyvault.
func (c Config) TypeOrDefault() string {
	if c.Type == "" {
		return TypeAzureKeyVault
	}
	return c.Type
}

// Endpoint identifies the vault instance. It is empty when the backend is
// missing the setting that locates it.
func (c Config) Endpoint() string {
	switch c.TypeOrDefault() {
	case TypeAzureKeyVault, TypeHashiCorpVault:
		return c.URL
	case TypeAWSSecretsManager:
		if c.URL != "" {
			return c.URL
		}
		if c.AWS.Region == "" {
			return ""
		}
		return fmt.Sprintf("https://secretsmanager.%s.amazonaws.com", c.AWS.Region)
	case TypeGCPSecretManager:
		if c.GCP.ProjectID == "" {
			return ""
		}
		return "projects/" + c.GCP.ProjectID
	case TypeKeyring:
		return "keyring://" + c.Keyring.serviceOrDefault()
	}
	return ""
}

type opener func(ctx context.Context, cfg Config, logger *logging.Logger) (vault.Store, error)

var openers = map[string]opener{
	TypeAzureKeyVault: func(_ context.Context, cfg Config, logger *logging.Logger) (vault.Store, error) {
		return NewAzureKeyVault(cfg.URL, cfg.Azure, WithAzureLogger(logger))
	},
	TypeAWSSecretsManager: func(ctx context.Context, cfg Config, logger *logging.Logger) (vault.Store, error) {
		return NewAWSSecretsManager(ctx, cfg.URL, cfg.AWS, WithAWSLogger(logger))
	},
	TypeGCPSecretManager: func(ctx context.Context, cfg Config, logger *logging.Logger) (vault.Store, error) {
		return NewGCPSecretManager(ctx, cfg.GCP, WithGCPLogger(logger))
	},
	TypeHashiCorpVault: func(_ context.Context, cfg Config, logger *logging.Logger) (vault.Store, error) {
		return NewHashiCorpVault(cfg.URL, cfg.HashiCorp, WithHashiCorpLogger(logger))
	},
	TypeKeyring: func(_ context.Context, cfg Config, logger *logging.Logger) (vault.Store, error) {
		return NewKeyring(cfg.Keyring, WithKeyringLogger(logger)), nil
	},
}

// Types lists the supported backends.
func Types() []string {
	types := make([]string, 0, len(openers))
	for t := range openers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Open creates the configured backend.
func Open(ctx context.Context, cfg Config, logger *logging.Logger) (vault.Store, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	open, ok := openers[cfg.TypeOrDefault()]
	if !ok {
		return nil, dserrors.ConfigError{
			Field:      "vault.type",
			Value:      cfg.Type,
			Message:    "unknown vault type",
			Suggestion: fmt.Sprintf("Use one of: %v", Types()),
		}
	}
	return open(ctx, cfg, logger)
}

// Factory adapts Open to rotation.VaultFactory.
func Factory(cfg Config, logger *logging.Logger) rotation.VaultFactory {
	return func(ctx context.Context, _ rotation.Config) (vault.Store, error) {
		return Open(ctx, cfg, logger)
	}
}
