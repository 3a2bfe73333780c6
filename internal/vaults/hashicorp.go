package vaults

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/hashicorp/vault/api"

	dserrors "github.com/systmms/approtate/internal/errors"
	"github.com/systmms/approtate/internal/logging"
	"github.com/systmms/approtate/pkg/vault"
)

// KVClient is the subset of *api.KVv2 the backend uses.
type KVClient interface {
	Get(ctx context.Context, secretPath string) (*api.KVSecret, error)
	Put(ctx context.Context, secretPath string, data map[string]interface{}, opts ...api.KVOption) (*api.KVSecret, error)
}

// HashiCorpConfig configures the hashicorp-vault backend. Secrets live in a
// KV v2 mount; each secret is one path holding the value under Field.
type HashiCorpConfig struct {
	// Token defaults to VAULT_TOKEN.
	Token      string `yaml:"token,omitempty" json:"token,omitempty"`
	Namespace  string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Mount      string `yaml:"mount,omitempty" json:"mount,omitempty"`
	PathPrefix string `yaml:"path_prefix,omitempty" json:"path_prefix,omitempty"`
	Field      string `yaml:"field,omitempty" json:"field,omitempty"`
}

func (c HashiCorpConfig) mountOrDefault() string {
	if c.Mount == "" {
		return "secret"
	}
	return c.Mount
}

func (c HashiCorpConfig) fieldOrDefault() string {
	if c.Field == "" {
		return "value"
	}
	return c.Field
}

// HashiCorpVault stores secrets in a HashiCorp Vault KV v2 engine.
type HashiCorpVault struct {
	kv     KVClient
	logger *logging.Logger
	prefix string
	field  string
}

// HashiCorpOption configures a HashiCorpVault.
type HashiCorpOption func(*HashiCorpVault)

// WithKVClient sets a custom KV client (for testing).
func WithKVClient(kv KVClient) HashiCorpOption {
	return func(p *HashiCorpVault) {
		p.kv = kv
	}
}

// WithHashiCorpLogger sets the logger.
func WithHashiCorpLogger(logger *logging.Logger) HashiCorpOption {
	return func(p *HashiCorpVault) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewHashiCorpVault creates the hashicorp-vault backend for the server at
// address.
func NewHashiCorpVault(address string, cfg HashiCorpConfig, opts ...HashiCorpOption) (*HashiCorpVault, error) {
	p := &HashiCorpVault{
		logger: logging.Discard(),
		prefix: strings.Trim(cfg.PathPrefix, "/"),
		field:  cfg.fieldOrDefault(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.kv != nil {
		return p, nil
	}

	if address == "" {
		return nil, dserrors.ConfigError{
			Field:      "vault.url",
			Message:    "server address is required for HashiCorp Vault",
			Suggestion: "Use format: https://vault.example.com:8200",
		}
	}

	apiCfg := api.DefaultConfig()
	apiCfg.Address = address
	// Retries belong to the scheduler, not the client.
	apiCfg.MaxRetries = 0
	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	token := cfg.Token
	if token == "" {
		token = os.Getenv("VAULT_TOKEN")
	}
	if token == "" {
		return nil, dserrors.ConfigError{
			Field:      "vault.hashicorp.token",
			Message:    "no Vault token configured",
			Suggestion: "Set vault.hashicorp.token or the VAULT_TOKEN environment variable",
		}
	}
	client.SetToken(token)
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	p.kv = client.KVv2(cfg.mountOrDefault())
	return p, nil
}

// Name returns "hashicorp-vault".
func (p *HashiCorpVault) Name() string {
	return TypeHashiCorpVault
}

func (p *HashiCorpVault) secretPath(name string) string {
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

// Get reads the field of the latest version at the secret's path.
func (p *HashiCorpVault) Get(ctx context.Context, name string) (string, error) {
	secretPath := p.secretPath(name)
	p.logger.Debug("Reading Vault KV secret %s", secretPath)

	secret, err := p.kv.Get(ctx, secretPath)
	if err != nil {
		return "", vault.NewError(p.Name(), "get", name, classifyHashiCorp(err), err)
	}
	if secret == nil || secret.Data == nil {
		return "", vault.NewError(p.Name(), "get", name, vault.ErrNotFound, errors.New("secret has no data"))
	}

	raw, ok := secret.Data[p.field]
	if !ok {
		return "", vault.NewError(p.Name(), "get", name, vault.ErrNotFound, fmt.Errorf("field %q not present", p.field))
	}
	value, ok := raw.(string)
	if !ok {
		return "", vault.NewError(p.Name(), "get", name, nil, fmt.Errorf("field %q is %T, not a string", p.field, raw))
	}
	return value, nil
}

// Set writes a new version holding only the configured field.
func (p *HashiCorpVault) Set(ctx context.Context, name, value string) error {
	secretPath := p.secretPath(name)
	p.logger.Debug("Writing Vault KV secret %s", secretPath)

	_, err := p.kv.Put(ctx, secretPath, map[string]interface{}{p.field: value})
	if err != nil {
		return vault.NewError(p.Name(), "set", name, classifyHashiCorp(err), err)
	}
	return nil
}

func classifyHashiCorp(err error) error {
	if errors.Is(err, api.ErrSecretNotFound) {
		return vault.ErrNotFound
	}

	var apiErr *api.ResponseError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			return vault.ErrNotFound
		case apiErr.StatusCode == http.StatusForbidden || apiErr.StatusCode == http.StatusUnauthorized:
			return vault.ErrAccessDenied
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500:
			return vault.ErrUnavailable
		}
		return nil
	}

	// The KV helpers sometimes only give us a string.
	if strings.Contains(err.Error(), "no secret found") {
		return vault.ErrNotFound
	}
	return vault.ErrUnavailable
}
