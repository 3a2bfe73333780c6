package vaults

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	dserrors "github.com/systmms/approtate/internal/errors"
	"github.com/systmms/approtate/internal/logging"
	"github.com/systmms/approtate/pkg/vault"
)

// AzureKeyVaultClientAPI is the subset of *azsecrets.Client the backend uses.
type AzureKeyVaultClientAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
}

// AzureConfig selects how the backend authenticates to Key Vault. This
// identity is independent of the application whose secret is rotated.
type AzureConfig struct {
	TenantID string `yaml:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	ClientID string `yaml:"client_id,omitempty" json:"client_id,omitempty"`
	// ClientSecret authenticates a separate service principal to the vault.
	ClientSecret       string `yaml:"client_secret,omitempty" json:"client_secret,omitempty"`
	UseManagedIdentity bool   `yaml:"use_managed_identity,omitempty" json:"use_managed_identity,omitempty"`
	UserAssignedID     string `yaml:"user_assigned_identity_id,omitempty" json:"user_assigned_identity_id,omitempty"`
	ContentType        string `yaml:"content_type,omitempty" json:"content_type,omitempty"`
}

// AzureKeyVault stores secrets in Azure Key Vault.
type AzureKeyVault struct {
	client   AzureKeyVaultClientAPI
	logger   *logging.Logger
	config   AzureConfig
	vaultURL string
}

// AzureOption configures an AzureKeyVault.
type AzureOption func(*AzureKeyVault)

// WithAzureKeyVaultClient sets a custom Key Vault client (for testing).
func WithAzureKeyVaultClient(client AzureKeyVaultClientAPI) AzureOption {
	return func(a *AzureKeyVault) {
		a.client = client
	}
}

// WithAzureLogger sets the logger.
func WithAzureLogger(logger *logging.Logger) AzureOption {
	return func(a *AzureKeyVault) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAzureKeyVault creates the azure-keyvault backend.
func NewAzureKeyVault(vaultURL string, config AzureConfig, opts ...AzureOption) (*AzureKeyVault, error) {
	if vaultURL == "" {
		return nil, dserrors.ConfigError{
			Field:      "vault.url",
			Message:    "vault url is required for Azure Key Vault",
			Suggestion: "Provide the Key Vault URL (e.g., https://my-vault.vault.azure.net/)",
		}
	}
	if u, err := url.Parse(vaultURL); err != nil || u.Scheme != "https" || u.Host == "" {
		return nil, dserrors.ConfigError{
			Field:      "vault.url",
			Value:      vaultURL,
			Message:    "Invalid vault url format",
			Suggestion: "Use format: https://vault-name.vault.azure.net/",
		}
	}

	a := &AzureKeyVault{
		logger:   logging.Discard(),
		config:   config,
		vaultURL: vaultURL,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.client == nil {
		client, err := createAzureKeyVaultClient(vaultURL, config)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Key Vault client: %w", err)
		}
		a.client = client
	}
	return a, nil
}

func createAzureKeyVaultClient(vaultURL string, config AzureConfig) (*azsecrets.Client, error) {
	var cred azcore.TokenCredential
	var err error

	switch {
	case config.UseManagedIdentity && config.UserAssignedID != "":
		cred, err = azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
			ID: azidentity.ClientID(config.UserAssignedID),
		})
	case config.UseManagedIdentity:
		cred, err = azidentity.NewManagedIdentityCredential(nil)
	case config.ClientSecret != "":
		cred, err = azidentity.NewClientSecretCredential(config.TenantID, config.ClientID, config.ClientSecret, nil)
	default:
		// Environment, workload identity, managed identity or Azure CLI
		cred, err = azidentity.NewDefaultAzureCredential(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	return azsecrets.NewClient(vaultURL, cred, nil)
}

// Name returns "azure-keyvault".
func (a *AzureKeyVault) Name() string {
	return TypeAzureKeyVault
}

// Get reads the latest version of the secret.
func (a *AzureKeyVault) Get(ctx context.Context, name string) (string, error) {
	a.logger.Debug("Reading Azure Key Vault secret %s", name)

	resp, err := a.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		return "", vault.NewError(a.Name(), "get", name, classifyAzure(err), err)
	}
	if resp.Value == nil {
		return "", vault.NewError(a.Name(), "get", name, vault.ErrNotFound, errors.New("secret has no value"))
	}
	return *resp.Value, nil
}

// Set writes a new version of the secret, which becomes the latest.
func (a *AzureKeyVault) Set(ctx context.Context, name, value string) error {
	a.logger.Debug("Writing Azure Key Vault secret %s", name)

	params := azsecrets.SetSecretParameters{Value: to.Ptr(value)}
	if a.config.ContentType != "" {
		params.ContentType = to.Ptr(a.config.ContentType)
	}

	if _, err := a.client.SetSecret(ctx, name, params, nil); err != nil {
		return vault.NewError(a.Name(), "set", name, classifyAzure(err), err)
	}
	return nil
}

func classifyAzure(err error) error {
	var authErr *azidentity.AuthenticationFailedError
	if errors.As(err, &authErr) {
		return vault.ErrAccessDenied
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch {
		case respErr.StatusCode == http.StatusNotFound:
			return vault.ErrNotFound
		case respErr.StatusCode == http.StatusUnauthorized, respErr.StatusCode == http.StatusForbidden:
			return vault.ErrAccessDenied
		case respErr.StatusCode == http.StatusTooManyRequests, respErr.StatusCode >= 500:
			return vault.ErrUnavailable
		}
		return nil
	}
	return vault.ErrUnavailable
}
