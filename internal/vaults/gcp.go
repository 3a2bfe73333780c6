package vaults

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/impersonate"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	dserrors "github.com/systmms/approtate/internal/errors"
	"github.com/systmms/approtate/internal/logging"
	"github.com/systmms/approtate/pkg/vault"
)

// SecretManagerClientAPI is the subset of *secretmanager.Client the
// backend uses.
type SecretManagerClientAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.SecretVersion, error)
}

// GCPConfig configures the gcp-secretmanager backend.
type GCPConfig struct {
	ProjectID             string `yaml:"project_id,omitempty" json:"project_id,omitempty"`
	ServiceAccountKeyPath string `yaml:"service_account_key_path,omitempty" json:"service_account_key_path,omitempty"`
	ImpersonateAccount    string `yaml:"impersonate_service_account,omitempty" json:"impersonate_service_account,omitempty"`
	Endpoint              string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
}

// GCPSecretManager stores secrets in Google Cloud Secret Manager. Set adds a
// version; Get reads "latest".
type GCPSecretManager struct {
	client    SecretManagerClientAPI
	logger    *logging.Logger
	projectID string
}

// GCPOption configures a GCPSecretManager.
type GCPOption func(*GCPSecretManager)

// WithGCPSecretManagerClient sets a custom client (for testing).
func WithGCPSecretManagerClient(client SecretManagerClientAPI) GCPOption {
	return func(p *GCPSecretManager) {
		p.client = client
	}
}

// WithGCPLogger sets the logger.
func WithGCPLogger(logger *logging.Logger) GCPOption {
	return func(p *GCPSecretManager) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewGCPSecretManager creates the gcp-secretmanager backend.
func NewGCPSecretManager(ctx context.Context, cfg GCPConfig, opts ...GCPOption) (*GCPSecretManager, error) {
	if cfg.ProjectID == "" {
		cfg.ProjectID = gcpProjectFromEnv()
	}
	if cfg.ProjectID == "" {
		return nil, dserrors.ConfigError{
			Field:      "vault.gcp.project_id",
			Message:    "project_id is required for GCP Secret Manager",
			Suggestion: "Set vault.gcp.project_id or the GOOGLE_CLOUD_PROJECT environment variable",
		}
	}

	p := &GCPSecretManager{
		logger:    logging.Discard(),
		projectID: cfg.ProjectID,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		client, err := createGCPSecretManagerClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
		}
		p.client = client
	}
	return p, nil
}

func createGCPSecretManagerClient(ctx context.Context, cfg GCPConfig) (*secretmanager.Client, error) {
	var clientOptions []option.ClientOption

	if cfg.ServiceAccountKeyPath != "" {
		keyPath := cfg.ServiceAccountKeyPath
		if strings.HasPrefix(keyPath, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			keyPath = filepath.Join(home, keyPath[2:])
		}
		clientOptions = append(clientOptions, option.WithCredentialsFile(keyPath))
	}

	if cfg.ImpersonateAccount != "" {
		ts, err := impersonate.CredentialsTokenSource(ctx, impersonate.CredentialsConfig{
			TargetPrincipal: cfg.ImpersonateAccount,
			Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create impersonated credentials: %w", err)
		}
		clientOptions = append(clientOptions, option.WithTokenSource(ts))
	}

	if cfg.Endpoint != "" {
		clientOptions = append(clientOptions, option.WithEndpoint(cfg.Endpoint))
	}

	return secretmanager.NewClient(ctx, clientOptions...)
}

func gcpProjectFromEnv() string {
	for _, key := range []string{"GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT", "GCP_PROJECT"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// Name returns "gcp-secretmanager".
func (p *GCPSecretManager) Name() string {
	return TypeGCPSecretManager
}

func (p *GCPSecretManager) secretPath(name string) string {
	return fmt.Sprintf("projects/%s/secrets/%s", p.projectID, name)
}

// Get reads the latest enabled version.
func (p *GCPSecretManager) Get(ctx context.Context, name string) (string, error) {
	p.logger.Debug("Reading GCP secret %s", name)

	resp, err := p.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: p.secretPath(name) + "/versions/latest",
	})
	if err != nil {
		return "", vault.NewError(p.Name(), "get", name, classifyGCP(err), err)
	}
	return string(resp.GetPayload().GetData()), nil
}

// Set adds a new version to an existing secret.
func (p *GCPSecretManager) Set(ctx context.Context, name, value string) error {
	p.logger.Debug("Adding GCP secret version for %s", name)

	_, err := p.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  p.secretPath(name),
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	})
	if err != nil {
		return vault.NewError(p.Name(), "set", name, classifyGCP(err), err)
	}
	return nil
}

func classifyGCP(err error) error {
	switch status.Code(err) {
	case codes.NotFound, codes.FailedPrecondition:
		return vault.ErrNotFound
	case codes.PermissionDenied, codes.Unauthenticated:
		return vault.ErrAccessDenied
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Internal, codes.Unknown:
		return vault.ErrUnavailable
	}
	return nil
}
