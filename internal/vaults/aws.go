package vaults

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	dserrors "github.com/systmms/approtate/internal/errors"
	"github.com/systmms/approtate/internal/logging"
	"github.com/systmms/approtate/pkg/vault"
)

// SecretsManagerClientAPI is the subset of *secretsmanager.Client the
// backend uses.
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
}

// AWSConfig configures the aws-secretsmanager backend.
type AWSConfig struct {
	Region  string `yaml:"region,omitempty" json:"region,omitempty"`
	Profile string `yaml:"profile,omitempty" json:"profile,omitempty"`
	// Static credentials, mostly for LocalStack.
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
	// AssumeRole is an IAM role ARN assumed through STS before any call.
	AssumeRole string `yaml:"assume_role,omitempty" json:"assume_role,omitempty"`
	ExternalID string `yaml:"external_id,omitempty" json:"external_id,omitempty"`
}

// AWSSecretsManager stores secrets in AWS Secrets Manager as SecretString.
type AWSSecretsManager struct {
	client SecretsManagerClientAPI
	logger *logging.Logger
	region string
}

// AWSOption configures an AWSSecretsManager.
type AWSOption func(*AWSSecretsManager)

// WithSecretsManagerClient sets a custom client (for testing).
func WithSecretsManagerClient(client SecretsManagerClientAPI) AWSOption {
	return func(p *AWSSecretsManager) {
		p.client = client
	}
}

// WithAWSLogger sets the logger.
func WithAWSLogger(logger *logging.Logger) AWSOption {
	return func(p *AWSSecretsManager) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewAWSSecretsManager creates the aws-secretsmanager backend. endpoint is
// optional and points the client at LocalStack or a VPC endpoint.
func NewAWSSecretsManager(ctx context.Context, endpoint string, cfg AWSConfig, opts ...AWSOption) (*AWSSecretsManager, error) {
	if cfg.Region == "" {
		return nil, dserrors.ConfigError{
			Field:      "vault.aws.region",
			Message:    "region is required for AWS Secrets Manager",
			Suggestion: "Set vault.aws.region or AWS_REGION",
		}
	}

	p := &AWSSecretsManager{
		logger: logging.Discard(),
		region: cfg.Region,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}

		var clientOpts []func(*secretsmanager.Options)
		if endpoint != "" {
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = aws.String(endpoint)
			})
		}
		p.client = secretsmanager.NewFromConfig(awsCfg, clientOpts...)
	}
	return p, nil
}

func loadAWSConfig(ctx context.Context, cfg AWSConfig) (aws.Config, error) {
	configOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.AssumeRole != "" {
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(awsCfg), cfg.AssumeRole, func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = "approtate"
			if cfg.ExternalID != "" {
				o.ExternalID = aws.String(cfg.ExternalID)
			}
		})
		awsCfg.Credentials = aws.NewCredentialsCache(provider)
	}
	return awsCfg, nil
}

// Name returns "aws-secretsmanager".
func (p *AWSSecretsManager) Name() string {
	return TypeAWSSecretsManager
}

// Get reads the AWSCURRENT version of the secret.
func (p *AWSSecretsManager) Get(ctx context.Context, name string) (string, error) {
	p.logger.Debug("Reading AWS secret %s in %s", name, p.region)

	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(name)})
	if err != nil {
		return "", vault.NewError(p.Name(), "get", name, classifyAWS(err), err)
	}
	if out.SecretString == nil {
		return "", vault.NewError(p.Name(), "get", name, vault.ErrNotFound, errors.New("secret has no string value"))
	}
	return *out.SecretString, nil
}

// Set stores a new version labelled AWSCURRENT.
func (p *AWSSecretsManager) Set(ctx context.Context, name, value string) error {
	p.logger.Debug("Writing AWS secret %s in %s", name, p.region)

	_, err := p.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(value),
	})
	if err != nil {
		return vault.NewError(p.Name(), "set", name, classifyAWS(err), err)
	}
	return nil
}

func classifyAWS(err error) error {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return vault.ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException",
			"InvalidSignatureException", "DecryptionFailure":
			return vault.ErrAccessDenied
		case "ThrottlingException", "InternalServiceError", "ServiceUnavailable":
			return vault.ErrUnavailable
		}
		if apiErr.ErrorFault() == smithy.FaultServer {
			return vault.ErrUnavailable
		}
		return nil
	}
	return vault.ErrUnavailable
}
