package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
)

// FakeSecretsManagerClient is an in-memory Secrets Manager client. A secret
// must exist before PutSecretValue accepts a new version, as in AWS.
type FakeSecretsManagerClient struct {
	mu sync.Mutex
	// Secrets maps secret ids to their current SecretString. A nil value
	// models a binary-only secret.
	Secrets map[string]*string
	// Errors maps secret ids to errors returned by both operations.
	Errors map[string]error
	// PutCount counts successful PutSecretValue calls.
	PutCount int
}

// NewFakeSecretsManagerClient creates an empty fake.
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets: make(map[string]*string),
		Errors:  make(map[string]error),
	}
}

// AddSecretString seeds a string secret.
func (f *FakeSecretsManagerClient) AddSecretString(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = aws.String(value)
}

// AddError configures an error for a specific secret.
func (f *FakeSecretsManagerClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

// Current returns the AWSCURRENT value of a secret.
func (f *FakeSecretsManagerClient) Current(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return aws.ToString(f.Secrets[name])
}

// GetSecretValue implements the Secrets Manager read.
func (f *FakeSecretsManagerClient) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.SecretId)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	value, ok := f.Secrets[name]
	if !ok {
		return nil, AWSNotFoundError(name)
	}
	return &secretsmanager.GetSecretValueOutput{
		Name:          aws.String(name),
		SecretString:  value,
		VersionStages: []string{"AWSCURRENT"},
	}, nil
}

// PutSecretValue implements the Secrets Manager write.
func (f *FakeSecretsManagerClient) PutSecretValue(_ context.Context, params *secretsmanager.PutSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.SecretId)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	if _, ok := f.Secrets[name]; !ok {
		return nil, AWSNotFoundError(name)
	}
	f.Secrets[name] = aws.String(aws.ToString(params.SecretString))
	f.PutCount++
	return &secretsmanager.PutSecretValueOutput{
		Name:          aws.String(name),
		VersionStages: []string{"AWSCURRENT"},
	}, nil
}

// AWSNotFoundError creates a Secrets Manager not found error.
func AWSNotFoundError(name string) error {
	return &types.ResourceNotFoundException{
		Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", name)),
	}
}

// AWSAPIError creates a generic API error with the given code.
func AWSAPIError(code string, fault smithy.ErrorFault) error {
	return &smithy.GenericAPIError{Code: code, Message: code, Fault: fault}
}
