package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// FakeAzureKeyVaultClient is an in-memory azsecrets client. Every SetSecret
// appends a version; GetSecret with an empty version returns the latest.
type FakeAzureKeyVaultClient struct {
	mu sync.Mutex
	// Versions maps secret names to their values, oldest first.
	Versions map[string][]string
	// ContentTypes records the content type of the last SetSecret per name.
	ContentTypes map[string]string
	// Errors maps secret names to errors returned by both operations.
	Errors map[string]error
	// SetErr is returned by every SetSecret when set.
	SetErr error
}

// NewFakeAzureKeyVaultClient creates an empty fake.
func NewFakeAzureKeyVaultClient() *FakeAzureKeyVaultClient {
	return &FakeAzureKeyVaultClient{
		Versions:     make(map[string][]string),
		ContentTypes: make(map[string]string),
		Errors:       make(map[string]error),
	}
}

// AddSecretString seeds a secret.
func (f *FakeAzureKeyVaultClient) AddSecretString(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Versions[name] = append(f.Versions[name], value)
}

// AddError configures an error for a specific secret.
func (f *FakeAzureKeyVaultClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

// Latest returns the newest value of a secret.
func (f *FakeAzureKeyVaultClient) Latest(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	versions := f.Versions[name]
	if len(versions) == 0 {
		return "", false
	}
	return versions[len(versions)-1], true
}

// GetSecret implements the azsecrets read.
func (f *FakeAzureKeyVaultClient) GetSecret(_ context.Context, name string, version string, _ *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.Errors[name]; ok {
		return azsecrets.GetSecretResponse{}, err
	}
	versions := f.Versions[name]
	if len(versions) == 0 || version != "" {
		return azsecrets.GetSecretResponse{}, AzureNotFoundError(name)
	}

	id := azsecrets.ID(fmt.Sprintf("https://test-vault.vault.azure.net/secrets/%s/%d", name, len(versions)))
	return azsecrets.GetSecretResponse{
		Secret: azsecrets.Secret{
			ID:    &id,
			Value: to.Ptr(versions[len(versions)-1]),
		},
	}, nil
}

// SetSecret implements the azsecrets write.
func (f *FakeAzureKeyVaultClient) SetSecret(_ context.Context, name string, parameters azsecrets.SetSecretParameters, _ *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SetErr != nil {
		return azsecrets.SetSecretResponse{}, f.SetErr
	}
	if err, ok := f.Errors[name]; ok {
		return azsecrets.SetSecretResponse{}, err
	}

	f.Versions[name] = append(f.Versions[name], to.Deref(parameters.Value, ""))
	if parameters.ContentType != nil {
		f.ContentTypes[name] = *parameters.ContentType
	}
	return azsecrets.SetSecretResponse{
		Secret: azsecrets.Secret{Value: parameters.Value},
	}, nil
}

// AzureNotFoundError creates a Key Vault not found error.
func AzureNotFoundError(string) error {
	return &azcore.ResponseError{StatusCode: 404, ErrorCode: "SecretNotFound"}
}

// AzureForbiddenError creates a Key Vault forbidden error.
func AzureForbiddenError() error {
	return &azcore.ResponseError{StatusCode: 403, ErrorCode: "Forbidden"}
}

// AzureUnauthorizedError creates a Key Vault unauthorized error.
func AzureUnauthorizedError() error {
	return &azcore.ResponseError{StatusCode: 401, ErrorCode: "Unauthorized"}
}

// AzureThrottledError creates a Key Vault throttled error.
func AzureThrottledError() error {
	return &azcore.ResponseError{StatusCode: 429, ErrorCode: "TooManyRequests"}
}
