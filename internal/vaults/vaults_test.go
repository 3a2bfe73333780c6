package vaults_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/approtate/internal/errors"
	"github.com/systmms/approtate/internal/vaults"
	"github.com/systmms/approtate/pkg/vault"
	"github.com/systmms/approtate/tests/fakes"
)

const secretName = "ClientSecretName"

// runStoreContract checks the behavior every backend shares. store must hold
// secretName with value "current" and nothing named "missing".
func runStoreContract(t *testing.T, store vault.Store) {
	t.Helper()
	ctx := context.Background()

	value, err := store.Get(ctx, secretName)
	require.NoError(t, err)
	assert.Equal(t, "current", value)

	require.NoError(t, store.Set(ctx, secretName, "rotated"))
	value, err = store.Get(ctx, secretName)
	require.NoError(t, err)
	assert.Equal(t, "rotated", value)

	// Repeating a write is harmless.
	require.NoError(t, store.Set(ctx, secretName, "rotated"))
	value, err = store.Get(ctx, secretName)
	require.NoError(t, err)
	assert.Equal(t, "rotated", value)

	_, err = store.Get(ctx, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, vault.ErrNotFound)

	var vErr *vault.Error
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, store.Name(), vErr.Backend)
	assert.Equal(t, "get", vErr.Op)
	assert.Equal(t, "missing", vErr.Secret)
	assert.NotContains(t, err.Error(), "rotated")
}

func TestAzureKeyVaultStore(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeAzureKeyVaultClient()
	client.AddSecretString(secretName, "current")

	store, err := vaults.NewAzureKeyVault("https://rotate-test.vault.azure.net/",
		vaults.AzureConfig{ContentType: "text/plain"},
		vaults.WithAzureKeyVaultClient(client))
	require.NoError(t, err)
	assert.Equal(t, vaults.TypeAzureKeyVault, store.Name())

	runStoreContract(t, store)
	assert.Equal(t, "text/plain", client.ContentTypes[secretName])
	assert.Len(t, client.Versions[secretName], 3)
}

func TestAzureKeyVaultURLValidation(t *testing.T) {
	t.Parallel()

	for _, url := range []string{"", "not a url", "http://rotate-test.vault.azure.net/", "https://"} {
		_, err := vaults.NewAzureKeyVault(url, vaults.AzureConfig{},
			vaults.WithAzureKeyVaultClient(fakes.NewFakeAzureKeyVaultClient()))
		require.Error(t, err, url)

		var cfgErr dserrors.ConfigError
		assert.ErrorAs(t, err, &cfgErr, url)
		assert.Equal(t, "vault.url", cfgErr.Field)
	}
}

func TestAzureKeyVaultErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"forbidden", fakes.AzureForbiddenError(), vault.ErrAccessDenied},
		{"unauthorized", fakes.AzureUnauthorizedError(), vault.ErrAccessDenied},
		{"throttled", fakes.AzureThrottledError(), vault.ErrUnavailable},
		{"not_found", fakes.AzureNotFoundError(secretName), vault.ErrNotFound},
		{"network", errors.New("dial tcp: connection refused"), vault.ErrUnavailable},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := fakes.NewFakeAzureKeyVaultClient()
			client.AddError(secretName, tt.err)
			store, err := vaults.NewAzureKeyVault("https://rotate-test.vault.azure.net/",
				vaults.AzureConfig{}, vaults.WithAzureKeyVaultClient(client))
			require.NoError(t, err)

			_, err = store.Get(context.Background(), secretName)
			assert.ErrorIs(t, err, tt.kind)
			assert.ErrorIs(t, err, tt.err)

			err = store.Set(context.Background(), secretName, "x")
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestAWSSecretsManagerStore(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeSecretsManagerClient()
	client.AddSecretString(secretName, "current")

	store, err := vaults.NewAWSSecretsManager(context.Background(), "", vaults.AWSConfig{Region: "eu-west-1"},
		vaults.WithSecretsManagerClient(client))
	require.NoError(t, err)
	assert.Equal(t, vaults.TypeAWSSecretsManager, store.Name())

	runStoreContract(t, store)
	assert.Equal(t, 2, client.PutCount)
}

func TestAWSSecretsManagerRequiresRegion(t *testing.T) {
	t.Parallel()

	_, err := vaults.NewAWSSecretsManager(context.Background(), "", vaults.AWSConfig{},
		vaults.WithSecretsManagerClient(fakes.NewFakeSecretsManagerClient()))

	var cfgErr dserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "vault.aws.region", cfgErr.Field)
}

func TestAWSSecretsManagerSetRequiresExistingSecret(t *testing.T) {
	t.Parallel()

	store, err := vaults.NewAWSSecretsManager(context.Background(), "", vaults.AWSConfig{Region: "us-east-1"},
		vaults.WithSecretsManagerClient(fakes.NewFakeSecretsManagerClient()))
	require.NoError(t, err)

	err = store.Set(context.Background(), secretName, "new")
	assert.ErrorIs(t, err, vault.ErrNotFound)
}

func TestAWSSecretsManagerErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"access_denied", fakes.AWSAPIError("AccessDeniedException", smithy.FaultClient), vault.ErrAccessDenied},
		{"expired_token", fakes.AWSAPIError("ExpiredTokenException", smithy.FaultClient), vault.ErrAccessDenied},
		{"throttled", fakes.AWSAPIError("ThrottlingException", smithy.FaultClient), vault.ErrUnavailable},
		{"server_fault", fakes.AWSAPIError("SomethingBroke", smithy.FaultServer), vault.ErrUnavailable},
		{"not_found", fakes.AWSNotFoundError(secretName), vault.ErrNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := fakes.NewFakeSecretsManagerClient()
			client.AddError(secretName, tt.err)
			store, err := vaults.NewAWSSecretsManager(context.Background(), "", vaults.AWSConfig{Region: "us-east-1"},
				vaults.WithSecretsManagerClient(client))
			require.NoError(t, err)

			_, err = store.Get(context.Background(), secretName)
			assert.ErrorIs(t, err, tt.kind)
		})
	}

	t.Run("client_fault_unclassified", func(t *testing.T) {
		t.Parallel()

		client := fakes.NewFakeSecretsManagerClient()
		client.AddError(secretName, fakes.AWSAPIError("InvalidParameterException", smithy.FaultClient))
		store, err := vaults.NewAWSSecretsManager(context.Background(), "", vaults.AWSConfig{Region: "us-east-1"},
			vaults.WithSecretsManagerClient(client))
		require.NoError(t, err)

		_, err = store.Get(context.Background(), secretName)
		require.Error(t, err)
		var vErr *vault.Error
		require.ErrorAs(t, err, &vErr)
		assert.Nil(t, vErr.Kind)
	})
}

func TestGCPSecretManagerStore(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeGCPSecretManagerClient()
	client.AddSecretString("rotate-proj", secretName, "current")

	store, err := vaults.NewGCPSecretManager(context.Background(), vaults.GCPConfig{ProjectID: "rotate-proj"},
		vaults.WithGCPSecretManagerClient(client))
	require.NoError(t, err)
	assert.Equal(t, vaults.TypeGCPSecretManager, store.Name())

	runStoreContract(t, store)
	assert.Equal(t, 3, client.VersionCount("rotate-proj", secretName))
	assert.Contains(t, client.Requests, "projects/rotate-proj/secrets/"+secretName+"/versions/latest")
	assert.Contains(t, client.Requests, "projects/rotate-proj/secrets/"+secretName)
}

func TestGCPSecretManagerErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"permission_denied", fakes.GCPPermissionDeniedError("denied"), vault.ErrAccessDenied},
		{"quota", fakes.GCPResourceExhaustedError(), vault.ErrUnavailable},
		{"not_found", fakes.GCPNotFoundError(secretName), vault.ErrNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := fakes.NewFakeGCPSecretManagerClient()
			client.AddError("projects/p/secrets/"+secretName, tt.err)
			store, err := vaults.NewGCPSecretManager(context.Background(), vaults.GCPConfig{ProjectID: "p"},
				vaults.WithGCPSecretManagerClient(client))
			require.NoError(t, err)

			_, err = store.Get(context.Background(), secretName)
			assert.ErrorIs(t, err, tt.kind)

			err = store.Set(context.Background(), secretName, "x")
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestHashiCorpVaultStore(t *testing.T) {
	t.Parallel()

	kv := fakes.NewFakeKVClient()
	kv.Seed("apps/"+secretName, map[string]interface{}{"client_secret": "current"})

	store, err := vaults.NewHashiCorpVault("", vaults.HashiCorpConfig{PathPrefix: "/apps/", Field: "client_secret"},
		vaults.WithKVClient(kv))
	require.NoError(t, err)
	assert.Equal(t, vaults.TypeHashiCorpVault, store.Name())

	runStoreContract(t, store)
	assert.Equal(t, 3, kv.VersionCount("apps/"+secretName))
}

func TestHashiCorpVaultFieldHandling(t *testing.T) {
	t.Parallel()

	kv := fakes.NewFakeKVClient()
	kv.Seed("no-field", map[string]interface{}{"other": "x"})
	kv.Seed("not-string", map[string]interface{}{"value": 42})

	store, err := vaults.NewHashiCorpVault("", vaults.HashiCorpConfig{}, vaults.WithKVClient(kv))
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "no-field")
	assert.ErrorIs(t, err, vault.ErrNotFound)

	_, err = store.Get(context.Background(), "not-string")
	require.Error(t, err)
	assert.NotErrorIs(t, err, vault.ErrNotFound)
}

func TestHashiCorpVaultErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"forbidden", &api.ResponseError{StatusCode: 403, Errors: []string{"permission denied"}}, vault.ErrAccessDenied},
		{"sealed", &api.ResponseError{StatusCode: 503, Errors: []string{"Vault is sealed"}}, vault.ErrUnavailable},
		{"not_found", &api.ResponseError{StatusCode: 404}, vault.ErrNotFound},
		{"string_not_found", errors.New("no secret found at secret/data/x"), vault.ErrNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			kv := fakes.NewFakeKVClient()
			kv.Errors[secretName] = tt.err
			store, err := vaults.NewHashiCorpVault("", vaults.HashiCorpConfig{}, vaults.WithKVClient(kv))
			require.NoError(t, err)

			_, err = store.Get(context.Background(), secretName)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestHashiCorpVaultRequiresAddress(t *testing.T) {
	t.Parallel()

	_, err := vaults.NewHashiCorpVault("", vaults.HashiCorpConfig{Token: "t"})
	var cfgErr dserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "vault.url", cfgErr.Field)
}

func TestKeyringStore(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeKeyringClient()
	require.NoError(t, client.Set(vaults.DefaultKeyringService, secretName, "current"))

	store := vaults.NewKeyring(vaults.KeyringConfig{}, vaults.WithKeyringClient(client))
	assert.Equal(t, vaults.TypeKeyring, store.Name())

	runStoreContract(t, store)
}

func TestKeyringCustomServiceAndErrors(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeKeyringClient()
	require.NoError(t, client.Set("payroll", secretName, "current"))

	store := vaults.NewKeyring(vaults.KeyringConfig{Service: "payroll"}, vaults.WithKeyringClient(client))
	value, err := store.Get(context.Background(), secretName)
	require.NoError(t, err)
	assert.Equal(t, "current", value)

	client.Err = errors.New("dbus: connection closed")
	_, err = store.Get(context.Background(), secretName)
	assert.ErrorIs(t, err, vault.ErrUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = store.Set(ctx, secretName, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  vaults.Config
		want string
	}{
		{"default_type_uses_url", vaults.Config{URL: "https://v.vault.azure.net/"}, "https://v.vault.azure.net/"},
		{"hashicorp", vaults.Config{Type: vaults.TypeHashiCorpVault, URL: "https://vault:8200"}, "https://vault:8200"},
		{"aws_region", vaults.Config{Type: vaults.TypeAWSSecretsManager, AWS: vaults.AWSConfig{Region: "eu-west-1"}}, "https://secretsmanager.eu-west-1.amazonaws.com"},
		{"aws_override", vaults.Config{Type: vaults.TypeAWSSecretsManager, URL: "http://localhost:4566", AWS: vaults.AWSConfig{Region: "eu-west-1"}}, "http://localhost:4566"},
		{"aws_missing", vaults.Config{Type: vaults.TypeAWSSecretsManager}, ""},
		{"gcp", vaults.Config{Type: vaults.TypeGCPSecretManager, GCP: vaults.GCPConfig{ProjectID: "p"}}, "projects/p"},
		{"gcp_missing", vaults.Config{Type: vaults.TypeGCPSecretManager}, ""},
		{"keyring_default", vaults.Config{Type: vaults.TypeKeyring}, "keyring://approtate"},
		{"keyring_service", vaults.Config{Type: vaults.TypeKeyring, Keyring: vaults.KeyringConfig{Service: "x"}}, "keyring://x"},
		{"unknown", vaults.Config{Type: "etcd"}, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cfg.Endpoint())
		})
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		vaults.TypeAWSSecretsManager,
		vaults.TypeAzureKeyVault,
		vaults.TypeGCPSecretManager,
		vaults.TypeHashiCorpVault,
		vaults.TypeKeyring,
	}, vaults.Types())

	_, err := vaults.Open(context.Background(), vaults.Config{Type: "etcd"}, nil)
	var cfgErr dserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "vault.type", cfgErr.Field)

	_, err = vaults.Open(context.Background(), vaults.Config{URL: "http://insecure"}, nil)
	require.ErrorAs(t, err, &cfgErr)

	store, err := vaults.Open(context.Background(), vaults.Config{Type: vaults.TypeKeyring}, nil)
	require.NoError(t, err)
	assert.Equal(t, vaults.TypeKeyring, store.Name())
}
