package vaults

import (
	"context"
	"errors"

	"github.com/zalando/go-keyring"

	"github.com/systmms/approtate/internal/logging"
	"github.com/systmms/approtate/pkg/vault"
)

// DefaultKeyringService is the keyring service secrets are stored under.
const DefaultKeyringService = "approtate"

// KeyringClient is the subset of go-keyring the backend uses.
type KeyringClient interface {
	Get(service, user string) (string, error)
	Set(service, user, password string) error
}

// KeyringConfig configures the keyring backend.
type KeyringConfig struct {
	Service string `yaml:"service,omitempty" json:"service,omitempty"`
}

func (c KeyringConfig) serviceOrDefault() string {
	if c.Service == "" {
		return DefaultKeyringService
	}
	return c.Service
}

type systemKeyring struct{}

func (systemKeyring) Get(service, user string) (string, error) {
	return keyring.Get(service, user)
}

func (systemKeyring) Set(service, user, password string) error {
	return keyring.Set(service, user, password)
}

// Keyring stores secrets in the OS keyring (macOS Keychain, Secret Service
// on Linux, Windows Credential Manager). The secret name is the keyring
// user.
type Keyring struct {
	client  KeyringClient
	logger  *logging.Logger
	service string
}

// KeyringOption configures a Keyring.
type KeyringOption func(*Keyring)

// WithKeyringClient sets a custom client (for testing).
func WithKeyringClient(client KeyringClient) KeyringOption {
	return func(k *Keyring) {
		k.client = client
	}
}

// WithKeyringLogger sets the logger.
func WithKeyringLogger(logger *logging.Logger) KeyringOption {
	return func(k *Keyring) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// NewKeyring creates the keyring backend.
func NewKeyring(cfg KeyringConfig, opts ...KeyringOption) *Keyring {
	k := &Keyring{
		client:  systemKeyring{},
		logger:  logging.Discard(),
		service: cfg.serviceOrDefault(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Name returns "keyring".
func (k *Keyring) Name() string {
	return TypeKeyring
}

// Get reads the secret. The keyring API is synchronous so ctx is only
// checked up front.
func (k *Keyring) Get(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", vault.NewError(k.Name(), "get", name, nil, err)
	}
	k.logger.Debug("Reading keyring item %s/%s", k.service, name)

	value, err := k.client.Get(k.service, name)
	if err != nil {
		return "", vault.NewError(k.Name(), "get", name, classifyKeyring(err), err)
	}
	return value, nil
}

// Set overwrites the secret.
func (k *Keyring) Set(ctx context.Context, name, value string) error {
	if err := ctx.Err(); err != nil {
		return vault.NewError(k.Name(), "set", name, nil, err)
	}
	k.logger.Debug("Writing keyring item %s/%s", k.service, name)

	if err := k.client.Set(k.service, name, value); err != nil {
		return vault.NewError(k.Name(), "set", name, classifyKeyring(err), err)
	}
	return nil
}

func classifyKeyring(err error) error {
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return vault.ErrNotFound
	case errors.Is(err, keyring.ErrSetDataTooBig):
		return nil
	}
	return vault.ErrUnavailable
}
