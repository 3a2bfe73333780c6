package fakes

import (
	"context"
	"sync"

	"github.com/systmms/approtate/pkg/vault"
)

// FakeVault is an in-memory vault.Store.
type FakeVault struct {
	mu sync.Mutex

	// Secrets holds the current value of each secret.
	Secrets map[string]string
	// GetErr and SetErr are returned by every Get or Set when non-nil.
	GetErr error
	SetErr error

	// Log receives "vault.get <name>" and "vault.set <name>".
	Log *CallLog

	// SetCalls records every value written, in order.
	SetCalls []VaultSet
}

// VaultSet is one recorded Set call.
type VaultSet struct {
	Name  string
	Value string
}

// NewFakeVault creates a vault seeded with secrets.
func NewFakeVault(log *CallLog, secrets map[string]string) *FakeVault {
	if secrets == nil {
		secrets = make(map[string]string)
	}
	return &FakeVault{Secrets: secrets, Log: log}
}

// Name returns "fake".
func (f *FakeVault) Name() string {
	return "fake"
}

// Get returns the named secret.
func (f *FakeVault) Get(_ context.Context, name string) (string, error) {
	f.Log.Record("vault.get %s", name)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.GetErr != nil {
		return "", f.GetErr
	}
	value, ok := f.Secrets[name]
	if !ok {
		return "", vault.NewError(f.Name(), "get", name, vault.ErrNotFound, nil)
	}
	return value, nil
}

// Set overwrites the named secret.
func (f *FakeVault) Set(_ context.Context, name, value string) error {
	f.Log.Record("vault.set %s", name)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SetErr != nil {
		return f.SetErr
	}
	f.SetCalls = append(f.SetCalls, VaultSet{Name: name, Value: value})
	f.Secrets[name] = value
	return nil
}

// Value returns the current value of the named secret.
func (f *FakeVault) Value(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	value, ok := f.Secrets[name]
	return value, ok
}
