package fakes

import (
	"sync"

	"github.com/zalando/go-keyring"
)

// FakeKeyringClient is an in-memory keyring.
type FakeKeyringClient struct {
	mu      sync.Mutex
	secrets map[string]string
	// Err is returned by every call when set.
	Err error
}

// NewFakeKeyringClient creates an empty fake.
func NewFakeKeyringClient() *FakeKeyringClient {
	return &FakeKeyringClient{secrets: make(map[string]string)}
}

func keyringKey(service, user string) string {
	return service + "/" + user
}

// Get returns keyring.ErrNotFound for unknown items like the real keyring.
func (f *FakeKeyringClient) Get(service, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	value, ok := f.secrets[keyringKey(service, user)]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return value, nil
}

// Set stores an item.
func (f *FakeKeyringClient) Set(service, user, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.secrets[keyringKey(service, user)] = password
	return nil
}
