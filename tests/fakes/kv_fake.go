package fakes

import (
	"context"
	"sync"

	"github.com/hashicorp/vault/api"
)

// FakeKVClient is an in-memory HashiCorp Vault KV v2 engine.
type FakeKVClient struct {
	mu       sync.Mutex
	versions map[string][]map[string]interface{}
	// Errors maps secret paths to errors returned by both operations.
	Errors map[string]error
}

// NewFakeKVClient creates an empty fake.
func NewFakeKVClient() *FakeKVClient {
	return &FakeKVClient{
		versions: make(map[string][]map[string]interface{}),
		Errors:   make(map[string]error),
	}
}

// Seed writes data at path without going through Put.
func (f *FakeKVClient) Seed(path string, data map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions[path] = append(f.versions[path], data)
}

// VersionCount returns how many versions exist at path.
func (f *FakeKVClient) VersionCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.versions[path])
}

// Get returns the latest version, or api.ErrSecretNotFound.
func (f *FakeKVClient) Get(_ context.Context, path string) (*api.KVSecret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.Errors[path]; ok {
		return nil, err
	}
	versions := f.versions[path]
	if len(versions) == 0 {
		return nil, api.ErrSecretNotFound
	}
	return &api.KVSecret{
		Data:            versions[len(versions)-1],
		VersionMetadata: &api.KVVersionMetadata{Version: len(versions)},
	}, nil
}

// Put appends a version at path.
func (f *FakeKVClient) Put(_ context.Context, path string, data map[string]interface{}, _ ...api.KVOption) (*api.KVSecret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.Errors[path]; ok {
		return nil, err
	}
	f.versions[path] = append(f.versions[path], data)
	return &api.KVSecret{
		VersionMetadata: &api.KVVersionMetadata{Version: len(f.versions[path])},
	}, nil
}
