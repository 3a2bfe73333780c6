package fakes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/systmms/approtate/pkg/directory"
)

// FakeDirectory is an in-memory directory.Client holding the credentials of
// any number of applications.
type FakeDirectory struct {
	mu sync.Mutex

	// Apps maps object ids to their credential lists. A missing entry means
	// the application does not exist.
	Apps map[string][]directory.Credential

	// NoList makes GetCredentials report no credential list at all.
	NoList bool

	// StaleReads makes GetCredentials return the list as it was before the
	// first AddCredential, like a directory replica that lags behind writes.
	StaleReads bool

	// NewSecret is the secret text handed out by AddCredential.
	NewSecret string
	// NextKeyID is the key id of the next created credential. Defaults to
	// "key-<n>".
	NextKeyID string

	AddErr     error
	GetErr     error
	ReplaceErr error

	// Log receives "directory.add <id>", "directory.get <id>" and
	// "directory.replace <id>".
	Log *CallLog

	AddCalls     []AddCall
	ReplaceCalls [][]directory.Credential

	added  int
	preAdd map[string][]directory.Credential
}

// AddCall is one recorded AddCredential call.
type AddCall struct {
	ObjectID    string
	DisplayName string
	Expiry      time.Time
}

// NewFakeDirectory creates a directory holding one application.
func NewFakeDirectory(log *CallLog, objectID string, creds []directory.Credential) *FakeDirectory {
	return &FakeDirectory{
		Apps:      map[string][]directory.Credential{objectID: creds},
		NewSecret: "new-secret",
		Log:       log,
	}
}

// AddCredential appends a new credential to the application.
func (f *FakeDirectory) AddCredential(_ context.Context, objectID, displayName string, expiry time.Time) (directory.Credential, error) {
	f.Log.Record("directory.add %s", objectID)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.AddCalls = append(f.AddCalls, AddCall{ObjectID: objectID, DisplayName: displayName, Expiry: expiry})
	if f.AddErr != nil {
		return directory.Credential{}, f.AddErr
	}
	creds, ok := f.Apps[objectID]
	if !ok {
		return directory.Credential{}, &directory.Error{Op: "add", ObjectID: objectID, Kind: directory.ErrNotFound}
	}

	if f.preAdd == nil {
		f.preAdd = make(map[string][]directory.Credential)
	}
	if _, seen := f.preAdd[objectID]; !seen {
		f.preAdd[objectID] = append([]directory.Credential{}, creds...)
	}

	f.added++
	keyID := f.NextKeyID
	if keyID == "" {
		keyID = fmt.Sprintf("key-%d", f.added)
	}
	end := expiry
	cred := directory.Credential{
		KeyID:       keyID,
		DisplayName: displayName,
		EndDateTime: &end,
	}
	f.Apps[objectID] = append(creds, cred)

	cred.SecretText = f.NewSecret
	return cred, nil
}

// GetCredentials returns the application's credentials.
func (f *FakeDirectory) GetCredentials(_ context.Context, objectID string) ([]directory.Credential, error) {
	f.Log.Record("directory.get %s", objectID)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.GetErr != nil {
		return nil, f.GetErr
	}
	creds, ok := f.Apps[objectID]
	if !ok {
		return nil, &directory.Error{Op: "get", ObjectID: objectID, Kind: directory.ErrNotFound}
	}
	if f.NoList {
		return nil, nil
	}
	if stale, ok := f.preAdd[objectID]; ok && f.StaleReads {
		creds = stale
	}
	out := make([]directory.Credential, len(creds))
	copy(out, creds)
	return out, nil
}

// ReplaceCredentials overwrites the application's credentials.
func (f *FakeDirectory) ReplaceCredentials(_ context.Context, objectID string, creds []directory.Credential) error {
	f.Log.Record("directory.replace %s", objectID)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.ReplaceCalls = append(f.ReplaceCalls, creds)
	if f.ReplaceErr != nil {
		return f.ReplaceErr
	}
	if _, ok := f.Apps[objectID]; !ok {
		return &directory.Error{Op: "replace", ObjectID: objectID, Kind: directory.ErrNotFound}
	}
	f.Apps[objectID] = append([]directory.Credential{}, creds...)
	return nil
}

// Credentials returns the current list for objectID.
func (f *FakeDirectory) Credentials(objectID string) []directory.Credential {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]directory.Credential{}, f.Apps[objectID]...)
}
