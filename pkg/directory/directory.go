// Package directory defines the identity-provider abstraction the rotation
// job uses to manage password credentials on an application object.
//
// An application object carries an unordered set of password credentials.
// Adding a credential returns its plaintext secret exactly once; listing
// returns every credential with its validity window but never the secret;
// replacing submits the full credential set, which is how credentials are
// removed.
package directory

import (
	"context"
	"errors"
	"time"
)

// Credential is a client-secret style credential on an application object.
type Credential struct {
	// KeyID uniquely identifies the credential on the application.
	KeyID string `json:"key_id" yaml:"key_id"`

	// DisplayName is a free-form label.
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`

	// Hint holds the first characters of the secret as reported by the
	// directory. It is not the secret.
	Hint string `json:"hint,omitempty" yaml:"hint,omitempty"`

	// StartDateTime is when the credential becomes valid.
	StartDateTime *time.Time `json:"start_date_time,omitempty" yaml:"start_date_time,omitempty"`

	// EndDateTime is when the credential stops being valid. A nil value
	// means the directory reported no expiry.
	EndDateTime *time.Time `json:"end_date_time,omitempty" yaml:"end_date_time,omitempty"`

	// SecretText is only populated on the credential returned by
	// AddCredential. It is never serialized.
	SecretText string `json:"-" yaml:"-"`
}

// ExpiredAt reports whether the credential's expiry is strictly before now.
// Credentials without an expiry never expire.
func (c Credential) ExpiredAt(now time.Time) bool {
	return c.EndDateTime != nil && c.EndDateTime.Before(now)
}

// Client manages the password credentials of application objects.
//
// Implementations do not retry. Errors are classified with the sentinels
// below so the caller can decide its own policy.
type Client interface {
	// AddCredential creates a new password credential on the application
	// and returns it with SecretText populated.
	AddCredential(ctx context.Context, objectID, displayName string, expiry time.Time) (Credential, error)

	// GetCredentials returns every password credential on the application.
	// A nil slice means the directory reported no credential list at all.
	GetCredentials(ctx context.Context, objectID string) ([]Credential, error)

	// ReplaceCredentials submits creds as the complete credential set of the
	// application in a single call.
	ReplaceCredentials(ctx context.Context, objectID string, creds []Credential) error
}

var (
	// ErrAuth indicates authentication failed or the caller lacks the
	// required directory permissions.
	ErrAuth = errors.New("directory authentication failed")

	// ErrNotFound indicates the application object does not exist.
	ErrNotFound = errors.New("application object not found")

	// ErrRateLimited indicates the directory throttled the request.
	ErrRateLimited = errors.New("directory rate limited")
)

// Error is returned by Client implementations.
type Error struct {
	// Op is the failing operation: "add", "get" or "replace".
	Op string

	// ObjectID is the application object the operation targeted.
	ObjectID string

	// Kind is one of the sentinels above, or nil when unclassified.
	Kind error

	// Err is the underlying API error.
	Err error
}

func (e *Error) Error() string {
	msg := "directory " + e.Op + " " + e.ObjectID
	if e.Kind != nil {
		msg += ": " + e.Kind.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the classification and the API error.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
