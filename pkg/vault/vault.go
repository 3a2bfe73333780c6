// Package vault defines the secret vault abstraction used by the rotation job.
//
// A vault holds named string secrets. The rotation job reads the application's
// current client secret by name and, once a new credential has been minted,
// overwrites the same name with the new value. Only the latest value is ever
// visible to the job; whatever version history the backing service keeps is
// its own business.
//
// # Error Classification
//
// Implementations wrap backend errors in an *Error whose Kind is one of
// ErrNotFound, ErrAccessDenied or ErrUnavailable so callers can branch with
// errors.Is without knowing which SDK produced the failure:
//
//	value, err := store.Get(ctx, "ClientSecretName")
//	if errors.Is(err, vault.ErrNotFound) {
//	    // the secret was never seeded
//	}
//
// # Security Considerations
//
// Implementations must never log secret values. Use logging.Secret when a
// value has to appear in a format string.
package vault

import (
	"context"
	"errors"
)

// Store reads and writes named secret values.
type Store interface {
	// Name identifies the backend in logs and metrics, e.g. "azure-keyvault".
	Name() string

	// Get returns the current value of the named secret.
	Get(ctx context.Context, name string) (string, error)

	// Set creates or overwrites the named secret. Repeating a Set with the
	// same value is harmless.
	Set(ctx context.Context, name, value string) error
}

var (
	// ErrNotFound indicates the named secret does not exist.
	ErrNotFound = errors.New("secret not found")

	// ErrAccessDenied indicates the caller is not authenticated or lacks
	// permission for the operation.
	ErrAccessDenied = errors.New("access denied")

	// ErrUnavailable indicates the vault could not be reached or refused the
	// request for a transient reason such as throttling.
	ErrUnavailable = errors.New("vault unavailable")
)

// Error is returned by Store implementations.
type Error struct {
	// Backend is the Store name that produced the error.
	Backend string

	// Op is the operation that failed: "get" or "set".
	Op string

	// Secret is the secret name. Never the value.
	Secret string

	// Kind is one of the sentinel errors above, or nil when the failure
	// could not be classified.
	Kind error

	// Err is the underlying SDK error.
	Err error
}

func (e *Error) Error() string {
	msg := e.Backend + " " + e.Op + " " + e.Secret
	if e.Kind != nil {
		msg += ": " + e.Kind.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the classification and the SDK error to errors.Is/As.
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

// NewError builds an *Error.
func NewError(backend, op, secret string, kind, err error) *Error {
	return &Error{
		Backend: backend,
		Op:      op,
		Secret:  secret,
		Kind:    kind,
		Err:     err,
	}
}
