package rotation

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Job.Run matches exactly one of these
// with errors.Is.
var (
	// ErrConfiguration means a required setting is missing or invalid.
	// No network call was made.
	ErrConfiguration = errors.New("configuration error")

	// ErrVaultRead means the current secret could not be read.
	// No directory call was made.
	ErrVaultRead = errors.New("vault read failed")

	// ErrVaultWrite means the new secret could not be stored. The new
	// credential exists in the directory but the vault holds the old secret.
	ErrVaultWrite = errors.New("vault write failed")

	// ErrCredentialCreate means the directory refused to create a credential,
	// including authentication failures with the current secret.
	ErrCredentialCreate = errors.New("credential create failed")

	// ErrCredentialRead means the credential list could not be read for
	// pruning. The rotation itself succeeded.
	ErrCredentialRead = errors.New("credential read failed")

	// ErrCredentialWrite means the pruned credential list could not be
	// written back. The rotation itself succeeded.
	ErrCredentialWrite = errors.New("credential write failed")

	// ErrInconsistentState means a credential was created but the directory
	// returned no secret for it. The vault was left untouched and the
	// situation needs manual reconciliation.
	ErrInconsistentState = errors.New("inconsistent state")
)

// StageError is returned when a stage fails.
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// FailedStage returns the stage that produced err, or "" when err did not
// come from a stage.
func FailedStage(err error) Stage {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}
