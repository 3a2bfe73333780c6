package rotation

import (
	"time"

	"github.com/systmms/approtate/pkg/directory"
)

// Stage names one step of a rotation run.
type Stage string

const (
	StageValidate         Stage = "validate"
	StageReadSecret       Stage = "read-secret"
	StageCreateCredential Stage = "create-credential"
	StagePersistSecret    Stage = "persist-secret"
	StagePruneExpired     Stage = "prune-expired"
)

// Stages lists every stage in execution order.
var Stages = []Stage{
	StageValidate,
	StageReadSecret,
	StageCreateCredential,
	StagePersistSecret,
	StagePruneExpired,
}

// Outcome summarizes how a run ended.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	// OutcomeInconsistent is a failure that left a credential in the
	// directory that the vault does not hold.
	OutcomeInconsistent Outcome = "inconsistent"
)

// StepStatus is the state of a single stage.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// StepResult records one stage of a run.
type StepResult struct {
	Stage     Stage         `json:"stage" yaml:"stage"`
	Status    StepStatus    `json:"status" yaml:"status"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Message   string        `json:"message,omitempty" yaml:"message,omitempty"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Result describes a finished run. It never carries secret values.
type Result struct {
	RunID        string    `json:"run_id" yaml:"run_id"`
	AppObjectID  string    `json:"app_object_id" yaml:"app_object_id"`
	SecretName   string    `json:"secret_name" yaml:"secret_name"`
	VaultBackend string    `json:"vault_backend,omitempty" yaml:"vault_backend,omitempty"`
	StartedAt    time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time `json:"finished_at" yaml:"finished_at"`
	Outcome      Outcome   `json:"outcome" yaml:"outcome"`
	FailedStage  Stage     `json:"failed_stage,omitempty" yaml:"failed_stage,omitempty"`
	Error        string    `json:"error,omitempty" yaml:"error,omitempty"`

	Steps []StepResult `json:"steps" yaml:"steps"`

	// Created is the new credential with SecretText cleared.
	Created *directory.Credential `json:"created,omitempty" yaml:"created,omitempty"`
	// Removed holds the credentials pruned in this run.
	Removed []directory.Credential `json:"removed,omitempty" yaml:"removed,omitempty"`
	// Retained is the number of credentials left on the application.
	Retained int `json:"retained" yaml:"retained"`
	// PruneWritten reports whether the replace call was made.
	PruneWritten bool `json:"prune_written" yaml:"prune_written"`
}

// Duration is the wall time of the run.
func (r *Result) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether every stage completed.
func (r *Result) Succeeded() bool {
	return r.Outcome == OutcomeSucceeded
}

// Step returns the record for stage, if the run reached it.
func (r *Result) Step(stage Stage) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Stage == stage {
			return s, true
		}
	}
	return StepResult{}, false
}
