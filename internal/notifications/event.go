package notifications

import (
	"errors"
	"time"

	"github.com/systmms/approtate/pkg/rotation"
)

// EventType represents the type of rotation event.
type EventType string

const (
	// EventTypeCompleted indicates a rotation finished every stage.
	EventTypeCompleted EventType = "completed"

	// EventTypeFailed indicates a rotation stopped at a stage.
	EventTypeFailed EventType = "failed"

	// EventTypeInconsistent indicates a credential was created that the
	// vault does not hold. Someone has to reconcile it by hand.
	EventTypeInconsistent EventType = "inconsistent"
)

// RotationEvent is the notification view of a finished run.
type RotationEvent struct {
	Type EventType

	RunID        string
	AppObjectID  string
	SecretName   string
	VaultBackend string

	// Stage is the failing stage, empty on success.
	Stage string

	// Error contains the error if the rotation failed.
	Error error

	Duration  time.Duration
	Timestamp time.Time

	// CreatedKeyID is the key id of the credential minted by this run.
	CreatedKeyID string

	// RemovedCount is how many expired credentials were pruned.
	RemovedCount int
}

// AllEventTypes returns all valid event types.
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeCompleted,
		EventTypeFailed,
		EventTypeInconsistent,
	}
}

// EventFromResult converts a finished run into an event.
func EventFromResult(res *rotation.Result) RotationEvent {
	event := RotationEvent{
		RunID:        res.RunID,
		AppObjectID:  res.AppObjectID,
		SecretName:   res.SecretName,
		VaultBackend: res.VaultBackend,
		Stage:        string(res.FailedStage),
		Duration:     res.Duration(),
		Timestamp:    res.FinishedAt,
		RemovedCount: len(res.Removed),
	}
	if res.Created != nil {
		event.CreatedKeyID = res.Created.KeyID
	}
	if res.Error != "" {
		event.Error = errors.New(res.Error)
	}

	switch res.Outcome {
	case rotation.OutcomeSucceeded:
		event.Type = EventTypeCompleted
	case rotation.OutcomeInconsistent:
		event.Type = EventTypeInconsistent
	default:
		event.Type = EventTypeFailed
	}
	return event
}

