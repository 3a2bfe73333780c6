// Package notifications delivers rotation outcomes to Slack and generic
// webhooks through an asynchronous bounded queue.
package notifications

import (
	"context"
	"strings"
)

// NotificationProvider defines the interface for sending rotation notifications.
type NotificationProvider interface {
	// Name returns the provider name (e.g., "slack", "webhook:ops").
	Name() string

	// Send sends a notification for the given rotation event.
	Send(ctx context.Context, event RotationEvent) error

	// SupportsEvent returns true if this provider handles the given event type.
	SupportsEvent(eventType EventType) bool

	// Validate checks if the provider configuration is valid.
	Validate(ctx context.Context) error
}

// supportsEvent implements the shared events filter: an empty list
// subscribes to everything and matching ignores case.
func supportsEvent(configured []string, eventType EventType) bool {
	if len(configured) == 0 {
		return true
	}
	for _, e := range configured {
		if strings.EqualFold(strings.TrimSpace(e), string(eventType)) {
			return true
		}
	}
	return false
}
