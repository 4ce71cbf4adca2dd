// Package protocol defines the contracts the orchestration core consumes from its collaborators.
package protocol

import (
	"context"

	"github.com/ycslms/lmsflow/pkg/events"
)

// OperationInvoker resolves a (component, operation) pair to business code and runs it.
// The returned map is merged into the caller's data.
type OperationInvoker interface {
	Invoke(ctx context.Context, component, operation string, input map[string]any) (map[string]any, error)
}

// Notifier delivers a message to a recipient.
type Notifier interface {
	Notify(ctx context.Context, recipient, message string) error
}

// EventPublisher publishes lifecycle events keyed by the entity they describe.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event events.Event) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, events.Event) error {
	return nil
}
