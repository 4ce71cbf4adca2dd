// Package eventbus carries lifecycle events and inbound commands over watermill.
package eventbus

import (
	"context"

	"github.com/ycslms/lmsflow/pkg/events"
	"github.com/ycslms/lmsflow/pkg/protocol"
)

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives the decoded payload registered for the event type.
type EventHandler func(ctx context.Context, event events.Event) error

type EventBus interface {
	protocol.EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
