// Package notify provides protocol.Notifier implementations.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ycslms/lmsflow/pkg/events"
	"github.com/ycslms/lmsflow/pkg/protocol"
	"github.com/ycslms/lmsflow/pkg/tenancy"
)

var ErrEmptyRecipient = errors.New("notification recipient is empty")

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, recipient, message string) error {
	if recipient == "" {
		return ErrEmptyRecipient
	}

	n.logger.InfoContext(ctx, "Notification",
		"recipient", recipient,
		"message", message,
		"tenant_id", tenancy.FromContext(ctx),
	)

	return nil
}

// EventNotifier publishes a NotificationSent event keyed by recipient so a
// delivery service can pick it up.
type EventNotifier struct {
	publisher protocol.EventPublisher
}

func NewEventNotifier(publisher protocol.EventPublisher) *EventNotifier {
	return &EventNotifier{publisher: publisher}
}

func (n *EventNotifier) Notify(ctx context.Context, recipient, message string) error {
	if recipient == "" {
		return ErrEmptyRecipient
	}

	err := n.publisher.Publish(ctx, recipient, events.NotificationSent{
		BaseEvent: events.NewBaseEvent(events.NotificationSentEvent, tenancy.FromContext(ctx)),
		Recipient: recipient,
		Message:   message,
	})
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	return nil
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []protocol.Notifier

func (m Multi) Notify(ctx context.Context, recipient, message string) error {
	var errs []error

	for _, n := range m {
		if err := n.Notify(ctx, recipient, message); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
