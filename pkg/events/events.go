// Package events defines event types and structures for rule and workflow lifecycle notifications.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every lifecycle event and inbound command.
const Topic = "lmsflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow instance lifecycle events.
	InstanceStartedEvent   EventType = "workflow.instance.started"
	InstanceCompletedEvent EventType = "workflow.instance.completed"
	InstanceFailedEvent    EventType = "workflow.instance.failed"
	InstanceWaitingEvent   EventType = "workflow.instance.waiting"

	// Human task events.
	TaskCreatedEvent   EventType = "workflow.task.created"
	TaskCompletedEvent EventType = "workflow.task.completed"

	// Rule engine events.
	RuleExecutedEvent EventType = "rule.executed"
	RuleLoggedEvent   EventType = "rule.event"

	NotificationSentEvent EventType = "notification.sent"

	// Inbound commands consumed by the worker.
	StartRequestedEvent        EventType = "workflow.start.requested"
	TaskCompleteRequestedEvent EventType = "workflow.task.complete.requested"
)

// ErrUnknownEventType is returned by Decode for types with no registered payload.
var ErrUnknownEventType = errors.New("unknown event type")

// Event is anything that can travel on the event bus.
type Event interface {
	GetType() EventType
}

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	TenantID  string         `json:"tenant_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, tenantID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		TenantID:  tenantID,
		Metadata:  make(map[string]any),
	}
}

type InstanceStarted struct {
	BaseEvent

	InstanceID string         `json:"instance_id"`
	WorkflowID string         `json:"workflow_id"`
	StartedBy  string         `json:"started_by"`
	Context    map[string]any `json:"context,omitempty"`
}

func (e InstanceStarted) GetType() EventType {
	return InstanceStartedEvent
}

type InstanceCompleted struct {
	BaseEvent

	InstanceID string         `json:"instance_id"`
	WorkflowID string         `json:"workflow_id"`
	Context    map[string]any `json:"context,omitempty"`
	Duration   time.Duration  `json:"duration"`
}

func (e InstanceCompleted) GetType() EventType {
	return InstanceCompletedEvent
}

type InstanceFailed struct {
	BaseEvent

	InstanceID string `json:"instance_id"`
	WorkflowID string `json:"workflow_id"`
	NodeID     string `json:"node_id"`
	Error      string `json:"error"`
}

func (e InstanceFailed) GetType() EventType {
	return InstanceFailedEvent
}

// InstanceWaiting is published each time a branch suspends on a user task or timer.
type InstanceWaiting struct {
	BaseEvent

	InstanceID string `json:"instance_id"`
	WorkflowID string `json:"workflow_id"`
	NodeID     string `json:"node_id"`
	WaitKind   string `json:"wait_kind"`
}

func (e InstanceWaiting) GetType() EventType {
	return InstanceWaitingEvent
}

type TaskCreated struct {
	BaseEvent

	TaskID         string     `json:"task_id"`
	InstanceID     string     `json:"instance_id"`
	NodeID         string     `json:"node_id"`
	Name           string     `json:"name"`
	Assignee       string     `json:"assignee,omitempty"`
	CandidateUsers []string   `json:"candidate_users,omitempty"`
	DueAt          *time.Time `json:"due_at,omitempty"`
}

func (e TaskCreated) GetType() EventType {
	return TaskCreatedEvent
}

type TaskCompleted struct {
	BaseEvent

	TaskID      string         `json:"task_id"`
	InstanceID  string         `json:"instance_id"`
	NodeID      string         `json:"node_id"`
	CompletedBy string         `json:"completed_by"`
	Result      map[string]any `json:"result,omitempty"`
}

func (e TaskCompleted) GetType() EventType {
	return TaskCompletedEvent
}

type RuleExecuted struct {
	BaseEvent

	RuleID     string `json:"rule_id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Passed     bool   `json:"passed"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
}

func (e RuleExecuted) GetType() EventType {
	return RuleExecutedEvent
}

// RuleLogged is emitted by the log_event rule action.
type RuleLogged struct {
	BaseEvent

	RuleID     string `json:"rule_id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	EventName  string `json:"event_name"`
	Message    string `json:"message"`
}

func (e RuleLogged) GetType() EventType {
	return RuleLoggedEvent
}

type NotificationSent struct {
	BaseEvent

	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

func (e NotificationSent) GetType() EventType {
	return NotificationSentEvent
}

// StartRequested asks a worker to start a workflow instance.
type StartRequested struct {
	BaseEvent

	WorkflowID string         `json:"workflow_id"`
	Context    map[string]any `json:"context,omitempty"`
	StartedBy  string         `json:"started_by"`
}

func (e StartRequested) GetType() EventType {
	return StartRequestedEvent
}

// TaskCompleteRequested asks a worker to complete a human task.
type TaskCompleteRequested struct {
	BaseEvent

	TaskID      string         `json:"task_id"`
	Result      map[string]any `json:"result,omitempty"`
	CompletedBy string         `json:"completed_by"`
}

func (e TaskCompleteRequested) GetType() EventType {
	return TaskCompleteRequestedEvent
}

var payloads = map[EventType]func() Event{
	InstanceStartedEvent:       func() Event { return &InstanceStarted{} },
	InstanceCompletedEvent:     func() Event { return &InstanceCompleted{} },
	InstanceFailedEvent:        func() Event { return &InstanceFailed{} },
	InstanceWaitingEvent:       func() Event { return &InstanceWaiting{} },
	TaskCreatedEvent:           func() Event { return &TaskCreated{} },
	TaskCompletedEvent:         func() Event { return &TaskCompleted{} },
	RuleExecutedEvent:          func() Event { return &RuleExecuted{} },
	RuleLoggedEvent:            func() Event { return &RuleLogged{} },
	NotificationSentEvent:      func() Event { return &NotificationSent{} },
	StartRequestedEvent:        func() Event { return &StartRequested{} },
	TaskCompleteRequestedEvent: func() Event { return &TaskCompleteRequested{} },
}

// Decode unmarshals a payload into the struct registered for eventType.
func Decode(eventType EventType, payload []byte) (Event, error) {
	newEvent, ok := payloads[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}

	event := newEvent()

	err := json.Unmarshal(payload, event)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", eventType, err)
	}

	return event, nil
}
