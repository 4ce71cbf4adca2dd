// Package actions applies the side effects of passing rules to an entity snapshot.
package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ycslms/lmsflow/pkg/models"
	"github.com/ycslms/lmsflow/pkg/protocol"
)

// Handler applies one action. params is never nil.
type Handler func(ctx context.Context, rule *models.Rule, params map[string]any, rc *models.RuleContext) error

// Executor runs rule actions in declaration order.
type Executor struct {
	logger    *slog.Logger
	notifier  protocol.Notifier
	invoker   protocol.OperationInvoker
	publisher protocol.EventPublisher
	handlers  map[models.ActionType]Handler
}

type Option func(*Executor)

// WithNotifier routes send_notification actions. Without one notifications are only logged.
func WithNotifier(n protocol.Notifier) Option {
	return func(e *Executor) { e.notifier = n }
}

// WithInvoker resolves execute_service actions.
func WithInvoker(i protocol.OperationInvoker) Option {
	return func(e *Executor) { e.invoker = i }
}

// WithPublisher receives rule.event lifecycle events from log_event actions.
func WithPublisher(p protocol.EventPublisher) Option {
	return func(e *Executor) { e.publisher = p }
}

func NewExecutor(logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		logger:    logger,
		publisher: protocol.NopPublisher{},
	}

	for _, opt := range opts {
		opt(e)
	}

	e.handlers = map[models.ActionType]Handler{
		models.ActionUpdateField:      e.updateField,
		models.ActionSetFlag:          e.setFlag,
		models.ActionSendNotification: e.sendNotification,
		models.ActionLogEvent:         e.logEvent,
		models.ActionExecuteService:   e.executeService,
	}

	return e
}

// Apply runs every action of rule against rc.Data. The first failure stops the
// remaining actions and is returned as an *ActionError.
func (e *Executor) Apply(ctx context.Context, rule *models.Rule, rc *models.RuleContext) error {
	if rc.Data == nil {
		rc.Data = make(map[string]any)
	}

	for i, action := range rule.Actions {
		handler, ok := e.handlers[action.Type]
		if !ok {
			return &ActionError{RuleID: rule.ID, Index: i, Type: action.Type, Err: fmt.Errorf("unsupported action type %q", action.Type)}
		}

		params := action.Parameters
		if params == nil {
			params = map[string]any{}
		}

		err := handler(ctx, rule, params, rc)
		if err != nil {
			return &ActionError{RuleID: rule.ID, Index: i, Type: action.Type, Err: err}
		}

		e.logger.DebugContext(ctx, "Applied rule action",
			"rule_id", rule.ID,
			"action_type", action.Type,
			"entity_id", rc.EntityID,
		)
	}

	return nil
}
