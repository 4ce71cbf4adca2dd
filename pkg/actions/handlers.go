package actions

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"

	"github.com/ycslms/lmsflow/pkg/events"
	"github.com/ycslms/lmsflow/pkg/models"
	"github.com/ycslms/lmsflow/pkg/tenancy"
)

// Parameter names understood by the built-in actions.
const (
	ParamField       = "field"
	ParamValue       = "value"
	ParamFlagName    = "flagName"
	ParamFlagValue   = "flagValue"
	ParamRecipient   = "recipient"
	ParamMessage     = "message"
	ParamEventType   = "eventType"
	ParamServiceName = "serviceName"
	ParamMethodName  = "methodName"
)

var errNoInvoker = errors.New("no operation invoker configured")

func stringParam(params map[string]any, name string) (string, bool) {
	v, ok := params[name]
	if !ok || v == nil {
		return "", false
	}

	s := fmt.Sprint(v)

	return s, s != ""
}

func (e *Executor) updateField(_ context.Context, _ *models.Rule, params map[string]any, rc *models.RuleContext) error {
	field, ok := stringParam(params, ParamField)
	if !ok {
		return missing(ParamField)
	}

	rc.Data[field] = params[ParamValue]

	return nil
}

func (e *Executor) setFlag(_ context.Context, _ *models.Rule, params map[string]any, rc *models.RuleContext) error {
	name, ok := stringParam(params, ParamFlagName)
	if !ok {
		return missing(ParamFlagName)
	}

	rc.Data[name] = parseFlag(params[ParamFlagValue])

	return nil
}

func parseFlag(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(t)

		return err == nil && b
	default:
		return false
	}
}

func (e *Executor) sendNotification(ctx context.Context, rule *models.Rule, params map[string]any, rc *models.RuleContext) error {
	recipient, ok := stringParam(params, ParamRecipient)
	if !ok {
		return missing(ParamRecipient)
	}

	message, ok := stringParam(params, ParamMessage)
	if !ok {
		return missing(ParamMessage)
	}

	e.logger.InfoContext(ctx, "Sending rule notification",
		"rule_id", rule.ID,
		"recipient", recipient,
		"entity_id", rc.EntityID,
	)

	if e.notifier == nil {
		return nil
	}

	err := e.notifier.Notify(tenancy.WithTenant(ctx, rc.TenantID), recipient, message)
	if err != nil {
		return fmt.Errorf("failed to notify %s: %w", recipient, err)
	}

	return nil
}

func (e *Executor) logEvent(ctx context.Context, rule *models.Rule, params map[string]any, rc *models.RuleContext) error {
	eventName, _ := stringParam(params, ParamEventType)
	message, _ := stringParam(params, ParamMessage)

	e.logger.InfoContext(ctx, "Rule event",
		"rule_id", rule.ID,
		"event_type", eventName,
		"message", message,
		"entity_type", rc.EntityType,
		"entity_id", rc.EntityID,
		"tenant_id", rc.TenantID,
	)

	event := &events.RuleLogged{
		BaseEvent:  events.NewBaseEvent(events.RuleLoggedEvent, rc.TenantID),
		RuleID:     rule.ID,
		EntityType: rc.EntityType,
		EntityID:   rc.EntityID,
		EventName:  eventName,
		Message:    message,
	}

	err := e.publisher.Publish(ctx, rc.EntityID, event)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to publish rule event", "rule_id", rule.ID, "error", err)
	}

	return nil
}

func (e *Executor) executeService(ctx context.Context, _ *models.Rule, params map[string]any, rc *models.RuleContext) error {
	service, ok := stringParam(params, ParamServiceName)
	if !ok {
		return missing(ParamServiceName)
	}

	method, ok := stringParam(params, ParamMethodName)
	if !ok {
		return missing(ParamMethodName)
	}

	if e.invoker == nil {
		return errNoInvoker
	}

	out, err := e.invoker.Invoke(ctx, service, method, models.CopyMap(rc.Data))
	if err != nil {
		return err
	}

	maps.Copy(rc.Data, out)

	return nil
}
