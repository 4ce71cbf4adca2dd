package actions_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ycslms/lmsflow/pkg/actions"
	"github.com/ycslms/lmsflow/pkg/events"
	"github.com/ycslms/lmsflow/pkg/mocks"
	"github.com/ycslms/lmsflow/pkg/models"
)

func newContext() *models.RuleContext {
	return &models.RuleContext{
		EntityType: models.EntityOrder,
		EntityID:   "ORD-1",
		TenantID:   "acme",
		Data:       map[string]any{"totalCbm": 35.0},
	}
}

func TestExecutor_UpdateFieldAndFlags(t *testing.T) {
	t.Parallel()

	executor := actions.NewExecutor(slog.Default())
	rule := &models.Rule{
		ID: "CBM_AUTO_SWITCH",
		Actions: []models.Action{
			{Type: models.ActionUpdateField, Parameters: map[string]any{"field": "orderType", "value": "air"}},
			{Type: models.ActionSetFlag, Parameters: map[string]any{"flagName": "cbmAutoSwitched", "flagValue": "true"}},
			{Type: models.ActionSetFlag, Parameters: map[string]any{"flagName": "boolFlag", "flagValue": true}},
			{Type: models.ActionSetFlag, Parameters: map[string]any{"flagName": "badFlag", "flagValue": "yes please"}},
			{Type: models.ActionSetFlag, Parameters: map[string]any{"flagName": "nullFlag"}},
		},
	}

	rc := newContext()
	require.NoError(t, executor.Apply(t.Context(), rule, rc))

	assert.Equal(t, "air", rc.Data["orderType"])
	assert.Equal(t, true, rc.Data["cbmAutoSwitched"])
	assert.Equal(t, true, rc.Data["boolFlag"])
	assert.Equal(t, false, rc.Data["badFlag"])
	assert.Equal(t, false, rc.Data["nullFlag"])
}

func TestExecutor_SendNotification(t *testing.T) {
	t.Parallel()

	notifier := &mocks.MockNotifier{}
	notifier.On("Notify", mock.Anything, "customer", "Order switched to air freight").Return(nil)

	executor := actions.NewExecutor(slog.Default(), actions.WithNotifier(notifier))
	rule := &models.Rule{
		ID: "CBM_AUTO_SWITCH",
		Actions: []models.Action{
			{Type: models.ActionSendNotification, Parameters: map[string]any{"recipient": "customer", "message": "Order switched to air freight"}},
		},
	}

	require.NoError(t, executor.Apply(t.Context(), rule, newContext()))
	notifier.AssertExpectations(t)
}

func TestExecutor_FirstFailureStopsRemainingActions(t *testing.T) {
	t.Parallel()

	notifier := &mocks.MockNotifier{}
	notifier.On("Notify", mock.Anything, "customer", "hi").Return(errors.New("smtp down"))

	executor := actions.NewExecutor(slog.Default(), actions.WithNotifier(notifier))
	rule := &models.Rule{
		ID: "R1",
		Actions: []models.Action{
			{Type: models.ActionSendNotification, Parameters: map[string]any{"recipient": "customer", "message": "hi"}},
			{Type: models.ActionUpdateField, Parameters: map[string]any{"field": "after", "value": 1}},
		},
	}

	rc := newContext()
	err := executor.Apply(t.Context(), rule, rc)
	require.ErrorIs(t, err, models.ErrAction)

	var actionErr *actions.ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, "R1", actionErr.RuleID)
	assert.Equal(t, 0, actionErr.Index)
	assert.Equal(t, models.ActionSendNotification, actionErr.Type)
	assert.NotContains(t, rc.Data, "after")
}

func TestExecutor_MissingParameter(t *testing.T) {
	t.Parallel()

	executor := actions.NewExecutor(slog.Default())
	rule := &models.Rule{
		ID:      "R1",
		Actions: []models.Action{{Type: models.ActionUpdateField, Parameters: map[string]any{"value": 1}}},
	}

	err := executor.Apply(t.Context(), rule, newContext())
	require.ErrorIs(t, err, models.ErrAction)
	assert.Contains(t, err.Error(), "field")
}

func TestExecutor_ExecuteServiceMergesResult(t *testing.T) {
	t.Parallel()

	invoker := &mocks.MockOperationInvoker{}
	invoker.On("Invoke", mock.Anything, "NotificationService", "sendUrgentOrderAlert", mock.Anything).
		Return(map[string]any{"alertSent": true}, nil)

	executor := actions.NewExecutor(slog.Default(), actions.WithInvoker(invoker))
	rule := &models.Rule{
		ID: "EXPRESS_SHIPPING",
		Actions: []models.Action{
			{Type: models.ActionExecuteService, Parameters: map[string]any{"serviceName": "NotificationService", "methodName": "sendUrgentOrderAlert"}},
		},
	}

	rc := newContext()
	require.NoError(t, executor.Apply(t.Context(), rule, rc))
	assert.Equal(t, true, rc.Data["alertSent"])
	invoker.AssertExpectations(t)
}

func TestExecutor_ExecuteServiceWithoutInvoker(t *testing.T) {
	t.Parallel()

	executor := actions.NewExecutor(slog.Default())
	rule := &models.Rule{
		ID: "R1",
		Actions: []models.Action{
			{Type: models.ActionExecuteService, Parameters: map[string]any{"serviceName": "A", "methodName": "b"}},
		},
	}

	require.ErrorIs(t, executor.Apply(t.Context(), rule, newContext()), models.ErrAction)
}

func TestExecutor_LogEventPublishes(t *testing.T) {
	t.Parallel()

	publisher := &mocks.MockEventPublisher{}
	publisher.On("Publish", mock.Anything, "ORD-1", mock.MatchedBy(func(e events.Event) bool {
		logged, ok := e.(*events.RuleLogged)

		return ok && logged.EventName == "MEMBER_CODE_MISSING" && logged.TenantID == "acme"
	})).Return(nil)

	executor := actions.NewExecutor(slog.Default(), actions.WithPublisher(publisher))
	rule := &models.Rule{
		ID: "MEMBER_CODE_CHECK",
		Actions: []models.Action{
			{Type: models.ActionLogEvent, Parameters: map[string]any{"eventType": "MEMBER_CODE_MISSING", "message": "no member code"}},
		},
	}

	require.NoError(t, executor.Apply(t.Context(), rule, newContext()))
	publisher.AssertExpectations(t)
}
