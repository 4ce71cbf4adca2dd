package catalog_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ycslms/lmsflow/pkg/actions"
	"github.com/ycslms/lmsflow/pkg/catalog"
	"github.com/ycslms/lmsflow/pkg/mocks"
	"github.com/ycslms/lmsflow/pkg/models"
	"github.com/ycslms/lmsflow/pkg/registry"
	"github.com/ycslms/lmsflow/pkg/rules"
	"github.com/ycslms/lmsflow/pkg/tenancy"
	"github.com/ycslms/lmsflow/pkg/workflow"
)

type stack struct {
	engine    *rules.Engine
	workflows *workflow.Registry
	ops       *registry.Registry
	executor  *workflow.Executor
	notifier  *mocks.MockNotifier
}

func newStack(t *testing.T) *stack {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s := &stack{
		workflows: workflow.NewRegistry(logger),
		ops:       registry.NewRegistry(logger),
		notifier:  &mocks.MockNotifier{},
	}
	s.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	s.engine = rules.NewEngine(logger, rules.WithActions(
		actions.NewExecutor(logger, actions.WithNotifier(s.notifier), actions.WithInvoker(s.ops)),
	))
	s.executor = workflow.NewExecutor(logger, s.workflows, workflow.WithInvoker(s.ops))

	require.NoError(t, catalog.Install(s.engine, s.workflows, s.ops, s.notifier))

	return s
}

func (s *stack) run(t *testing.T, workflowID string, data map[string]any) *models.WorkflowInstance {
	t.Helper()

	id, err := s.executor.Start(t.Context(), workflowID, models.DefaultTenant, data, "tester")
	require.NoError(t, err)
	s.executor.Wait()

	inst, err := s.executor.Instance(t.Context(), id)
	require.NoError(t, err)

	return inst
}

func TestInstall(t *testing.T) {
	t.Parallel()

	s := newStack(t)

	assert.Len(t, s.engine.Rules(), 8)

	for _, id := range []string{catalog.RuleSetOrderProcessing, catalog.RuleSetUserRegistration} {
		_, err := s.engine.RuleSet(id)
		require.NoError(t, err)
	}

	assert.Len(t, s.workflows.Definitions(models.DefaultTenant), 3)
	assert.Len(t, s.ops.Operations(), 8)
}

func TestCBMAutoSwitch(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	data := map[string]any{"totalCbm": 30.0, "memberCode": "M-100"}

	results, err := s.engine.ExecuteForEntity(tenancy.WithTenant(t.Context(), "acme"), models.EntityOrder, "ORD-1", data)
	require.NoError(t, err)

	passed := map[string]bool{}
	for _, r := range results {
		passed[r.RuleID] = r.Passed
	}

	assert.True(t, passed[catalog.RuleCBMAutoSwitch])
	assert.True(t, passed[catalog.RuleVolumeDiscount])
	assert.False(t, passed[catalog.RuleMemberCodeCheck])
	assert.Equal(t, "air", data["orderType"])
	assert.Equal(t, true, data["cbmAutoSwitched"])

	s.notifier.AssertCalled(t, "Notify", mock.Anything, "customer", mock.Anything)
}

func TestExpressShippingAlertsOperations(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	data := map[string]any{"urgent": true, "orderId": "ORD-9", "memberCode": "M-1"}

	_, err := s.engine.ExecuteForEntity(t.Context(), models.EntityOrder, "ORD-9", data)
	require.NoError(t, err)

	assert.Equal(t, "EXPRESS", data["shippingMethod"])
	assert.Equal(t, true, data["urgentAlertSent"])
	s.notifier.AssertCalled(t, "Notify", mock.Anything, "operations", "Urgent order ORD-9 received")
}

func TestUserRegistrationRuleSet(t *testing.T) {
	t.Parallel()

	s := newStack(t)

	rc := &models.RuleContext{
		EntityType: models.EntityUser,
		EntityID:   "U-1",
		Data:       map[string]any{"email": "ops@example.org", "userType": "ENTERPRISE"},
	}

	result, err := s.engine.ExecuteRuleSet(t.Context(), catalog.RuleSetUserRegistration, rc)
	require.NoError(t, err)
	assert.False(t, result.Passed)
	require.Len(t, result.Results, 1)
	assert.Equal(t, catalog.RuleEmailDomainValidation, result.Results[0].RuleID)
}

func TestOrderProcessingWorkflow(t *testing.T) {
	t.Parallel()

	t.Run("valid order is paid and shipped", func(t *testing.T) {
		t.Parallel()

		s := newStack(t)
		inst := s.run(t, catalog.WorkflowOrderProcessing, map[string]any{"orderId": "ORD-1", "amount": 120.0})

		assert.Equal(t, models.InstanceCompleted, inst.Status)
		assert.Equal(t, "PAID", inst.Context["paymentStatus"])
		assert.Equal(t, "PREPARED", inst.Context["shipmentStatus"])
	})

	t.Run("invalid order goes to manual review", func(t *testing.T) {
		t.Parallel()

		s := newStack(t)
		inst := s.run(t, catalog.WorkflowOrderProcessing, map[string]any{"amount": 120.0})

		assert.Equal(t, models.InstanceWaiting, inst.Status)
		require.Contains(t, inst.Waits, "MANUAL_REVIEW")

		tasks, err := s.executor.ListTasksForUser(t.Context(), "manager", models.DefaultTenant, "")
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, []string{"admin", "manager"}, tasks[0].CandidateUsers)
		assert.NotNil(t, tasks[0].DueAt)

		require.NoError(t, s.executor.AssignTask(t.Context(), tasks[0].ID, "manager"))
		require.NoError(t, s.executor.CompleteTask(t.Context(), tasks[0].ID, map[string]any{"reviewed": true}, "manager"))
		s.executor.Wait()

		inst, err = s.executor.Instance(t.Context(), inst.ID)
		require.NoError(t, err)
		assert.Equal(t, models.InstanceCompleted, inst.Status)
		assert.Equal(t, "PREPARED", inst.Context["shipmentStatus"])
	})
}

func TestUserApprovalWorkflow(t *testing.T) {
	t.Parallel()

	s := newStack(t)

	approved := s.run(t, catalog.WorkflowUserApproval, map[string]any{
		"userId": "U-1", "email": "buyer@acme.com", "userType": "ENTERPRISE", "companyRegistrationNumber": "123-45",
	})
	assert.Equal(t, models.InstanceCompleted, approved.Status)
	assert.Equal(t, "APPROVED", approved.Context["userStatus"])

	manual := s.run(t, catalog.WorkflowUserApproval, map[string]any{"userId": "U-2", "email": "someone@example.org"})
	assert.Equal(t, models.InstanceWaiting, manual.Status)
	assert.Contains(t, manual.Waits, "MANUAL_APPROVAL")
}

func TestShipmentProcessingWorkflow(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	inst := s.run(t, catalog.WorkflowShipmentProcessing, map[string]any{"shipmentId": "SHP-7"})

	for _, step := range []string{"PICK_ITEMS", "PACK_ITEMS"} {
		require.Contains(t, inst.Waits, step)

		tasks, err := s.executor.ListTasksForUser(t.Context(), "warehouse_staff", models.DefaultTenant, models.TaskAssigned)
		require.NoError(t, err)
		require.Len(t, tasks, 1)

		require.NoError(t, s.executor.CompleteTask(t.Context(), tasks[0].ID, nil, "warehouse_staff"))
		s.executor.Wait()

		inst, err = s.executor.Instance(t.Context(), inst.ID)
		require.NoError(t, err)
	}

	assert.Equal(t, models.InstanceCompleted, inst.Status)
	assert.Equal(t, "LBL-SHP-7", inst.Context["labelId"])
	assert.Equal(t, "DISPATCHED", inst.Context["shipmentStatus"])
}
