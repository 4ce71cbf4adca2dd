package workflow_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ycslms/lmsflow/pkg/models"
	"github.com/ycslms/lmsflow/pkg/workflow"
)

func linear(id, tenantID string) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:        id,
		Name:      id,
		Version:   "1.0",
		TenantID:  tenantID,
		StartNode: "start",
		Nodes: map[string]*models.WorkflowNode{
			"start": {ID: "start", Type: models.NodeTypeStart, Outgoing: models.To("end")},
			"end":   {ID: "end", Type: models.NodeTypeEnd},
		},
	}
}

func TestRegistry_Register_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(def *models.WorkflowDefinition)
	}{
		{"missing version", func(def *models.WorkflowDefinition) { def.Version = "" }},
		{"missing tenant", func(def *models.WorkflowDefinition) { def.TenantID = "" }},
		{"undefined start node", func(def *models.WorkflowDefinition) { def.StartNode = "nope" }},
		{"dangling edge", func(def *models.WorkflowDefinition) {
			def.Nodes["start"].Outgoing = models.To("ghost")
		}},
		{"key mismatch", func(def *models.WorkflowDefinition) { def.Nodes["end"].ID = "finish" }},
		{"unknown node type", func(def *models.WorkflowDefinition) { def.Nodes["end"].Type = "script" }},
		{"decision with one edge", func(def *models.WorkflowDefinition) {
			cond := models.Simple("data.amount", models.OpGreaterThan, 10)
			def.Nodes["start"].Outgoing = models.To("check")
			def.Nodes["check"] = &models.WorkflowNode{
				ID: "check", Type: models.NodeTypeDecision, Condition: &cond, Outgoing: models.To("end"),
			}
		}},
		{"decision without condition", func(def *models.WorkflowDefinition) {
			def.Nodes["check"] = &models.WorkflowNode{
				ID: "check", Type: models.NodeTypeDecision, Outgoing: models.To("end", "end"),
			}
		}},
		{"service task without operation", func(def *models.WorkflowDefinition) {
			def.Nodes["svc"] = &models.WorkflowNode{ID: "svc", Type: models.NodeTypeServiceTask, Component: "OrderService"}
		}},
		{"unparsable timer", func(def *models.WorkflowDefinition) {
			def.Nodes["wait"] = &models.WorkflowNode{ID: "wait", Type: models.NodeTypeTimer, Delay: "soon"}
		}},
		{"invalid result schema", func(def *models.WorkflowDefinition) {
			def.Nodes["review"] = &models.WorkflowNode{
				ID: "review", Type: models.NodeTypeUserTask, ResultSchema: map[string]any{"type": 42},
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			def := linear("wf", models.DefaultTenant)
			tt.mutate(def)

			err := workflow.NewRegistry(slog.Default()).Register(def)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrInvalidDefinition)
			assert.True(t, models.IsValidation(err))
		})
	}

	t.Run("nil", func(t *testing.T) {
		t.Parallel()

		assert.ErrorIs(t, workflow.NewRegistry(slog.Default()).Register(nil), models.ErrInvalidDefinition)
	})
}

func TestRegistry_Register_AcceptsDecisions(t *testing.T) {
	t.Parallel()

	registry := workflow.NewRegistry(slog.Default())

	def := linear("wf", models.DefaultTenant)
	cond := models.Simple("data.amount", models.OpGreaterThan, 10)
	def.Nodes["start"].Outgoing = models.To("check")
	def.Nodes["check"] = &models.WorkflowNode{
		ID: "check", Type: models.NodeTypeDecision, Condition: &cond, Outgoing: models.To("end", "end"),
	}
	def.Nodes["route"] = &models.WorkflowNode{
		ID: "route", Type: models.NodeTypeDecision, Discriminant: "data.lane",
		Outgoing: []models.Edge{{Target: "end", Label: "express"}},
	}

	require.NoError(t, registry.Register(def))
}

func TestRegistry_Resolve_TenantFallback(t *testing.T) {
	t.Parallel()

	registry := workflow.NewRegistry(slog.Default())

	shared := linear("ORDER_PROCESSING", models.DefaultTenant)
	own := linear("ORDER_PROCESSING", "acme")
	own.Version = "2.0"

	require.NoError(t, registry.Register(shared))
	require.NoError(t, registry.Register(own))

	got, err := registry.Resolve("ORDER_PROCESSING", "acme")
	require.NoError(t, err)
	assert.Equal(t, "2.0", got.Version)

	got, err = registry.Resolve("ORDER_PROCESSING", "globex")
	require.NoError(t, err)
	assert.Equal(t, "1.0", got.Version)

	_, err = registry.Resolve("UNKNOWN", "acme")
	require.ErrorIs(t, err, models.ErrWorkflowNotFound)
	assert.True(t, models.IsNotFound(err))
}

func TestRegistry_StoresCopies(t *testing.T) {
	t.Parallel()

	registry := workflow.NewRegistry(slog.Default())

	def := linear("wf", models.DefaultTenant)
	require.NoError(t, registry.Register(def))

	def.Nodes["start"].Outgoing = models.To("elsewhere")

	got, err := registry.Resolve("wf", models.DefaultTenant)
	require.NoError(t, err)
	assert.Equal(t, []string{"end"}, got.Nodes["start"].Targets())

	got.Nodes["start"].Outgoing = nil

	again, err := registry.Resolve("wf", models.DefaultTenant)
	require.NoError(t, err)
	assert.Equal(t, []string{"end"}, again.Nodes["start"].Targets())
}

func TestRegistry_Definitions(t *testing.T) {
	t.Parallel()

	registry := workflow.NewRegistry(slog.Default())

	require.NoError(t, registry.Register(linear("B", models.DefaultTenant)))
	require.NoError(t, registry.Register(linear("A", models.DefaultTenant)))

	own := linear("B", "acme")
	own.Version = "9"
	require.NoError(t, registry.Register(own))
	require.NoError(t, registry.Register(linear("C", "globex")))

	defs := registry.Definitions("acme")
	require.Len(t, defs, 2)
	assert.Equal(t, "A", defs[0].ID)
	assert.Equal(t, "B", defs[1].ID)
	assert.Equal(t, "9", defs[1].Version)

	assert.Len(t, registry.Definitions(models.DefaultTenant), 2)
}
