package condition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ycslms/lmsflow/pkg/condition"
	"github.com/ycslms/lmsflow/pkg/models"
)

func orderContext(data map[string]any) *models.RuleContext {
	return &models.RuleContext{
		EntityType: models.EntityOrder,
		EntityID:   "ORD-1",
		TenantID:   "acme",
		Data:       data,
	}
}

func TestEvaluator_Simple(t *testing.T) {
	t.Parallel()

	rc := orderContext(map[string]any{
		"totalCbm": 30.5,
		"count":    10,
		"email":    "ops@example.com",
		"customer": map[string]any{"tier": "gold"},
		"note":     nil,
	})

	tests := []struct {
		name     string
		cond     models.Condition
		expected bool
	}{
		{"greater than float", models.Simple("data.totalCbm", models.OpGreaterThan, 29), true},
		{"less than or equal", models.Simple("data.totalCbm", models.OpLessThanOrEqual, 30.5), true},
		{"int equals float", models.Simple("data.count", models.OpEquals, 10.0), true},
		{"not equals", models.Simple("data.count", models.OpNotEquals, 11), true},
		{"ends with", models.Simple("data.email", models.OpEndsWith, ".com"), true},
		{"starts with", models.Simple("data.email", models.OpStartsWith, "admin"), false},
		{"contains", models.Simple("data.email", models.OpContains, "@"), true},
		{"nested path", models.Simple("data.customer.tier", models.OpEquals, "gold"), true},
		{"unprefixed path", models.Simple("count", models.OpGreaterThanOrEqual, 10), true},
		{"metadata entity type", models.Simple("context.entityType", models.OpEquals, "ORDER"), true},
		{"metadata tenant", models.Simple("context.tenantId", models.OpEquals, "acme"), true},
		{"null equals null", models.Simple("data.note", models.OpEquals, nil), true},
		{"missing equals null", models.Simple("data.absent", models.OpEquals, nil), true},
		{"null not equals value", models.Simple("data.note", models.OpNotEquals, "x"), true},
		{"value not equals null", models.Simple("data.email", models.OpNotEquals, nil), true},
		{"null not equals null", models.Simple("data.note", models.OpNotEquals, nil), false},
		{"null equals value", models.Simple("data.note", models.OpEquals, "x"), false},
		{"null greater than", models.Simple("data.absent", models.OpGreaterThan, 1), false},
		{"null contains", models.Simple("data.absent", models.OpContains, "a"), false},
	}

	evaluator := condition.NewEvaluator(nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := evaluator.Evaluate(tt.cond, rc)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEvaluator_Errors(t *testing.T) {
	t.Parallel()

	rc := orderContext(map[string]any{"totalCbm": "thirty", "count": 3})
	evaluator := condition.NewEvaluator(nil)

	tests := []struct {
		name string
		cond models.Condition
	}{
		{"numeric comparison of string", models.Simple("data.totalCbm", models.OpGreaterThan, 29)},
		{"unknown operator", models.Simple("data.count", models.Operator("MATCHES"), 3)},
		{"unknown condition type", models.Condition{Type: "script"}},
		{"unknown logical operator", models.Condition{Type: models.ConditionComposite, Logical: "XOR"}},
		{"error inside composite", models.All(models.Simple("data.totalCbm", models.OpLessThan, 1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := evaluator.Evaluate(tt.cond, rc)
			require.ErrorIs(t, err, models.ErrEvaluation)
		})
	}
}

func TestEvaluator_Composite(t *testing.T) {
	t.Parallel()

	rc := orderContext(map[string]any{"a": 1, "b": 2})
	evaluator := condition.NewEvaluator(nil)

	yes := models.Simple("data.a", models.OpEquals, 1)
	no := models.Simple("data.b", models.OpEquals, 1)

	cases := map[string]struct {
		cond     models.Condition
		expected bool
	}{
		"empty and":     {models.All(), true},
		"empty or":      {models.Any(), false},
		"and all true":  {models.All(yes, yes), true},
		"and one false": {models.All(yes, no), false},
		"or one true":   {models.Any(no, yes), true},
		"nested":        {models.Any(models.All(yes, no), models.All(yes)), true},
	}

	for name, tc := range cases {
		got, err := evaluator.Evaluate(tc.cond, rc)
		require.NoError(t, err, name)
		assert.Equal(t, tc.expected, got, name)
	}
}

func TestEvaluator_CompositeShortCircuits(t *testing.T) {
	t.Parallel()

	rc := orderContext(map[string]any{"a": 1, "s": "text"})
	evaluator := condition.NewEvaluator(nil)

	failing := models.Simple("data.s", models.OpGreaterThan, 1)

	got, err := evaluator.Evaluate(models.All(models.Simple("data.a", models.OpEquals, 2), failing), rc)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = evaluator.Evaluate(models.Any(models.Simple("data.a", models.OpEquals, 1), failing), rc)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluator_Patterns(t *testing.T) {
	t.Parallel()

	evaluator := condition.NewEvaluator(nil)

	tests := []struct {
		name     string
		cond     models.Condition
		data     map[string]any
		expected bool
	}{
		{"volume over", models.Pattern(models.PredicateVolumeExceedsThreshold), map[string]any{"totalCbm": 35.0}, true},
		{"volume at threshold", models.Pattern(models.PredicateVolumeExceedsThreshold), map[string]any{"totalCbm": 29}, false},
		{"volume override", models.Condition{Type: models.ConditionPattern, Predicate: models.PredicateVolumeExceedsThreshold, Value: 10}, map[string]any{"totalCbm": 12}, true},
		{"value over", models.Pattern(models.PredicateValueExceedsThreshold), map[string]any{"totalValue": 2000}, true},
		{"value missing", models.Pattern(models.PredicateValueExceedsThreshold), map[string]any{}, false},
		{"member code absent", models.Pattern(models.PredicateMemberCodeMissing), map[string]any{}, true},
		{"member code blank", models.Pattern(models.PredicateMemberCodeMissing), map[string]any{"memberCode": "  "}, true},
		{"member code set", models.Pattern(models.PredicateMemberCodeMissing), map[string]any{"memberCode": "M-1"}, false},
		{"validation succeeded", models.Pattern(models.PredicateValidationSucceeded), map[string]any{"validationSuccess": true}, true},
		{"validation string", models.Pattern(models.PredicateValidationSucceeded), map[string]any{"validationSuccess": "true"}, false},
		{"auto check approved", models.Pattern(models.PredicateAutoCheckApproved), map[string]any{"autoCheckApproved": false}, false},
		{"unknown predicate", models.Pattern(models.Predicate("moon_is_full")), map[string]any{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := evaluator.Evaluate(tt.cond, orderContext(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestPredicateRegistry_Register(t *testing.T) {
	t.Parallel()

	registry := condition.NewPredicateRegistry()
	registry.Register("priority_customer", func(rc *models.RuleContext, _ any) bool {
		return rc.Data["tier"] == "gold"
	})

	evaluator := condition.NewEvaluator(registry)

	got, err := evaluator.Evaluate(models.Pattern("priority_customer"), orderContext(map[string]any{"tier": "gold"}))
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluator_Deterministic(t *testing.T) {
	t.Parallel()

	rc := orderContext(map[string]any{"totalCbm": 30, "memberCode": ""})
	cond := models.All(models.Pattern(models.PredicateVolumeExceedsThreshold), models.Pattern(models.PredicateMemberCodeMissing))
	evaluator := condition.NewEvaluator(nil)

	first, err := evaluator.Evaluate(cond, rc)
	require.NoError(t, err)

	for range 50 {
		got, err := evaluator.Evaluate(cond, rc)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	rc := orderContext(map[string]any{"a": map[string]any{"b": 1}})

	v, ok := condition.Resolve("data.a.b", rc)
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = condition.Resolve("data.a.b.c", rc)
	assert.False(t, ok)

	_, ok = condition.Resolve("context.unknown", rc)
	assert.False(t, ok)

	v, ok = condition.Resolve("context.entityId", rc)
	assert.True(t, ok)
	assert.Equal(t, "ORD-1", v)
}
