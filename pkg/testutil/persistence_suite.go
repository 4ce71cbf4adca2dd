package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ycslms/lmsflow/pkg/models"
	"github.com/ycslms/lmsflow/pkg/persistence"
)

// RunPersistenceSuite exercises the behaviour every persistence backend must share.
// newStore must return an empty store.
func RunPersistenceSuite(t *testing.T, newStore func(t *testing.T) persistence.Persistence) {
	t.Helper()

	t.Run("instance round trip", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		due := time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond)
		inst := CreateTestInstance(WithTimerWait("wait", due))

		require.NoError(t, store.SaveInstance(ctx, inst))

		got, err := store.InstanceByID(ctx, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, inst.ID, got.ID)
		assert.Equal(t, models.InstanceWaiting, got.Status)
		assert.Equal(t, "ORD-1", got.Context["orderId"])
		assert.InDelta(t, 2000.0, got.Context["amount"], 0.001)
		require.Contains(t, got.Waits, "wait")
		require.NotNil(t, got.Waits["wait"].DueAt)
		assert.True(t, due.Equal(*got.Waits["wait"].DueAt))
		assert.True(t, inst.StartedAt.Equal(got.StartedAt))
	})

	t.Run("instance overwrite", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		inst := CreateTestInstance()
		require.NoError(t, store.SaveInstance(ctx, inst))

		inst.Status = models.InstanceCompleted
		inst.Context["approved"] = true
		require.NoError(t, store.SaveInstance(ctx, inst))

		got, err := store.InstanceByID(ctx, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, models.InstanceCompleted, got.Status)
		assert.Equal(t, true, got.Context["approved"])
	})

	t.Run("returned instance is a copy", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		inst := CreateTestInstance()
		require.NoError(t, store.SaveInstance(ctx, inst))

		inst.Context["orderId"] = "mutated"

		got, err := store.InstanceByID(ctx, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, "ORD-1", got.Context["orderId"])

		got.Context["orderId"] = "mutated again"

		again, err := store.InstanceByID(ctx, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, "ORD-1", again.Context["orderId"])
	})

	t.Run("unknown instance", func(t *testing.T) {
		store := newStore(t)

		_, err := store.InstanceByID(t.Context(), "missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrInstanceNotFound)
		assert.True(t, models.IsNotFound(err))
	})

	t.Run("instance filters", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		base := time.Now().UTC().Truncate(time.Millisecond)

		first := CreateTestInstance(WithStartedAt(base.Add(-2 * time.Minute)))
		second := CreateTestInstance(WithStartedAt(base.Add(-time.Minute)), WithInstanceStatus(models.InstanceCompleted))
		other := CreateTestInstance(WithInstanceTenant("acme"), WithWorkflow("returns"))

		for _, inst := range []*models.WorkflowInstance{first, second, other} {
			require.NoError(t, store.SaveInstance(ctx, inst))
		}

		list, err := store.Instances(ctx, persistence.InstanceFilter{TenantID: models.DefaultTenant})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second.ID, list[0].ID)
		assert.Equal(t, first.ID, list[1].ID)

		list, err = store.Instances(ctx, persistence.InstanceFilter{TenantID: models.DefaultTenant, Status: models.InstanceRunning})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, first.ID, list[0].ID)

		list, err = store.Instances(ctx, persistence.InstanceFilter{TenantID: "acme", WorkflowID: "returns"})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, other.ID, list[0].ID)

		list, err = store.Instances(ctx, persistence.InstanceFilter{TenantID: "nobody"})
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("task round trip", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		task := CreateTestTask(WithCandidates("alice", "bob"))
		require.NoError(t, store.SaveTask(ctx, task))

		got, err := store.TaskByID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.InstanceID, got.InstanceID)
		assert.Equal(t, []string{"alice", "bob"}, got.CandidateUsers)
		assert.Equal(t, models.TaskCreated, got.Status)

		_, err = store.TaskByID(ctx, "missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrTaskNotFound)
	})

	t.Run("task filters", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		base := time.Now().UTC().Truncate(time.Millisecond)

		assigned := CreateTestTask(WithAssignee("alice"), WithCreatedAt(base.Add(-time.Minute)))
		pooled := CreateTestTask(WithCandidates("alice", "bob"), WithTaskInstance(assigned.InstanceID), WithCreatedAt(base))
		foreign := CreateTestTask(WithAssignee("alice"), WithTaskTenant("acme"))

		for _, task := range []*models.WorkflowTask{assigned, pooled, foreign} {
			require.NoError(t, store.SaveTask(ctx, task))
		}

		list, err := store.Tasks(ctx, persistence.TaskFilter{TenantID: models.DefaultTenant, UserID: "alice"})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, pooled.ID, list[0].ID)
		assert.Equal(t, assigned.ID, list[1].ID)

		list, err = store.Tasks(ctx, persistence.TaskFilter{TenantID: models.DefaultTenant, UserID: "bob"})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, pooled.ID, list[0].ID)

		list, err = store.Tasks(ctx, persistence.TaskFilter{InstanceID: assigned.InstanceID, Status: models.TaskAssigned})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, assigned.ID, list[0].ID)

		list, err = store.Tasks(ctx, persistence.TaskFilter{TenantID: models.DefaultTenant, UserID: "carol"})
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("health check", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.HealthCheck(t.Context()))
	})
}
