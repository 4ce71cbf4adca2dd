package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ycslms/lmsflow/pkg/models"
	"github.com/ycslms/lmsflow/pkg/workflow"
)

func delayed(delay string) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID: "DELAYED", Version: "1", TenantID: models.DefaultTenant, StartNode: "start",
		Nodes: map[string]*models.WorkflowNode{
			"start": {ID: "start", Type: models.NodeTypeStart, Outgoing: models.To("cool")},
			"cool":  {ID: "cool", Type: models.NodeTypeTimer, Delay: delay, Outgoing: models.To("end")},
			"end":   {ID: "end", Type: models.NodeTypeEnd},
		},
	}
}

func TestTimer_WaitsUntilFired(t *testing.T) {
	t.Parallel()

	clock := &fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	h := newHarness(t, workflow.WithClock(clock.Now))
	require.NoError(t, h.registry.Register(delayed("36h")))

	inst := h.start(t, "DELAYED", nil)

	assert.Equal(t, models.InstanceWaiting, inst.Status)
	require.Contains(t, inst.Waits, "cool")

	wait := inst.Waits["cool"]
	assert.Equal(t, models.WaitTimer, wait.Kind)
	require.NotNil(t, wait.DueAt)
	assert.Equal(t, clock.Now().Add(36*time.Hour), *wait.DueAt)

	err := h.executor.FireTimer(t.Context(), inst.ID, "start")
	require.ErrorIs(t, err, models.ErrInvalidState)

	err = h.executor.FireTimer(t.Context(), "missing", "cool")
	require.ErrorIs(t, err, models.ErrInstanceNotFound)

	require.NoError(t, h.executor.FireTimer(t.Context(), inst.ID, "cool"))
	h.executor.Wait()

	inst, err = h.executor.Instance(t.Context(), inst.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceCompleted, inst.Status)

	err = h.executor.FireTimer(t.Context(), inst.ID, "cool")
	require.ErrorIs(t, err, models.ErrInvalidState)
}

func TestTimer_CronDelay(t *testing.T) {
	t.Parallel()

	// A Sunday; the next Monday 09:00 is a day away.
	clock := &fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	h := newHarness(t, workflow.WithClock(clock.Now))
	require.NoError(t, h.registry.Register(delayed("0 9 * * MON")))

	inst := h.start(t, "DELAYED", nil)

	require.Contains(t, inst.Waits, "cool")
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), *inst.Waits["cool"].DueAt)
}

func TestTimerPoller_FiresDueTimers(t *testing.T) {
	t.Parallel()

	clock := &fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	h := newHarness(t, workflow.WithClock(clock.Now))
	require.NoError(t, h.registry.Register(delayed("1h")))

	soon := h.start(t, "DELAYED", nil)

	poller := workflow.NewTimerPoller(testLogger(), h.executor, workflow.Config{})

	fired, err := poller.Poll(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, fired)

	clock.Advance(2 * time.Hour)

	fired, err = poller.Poll(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	h.executor.Wait()

	inst, err := h.executor.Instance(t.Context(), soon.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceCompleted, inst.Status)

	fired, err = poller.Poll(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, fired)
}

func TestTimerPoller_RunStopsWithContext(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	poller := workflow.NewTimerPoller(testLogger(), h.executor, workflow.Config{TimerInterval: time.Millisecond})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() { done <- poller.Run(ctx) }()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
