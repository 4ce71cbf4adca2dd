package workflow_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ycslms/lmsflow/pkg/models"
	"github.com/ycslms/lmsflow/pkg/workflow"
)

// review builds start -> review (user task) -> end.
func review(node models.WorkflowNode) *models.WorkflowDefinition {
	node.ID = "review"
	node.Type = models.NodeTypeUserTask
	node.Outgoing = models.To("end")

	return &models.WorkflowDefinition{
		ID: "REVIEW", Version: "1", TenantID: models.DefaultTenant, StartNode: "start",
		Nodes: map[string]*models.WorkflowNode{
			"start":  {ID: "start", Type: models.NodeTypeStart, Outgoing: models.To("review")},
			"review": &node,
			"end":    {ID: "end", Type: models.NodeTypeEnd},
		},
	}
}

// fixedClock is a settable clock safe for concurrent use.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func onlyTask(t *testing.T, h *harness, user string) *models.WorkflowTask {
	t.Helper()

	tasks, err := h.executor.ListTasksForUser(t.Context(), user, models.DefaultTenant, "")
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	return tasks[0]
}

func TestTasks_SingleCandidateIsAutoAssigned(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.registry.Register(review(models.WorkflowNode{CandidateUsers: []string{"alice"}})))

	h.start(t, "REVIEW", nil)

	task := onlyTask(t, h, "alice")
	assert.Equal(t, "alice", task.Assignee)
	assert.Equal(t, models.TaskAssigned, task.Status)
	assert.Equal(t, "review", task.Name)
}

func TestTasks_CandidatePoolNeedsAssignment(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.registry.Register(review(models.WorkflowNode{CandidateUsers: []string{"alice", "bob"}})))

	inst := h.start(t, "REVIEW", nil)

	task := onlyTask(t, h, "bob")
	assert.Empty(t, task.Assignee)
	assert.Equal(t, models.TaskCreated, task.Status)
	assert.Equal(t, task.ID, onlyTask(t, h, "alice").ID)

	err := h.executor.CompleteTask(t.Context(), task.ID, nil, "bob")
	require.ErrorIs(t, err, models.ErrInvalidState)
	assert.True(t, models.IsInvalidState(err))

	err = h.executor.AssignTask(t.Context(), task.ID, "mallory")
	require.ErrorIs(t, err, models.ErrInvalidState)

	require.NoError(t, h.executor.AssignTask(t.Context(), task.ID, "bob"))

	err = h.executor.AssignTask(t.Context(), task.ID, "alice")
	require.ErrorIs(t, err, models.ErrInvalidState)

	tasks, err := h.executor.ListTasksForUser(t.Context(), "bob", models.DefaultTenant, models.TaskAssigned)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	require.NoError(t, h.executor.CompleteTask(t.Context(), task.ID, map[string]any{"ok": true}, "bob"))
	h.executor.Wait()

	inst, err = h.executor.Instance(t.Context(), inst.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceCompleted, inst.Status)

	err = h.executor.CompleteTask(t.Context(), task.ID, nil, "bob")
	require.ErrorIs(t, err, models.ErrInvalidState)
}

func TestTasks_PresetAssigneeWithPoolStaysCreated(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.registry.Register(review(models.WorkflowNode{
		Assignee:       "alice",
		CandidateUsers: []string{"bob", "carol"},
	})))

	h.start(t, "REVIEW", nil)

	task := onlyTask(t, h, "bob")
	assert.Equal(t, "alice", task.Assignee)
	assert.Equal(t, models.TaskCreated, task.Status)

	err := h.executor.CompleteTask(t.Context(), task.ID, nil, "alice")
	require.ErrorIs(t, err, models.ErrInvalidState)

	require.NoError(t, h.executor.AssignTask(t.Context(), task.ID, "carol"))

	got, err := h.executor.Task(t.Context(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", got.Assignee)
	assert.Equal(t, models.TaskAssigned, got.Status)
}

func TestTasks_PresetAssigneeWithoutPoolStaysCreated(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.registry.Register(review(models.WorkflowNode{Assignee: "alice"})))

	h.start(t, "REVIEW", nil)

	task := onlyTask(t, h, "alice")
	assert.Equal(t, models.TaskCreated, task.Status)

	require.NoError(t, h.executor.AssignTask(t.Context(), task.ID, "alice"))
}

func TestTasks_UnknownTask(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	err := h.executor.CompleteTask(t.Context(), "missing", nil, "bob")
	require.ErrorIs(t, err, models.ErrTaskNotFound)
	assert.True(t, models.IsNotFound(err))

	err = h.executor.AssignTask(t.Context(), "missing", "bob")
	require.ErrorIs(t, err, models.ErrTaskNotFound)

	_, err = h.executor.Task(t.Context(), "missing")
	require.ErrorIs(t, err, models.ErrTaskNotFound)
}

func TestTasks_ResultSchema(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.registry.Register(review(models.WorkflowNode{
		CandidateUsers: []string{"alice"},
		ResultSchema: map[string]any{
			"type":     "object",
			"required": []any{"approved"},
			"properties": map[string]any{
				"approved": map[string]any{"type": "boolean"},
			},
		},
	})))

	inst := h.start(t, "REVIEW", nil)
	task := onlyTask(t, h, "alice")

	for _, bad := range []map[string]any{nil, {"approved": "yes"}} {
		err := h.executor.CompleteTask(t.Context(), task.ID, bad, "alice")
		require.ErrorIs(t, err, models.ErrInvalidTaskResult)
		assert.True(t, models.IsValidation(err))
	}

	got, err := h.executor.Task(t.Context(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskAssigned, got.Status)

	require.NoError(t, h.executor.CompleteTask(t.Context(), task.ID, map[string]any{"approved": false}, "alice"))
	h.executor.Wait()

	inst, err = h.executor.Instance(t.Context(), inst.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceCompleted, inst.Status)
	assert.Equal(t, false, inst.Context["approved"])
}

func TestTasks_DueDate(t *testing.T) {
	t.Parallel()

	clock := &fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	days := 3

	h := newHarness(t, workflow.WithClock(clock.Now))
	require.NoError(t, h.registry.Register(review(models.WorkflowNode{Assignee: "alice", DueInDays: &days})))

	h.start(t, "REVIEW", nil)

	task := onlyTask(t, h, "alice")
	require.NotNil(t, task.DueAt)
	assert.Equal(t, time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC), *task.DueAt)
	assert.Equal(t, clock.Now(), task.CreatedAt)
}

func TestTasks_PropertyFallbacks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		properties map[string]any
		wantUsers  []string
		wantDue    bool
	}{
		{"comma separated pool", map[string]any{"candidateUsers": "alice, bob", "dueDays": "2"}, []string{"alice", "bob"}, true},
		{"unparsable due days", map[string]any{"candidateUsers": "alice,bob", "dueDays": "soon"}, []string{"alice", "bob"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			require.NoError(t, h.registry.Register(review(models.WorkflowNode{Properties: tt.properties})))

			h.start(t, "REVIEW", nil)

			task := onlyTask(t, h, "bob")
			assert.Equal(t, tt.wantUsers, task.CandidateUsers)
			assert.Equal(t, tt.wantDue, task.DueAt != nil)
		})
	}
}

func TestTasks_TenantIsolation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.registry.Register(review(models.WorkflowNode{Assignee: "alice"})))

	_, err := h.executor.Start(t.Context(), "REVIEW", "acme", nil, "tester")
	require.NoError(t, err)
	h.executor.Wait()

	tasks, err := h.executor.ListTasksForUser(t.Context(), "alice", "acme", "")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "acme", tasks[0].TenantID)

	tasks, err = h.executor.ListTasksForUser(t.Context(), "alice", "globex", "")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
