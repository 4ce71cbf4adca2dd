// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/ycslms/lmsflow/pkg/models"
)

// CreateTestInstance creates a running WorkflowInstance with default values that can be overridden.
func CreateTestInstance(overrides ...func(*models.WorkflowInstance)) *models.WorkflowInstance {
	now := time.Now().UTC().Truncate(time.Millisecond)

	inst := &models.WorkflowInstance{
		ID:                uuid.New().String(),
		WorkflowID:        "order-approval",
		DefinitionVersion: "1.0",
		TenantID:          models.DefaultTenant,
		CurrentNode:       "start",
		Status:            models.InstanceRunning,
		Context:           map[string]any{"orderId": "ORD-1", "amount": 2000.0},
		StartedBy:         "tester",
		StartedAt:         now,
		UpdatedAt:         now,
		ActiveBranches:    1,
	}

	for _, override := range overrides {
		override(inst)
	}

	return inst
}

// WithInstanceTenant sets the instance tenant.
func WithInstanceTenant(tenantID string) func(*models.WorkflowInstance) {
	return func(i *models.WorkflowInstance) {
		i.TenantID = tenantID
	}
}

// WithInstanceStatus sets the instance status.
func WithInstanceStatus(status models.InstanceStatus) func(*models.WorkflowInstance) {
	return func(i *models.WorkflowInstance) {
		i.Status = status
	}
}

// WithWorkflow sets the workflow the instance runs.
func WithWorkflow(workflowID string) func(*models.WorkflowInstance) {
	return func(i *models.WorkflowInstance) {
		i.WorkflowID = workflowID
	}
}

// WithStartedAt sets the start time.
func WithStartedAt(at time.Time) func(*models.WorkflowInstance) {
	return func(i *models.WorkflowInstance) {
		i.StartedAt = at
		i.UpdatedAt = at
	}
}

// WithTimerWait suspends the instance on a timer node.
func WithTimerWait(nodeID string, due time.Time) func(*models.WorkflowInstance) {
	return func(i *models.WorkflowInstance) {
		if i.Waits == nil {
			i.Waits = make(map[string]*models.Wait)
		}

		i.Status = models.InstanceWaiting
		i.CurrentNode = nodeID
		i.Waits[nodeID] = &models.Wait{NodeID: nodeID, Kind: models.WaitTimer, Delay: "1h", DueAt: &due, Since: i.StartedAt}
	}
}

// CreateTestTask creates a WorkflowTask with default values that can be overridden.
func CreateTestTask(overrides ...func(*models.WorkflowTask)) *models.WorkflowTask {
	task := &models.WorkflowTask{
		ID:         uuid.New().String(),
		InstanceID: uuid.New().String(),
		TenantID:   models.DefaultTenant,
		NodeID:     "approve",
		Name:       "Approve order",
		Status:     models.TaskCreated,
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}

	for _, override := range overrides {
		override(task)
	}

	return task
}

// WithTaskInstance links the task to an instance.
func WithTaskInstance(instanceID string) func(*models.WorkflowTask) {
	return func(t *models.WorkflowTask) {
		t.InstanceID = instanceID
	}
}

// WithAssignee assigns the task.
func WithAssignee(user string) func(*models.WorkflowTask) {
	return func(t *models.WorkflowTask) {
		t.Assignee = user
		t.Status = models.TaskAssigned
	}
}

// WithCandidates sets the candidate pool.
func WithCandidates(users ...string) func(*models.WorkflowTask) {
	return func(t *models.WorkflowTask) {
		t.CandidateUsers = users
	}
}

// WithTaskTenant sets the task tenant.
func WithTaskTenant(tenantID string) func(*models.WorkflowTask) {
	return func(t *models.WorkflowTask) {
		t.TenantID = tenantID
	}
}

// WithCreatedAt sets the creation time.
func WithCreatedAt(at time.Time) func(*models.WorkflowTask) {
	return func(t *models.WorkflowTask) {
		t.CreatedAt = at
	}
}
