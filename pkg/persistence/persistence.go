// Package persistence provides the storage abstraction for workflow instances and tasks.
package persistence

import (
	"context"
	"sort"

	"github.com/ycslms/lmsflow/pkg/models"
)

// InstanceFilter selects instances of one tenant. Empty fields match everything.
type InstanceFilter struct {
	TenantID   string
	WorkflowID string
	Status     models.InstanceStatus
}

// Match reports whether inst satisfies the filter.
func (f InstanceFilter) Match(inst *models.WorkflowInstance) bool {
	if f.TenantID != "" && inst.TenantID != f.TenantID {
		return false
	}

	if f.WorkflowID != "" && inst.WorkflowID != f.WorkflowID {
		return false
	}

	return f.Status == "" || inst.Status == f.Status
}

// TaskFilter selects tasks. UserID matches the assignee or any candidate.
type TaskFilter struct {
	TenantID   string
	UserID     string
	InstanceID string
	Status     models.TaskStatus
}

// Match reports whether task satisfies the filter.
func (f TaskFilter) Match(task *models.WorkflowTask) bool {
	if f.TenantID != "" && task.TenantID != f.TenantID {
		return false
	}

	if f.InstanceID != "" && task.InstanceID != f.InstanceID {
		return false
	}

	if f.UserID != "" && !task.VisibleTo(f.UserID) {
		return false
	}

	return f.Status == "" || task.Status == f.Status
}

// Persistence stores workflow instances and tasks. Implementations return
// copies, so callers never share memory with the store. Lookups of unknown
// ids fail with models.ErrInstanceNotFound or models.ErrTaskNotFound.
type Persistence interface {
	SaveInstance(ctx context.Context, instance *models.WorkflowInstance) error
	InstanceByID(ctx context.Context, id string) (*models.WorkflowInstance, error)
	// Instances returns matches newest first.
	Instances(ctx context.Context, filter InstanceFilter) ([]*models.WorkflowInstance, error)

	SaveTask(ctx context.Context, task *models.WorkflowTask) error
	TaskByID(ctx context.Context, id string) (*models.WorkflowTask, error)
	// Tasks returns matches newest first.
	Tasks(ctx context.Context, filter TaskFilter) ([]*models.WorkflowTask, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// SortInstances orders instances newest first, breaking ties by id.
func SortInstances(list []*models.WorkflowInstance) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].StartedAt.Equal(list[j].StartedAt) {
			return list[i].StartedAt.After(list[j].StartedAt)
		}

		return list[i].ID > list[j].ID
	})
}

// SortTasks orders tasks newest first, breaking ties by id.
func SortTasks(list []*models.WorkflowTask) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}

		return list[i].ID > list[j].ID
	})
}
