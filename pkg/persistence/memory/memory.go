// Package memory provides the default in-process persistence implementation.
package memory

import (
	"context"
	"sync"

	"github.com/ycslms/lmsflow/pkg/models"
	"github.com/ycslms/lmsflow/pkg/persistence"
)

// Persistence keeps instances and tasks in RWMutex-guarded maps.
type Persistence struct {
	mu        sync.RWMutex
	instances map[string]*models.WorkflowInstance
	tasks     map[string]*models.WorkflowTask
}

func NewPersistence() *Persistence {
	return &Persistence{
		instances: make(map[string]*models.WorkflowInstance),
		tasks:     make(map[string]*models.WorkflowTask),
	}
}

func (p *Persistence) SaveInstance(_ context.Context, instance *models.WorkflowInstance) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.instances[instance.ID] = instance.Clone()

	return nil
}

func (p *Persistence) InstanceByID(_ context.Context, id string) (*models.WorkflowInstance, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	inst, ok := p.instances[id]
	if !ok {
		return nil, persistence.NewInstanceError("InstanceByID", id, models.ErrInstanceNotFound)
	}

	return inst.Clone(), nil
}

func (p *Persistence) Instances(_ context.Context, filter persistence.InstanceFilter) ([]*models.WorkflowInstance, error) {
	p.mu.RLock()

	list := make([]*models.WorkflowInstance, 0)
	for _, inst := range p.instances {
		if filter.Match(inst) {
			list = append(list, inst.Clone())
		}
	}
	p.mu.RUnlock()

	persistence.SortInstances(list)

	return list, nil
}

func (p *Persistence) SaveTask(_ context.Context, task *models.WorkflowTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tasks[task.ID] = task.Clone()

	return nil
}

func (p *Persistence) TaskByID(_ context.Context, id string) (*models.WorkflowTask, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	task, ok := p.tasks[id]
	if !ok {
		return nil, persistence.NewTaskError("TaskByID", id, models.ErrTaskNotFound)
	}

	return task.Clone(), nil
}

func (p *Persistence) Tasks(_ context.Context, filter persistence.TaskFilter) ([]*models.WorkflowTask, error) {
	p.mu.RLock()

	list := make([]*models.WorkflowTask, 0)
	for _, task := range p.tasks {
		if filter.Match(task) {
			list = append(list, task.Clone())
		}
	}
	p.mu.RUnlock()

	persistence.SortTasks(list)

	return list, nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}
