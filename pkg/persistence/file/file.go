// Package file provides file-based persistence for workflow instances and tasks.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ycslms/lmsflow/pkg/models"
	"github.com/ycslms/lmsflow/pkg/persistence"
)

const (
	instancesDir = "instances"
	tasksDir     = "tasks"
)

// Persistence stores each record as <root>/<kind>/<id>.json.
type Persistence struct {
	root string
	mu   sync.RWMutex
}

// NewPersistence creates a file store rooted at root. A file:// prefix is accepted.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.Replace(root, "file://", "", 1)}
}

// validateID validates that the id is safe for file operations.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id cannot be empty", persistence.ErrInvalidID)
	}

	if strings.Contains(id, "..") || strings.Contains(id, "/") || strings.Contains(id, "\\") {
		return fmt.Errorf("%w: %q contains invalid characters", persistence.ErrInvalidID, id)
	}

	return nil
}

func (fp *Persistence) SaveInstance(_ context.Context, instance *models.WorkflowInstance) error {
	if err := validateID(instance.ID); err != nil {
		return persistence.NewInstanceError("SaveInstance", instance.ID, err)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	if err := fp.write(instancesDir, instance.ID, instance); err != nil {
		return persistence.NewInstanceError("SaveInstance", instance.ID, err)
	}

	return nil
}

func (fp *Persistence) InstanceByID(_ context.Context, id string) (*models.WorkflowInstance, error) {
	if err := validateID(id); err != nil {
		return nil, persistence.NewInstanceError("InstanceByID", id, err)
	}

	fp.mu.RLock()
	defer fp.mu.RUnlock()

	var inst models.WorkflowInstance

	err := fp.read(instancesDir, id, &inst)
	if errors.Is(err, os.ErrNotExist) {
		return nil, persistence.NewInstanceError("InstanceByID", id, models.ErrInstanceNotFound)
	}

	if err != nil {
		return nil, persistence.NewInstanceError("InstanceByID", id, err)
	}

	return &inst, nil
}

func (fp *Persistence) Instances(_ context.Context, filter persistence.InstanceFilter) ([]*models.WorkflowInstance, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	ids, err := fp.ids(instancesDir)
	if err != nil {
		return nil, err
	}

	list := make([]*models.WorkflowInstance, 0, len(ids))

	for _, id := range ids {
		var inst models.WorkflowInstance
		if err := fp.read(instancesDir, id, &inst); err != nil {
			// Skip invalid files
			continue
		}

		if filter.Match(&inst) {
			list = append(list, &inst)
		}
	}

	persistence.SortInstances(list)

	return list, nil
}

func (fp *Persistence) SaveTask(_ context.Context, task *models.WorkflowTask) error {
	if err := validateID(task.ID); err != nil {
		return persistence.NewTaskError("SaveTask", task.ID, err)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	if err := fp.write(tasksDir, task.ID, task); err != nil {
		return persistence.NewTaskError("SaveTask", task.ID, err)
	}

	return nil
}

func (fp *Persistence) TaskByID(_ context.Context, id string) (*models.WorkflowTask, error) {
	if err := validateID(id); err != nil {
		return nil, persistence.NewTaskError("TaskByID", id, err)
	}

	fp.mu.RLock()
	defer fp.mu.RUnlock()

	var task models.WorkflowTask

	err := fp.read(tasksDir, id, &task)
	if errors.Is(err, os.ErrNotExist) {
		return nil, persistence.NewTaskError("TaskByID", id, models.ErrTaskNotFound)
	}

	if err != nil {
		return nil, persistence.NewTaskError("TaskByID", id, err)
	}

	return &task, nil
}

func (fp *Persistence) Tasks(_ context.Context, filter persistence.TaskFilter) ([]*models.WorkflowTask, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	ids, err := fp.ids(tasksDir)
	if err != nil {
		return nil, err
	}

	list := make([]*models.WorkflowTask, 0, len(ids))

	for _, id := range ids {
		var task models.WorkflowTask
		if err := fp.read(tasksDir, id, &task); err != nil {
			continue
		}

		if filter.Match(&task) {
			list = append(list, &task)
		}
	}

	persistence.SortTasks(list)

	return list, nil
}

// HealthCheck verifies that the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); err != nil {
		return fmt.Errorf("file store root %s: %w", fp.root, err)
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

func (fp *Persistence) write(kind, id string, value any) error {
	dir := filepath.Join(fp.root, kind)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	// Write to a temp file first so readers never see a partial record.
	tmp := filepath.Join(dir, id+".json.tmp")

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", id, err)
	}

	return os.Rename(tmp, filepath.Join(dir, id+".json"))
}

func (fp *Persistence) read(kind, id string, out any) error {
	path := filepath.Join(fp.root, kind, id+".json")

	data, err := os.ReadFile(path) // #nosec G304 -- id is validated and path constructed safely
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", id, err)
	}

	return nil
}

func (fp *Persistence) ids(kind string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(fp.root, kind))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read %s directory: %w", kind, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}

	return ids, nil
}
