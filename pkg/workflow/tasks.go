package workflow

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ycslms/lmsflow/pkg/events"
	"github.com/ycslms/lmsflow/pkg/models"
	"github.com/ycslms/lmsflow/pkg/persistence"
	"github.com/ycslms/lmsflow/pkg/tenancy"
)

func (e *Executor) Task(ctx context.Context, id string) (*models.WorkflowTask, error) {
	return e.store.TaskByID(ctx, id)
}

// ListTasksForUser returns the tasks of tenantID assigned to userID or offered
// to them as a candidate, newest first. An empty status matches every status.
func (e *Executor) ListTasksForUser(ctx context.Context, userID, tenantID string, status models.TaskStatus) ([]*models.WorkflowTask, error) {
	return e.store.Tasks(ctx, persistence.TaskFilter{
		TenantID: tenancy.OrDefault(tenantID),
		UserID:   userID,
		Status:   status,
	})
}

// AssignTask claims a created task for userID. When the task has a candidate
// pool the user must belong to it.
func (e *Executor) AssignTask(ctx context.Context, taskID, userID string) error {
	task, err := e.store.TaskByID(ctx, taskID)
	if err != nil {
		return err
	}

	unlock := e.locks.lock(task.InstanceID)
	defer unlock()

	task, err = e.store.TaskByID(ctx, taskID)
	if err != nil {
		return err
	}

	switch {
	case userID == "":
		return newInstanceError("AssignTask", task.InstanceID, fmt.Errorf("%w: empty user", models.ErrInvalidState))
	case task.Status != models.TaskCreated:
		return newInstanceError("AssignTask", task.InstanceID,
			fmt.Errorf("%w: task %s is %s", models.ErrInvalidState, taskID, task.Status))
	case len(task.CandidateUsers) > 0 && !slices.Contains(task.CandidateUsers, userID):
		return newInstanceError("AssignTask", task.InstanceID,
			fmt.Errorf("%w: %s is not a candidate for task %s", models.ErrInvalidState, userID, taskID))
	}

	task.Assignee = userID
	task.Status = models.TaskAssigned

	if err := e.store.SaveTask(ctx, task); err != nil {
		return newInstanceError("AssignTask", task.InstanceID, err)
	}

	e.logger.InfoContext(ctx, "Task assigned", "task_id", taskID, "instance_id", task.InstanceID, "assignee", userID)

	return nil
}

// CompleteTask records the result of an assigned task, merges it into the
// instance context and resumes the graph after the task's node.
func (e *Executor) CompleteTask(ctx context.Context, taskID string, result map[string]any, completedBy string) error {
	task, err := e.store.TaskByID(ctx, taskID)
	if err != nil {
		return err
	}

	unlock := e.locks.lock(task.InstanceID)
	defer unlock()

	task, err = e.store.TaskByID(ctx, taskID)
	if err != nil {
		return err
	}

	if task.Status != models.TaskAssigned {
		return newInstanceError("CompleteTask", task.InstanceID,
			fmt.Errorf("%w: task %s is %s", models.ErrInvalidState, taskID, task.Status))
	}

	inst, err := e.store.InstanceByID(ctx, task.InstanceID)
	if err != nil {
		return newInstanceError("CompleteTask", task.InstanceID, err)
	}

	if inst.Status.Terminal() {
		return newInstanceError("CompleteTask", inst.ID,
			fmt.Errorf("%w: instance is %s", models.ErrInvalidState, inst.Status))
	}

	var node *models.WorkflowNode
	if def, err := e.registry.resolve(inst.WorkflowID, inst.TenantID); err == nil {
		node, _ = def.Node(task.NodeID)
	}

	if node != nil && node.ResultSchema != nil {
		if err := validateResult(node.ResultSchema, result); err != nil {
			return newInstanceError("CompleteTask", inst.ID, err)
		}
	}

	now := e.now()
	task.Status = models.TaskCompleted
	task.CompletedBy = completedBy
	task.CompletedAt = &now
	task.Result = models.CopyMap(result)

	if err := e.store.SaveTask(ctx, task); err != nil {
		return newInstanceError("CompleteTask", inst.ID, err)
	}

	e.logger.InfoContext(ctx, "Task completed", "task_id", taskID, "instance_id", inst.ID, "completed_by", completedBy)

	e.publish(ctx, inst.ID, events.TaskCompleted{
		BaseEvent:   events.NewBaseEvent(events.TaskCompletedEvent, inst.TenantID),
		TaskID:      task.ID,
		InstanceID:  inst.ID,
		NodeID:      task.NodeID,
		CompletedBy: completedBy,
		Result:      models.CopyMap(result),
	})

	for key, wait := range inst.Waits {
		if wait.Kind == models.WaitTask && wait.TaskID == task.ID {
			delete(inst.Waits, key)

			break
		}
	}

	if node == nil || node.Type != models.NodeTypeUserTask {
		e.logger.WarnContext(ctx, "Completed task does not belong to a user task node",
			"task_id", taskID, "node_id", task.NodeID)

		return e.merge(ctx, inst, result)
	}

	return e.advance(ctx, inst, node.ID, result, node.Targets())
}

// merge stores data without moving the graph. The caller holds the instance lock.
func (e *Executor) merge(ctx context.Context, inst *models.WorkflowInstance, data map[string]any) error {
	if inst.Context == nil {
		inst.Context = make(map[string]any)
	}

	maps.Copy(inst.Context, models.CopyMap(data))

	inst.UpdatedAt = e.now()

	if err := e.store.SaveInstance(ctx, inst); err != nil {
		return newInstanceError("CompleteTask", inst.ID, err)
	}

	return nil
}

func compileSchema(schema map[string]any) (*gojsonschema.Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("invalid result schema: %w", err)
	}

	return compiled, nil
}

func validateResult(schema, result map[string]any) error {
	compiled, err := compileSchema(schema)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrInvalidTaskResult, err)
	}

	if result == nil {
		result = map[string]any{}
	}

	res, err := compiled.Validate(gojsonschema.NewGoLoader(result))
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrInvalidTaskResult, err)
	}

	if res.Valid() {
		return nil
	}

	problems := make([]string, 0, len(res.Errors()))
	for _, re := range res.Errors() {
		problems = append(problems, re.String())
	}

	return fmt.Errorf("%w: %s", models.ErrInvalidTaskResult, strings.Join(problems, "; "))
}
