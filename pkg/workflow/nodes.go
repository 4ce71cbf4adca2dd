package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ycslms/lmsflow/pkg/condition"
	"github.com/ycslms/lmsflow/pkg/models"
)

// workflowEntityType is the entity type decision conditions see.
const workflowEntityType = "WORKFLOW"

// Property keys read from node properties when the typed field is unset.
const (
	propCandidateUsers = "candidateUsers"
	propDueDays        = "dueDays"
)

var errNoInvoker = errors.New("no operation invoker configured")

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeWaiting
	outcomeFailed
)

type nodeResult struct {
	outcome outcome
	data    map[string]any
	next    []string
	err     error
	wait    *models.Wait
	task    *models.WorkflowTask
}

func completed(data map[string]any, next []string) nodeResult {
	return nodeResult{outcome: outcomeCompleted, data: data, next: next}
}

func failed(err error) nodeResult {
	return nodeResult{outcome: outcomeFailed, err: err}
}

// nodeHandler executes one node type against an instance snapshot. It must not
// touch the store.
type nodeHandler func(ctx context.Context, inst *models.WorkflowInstance, node *models.WorkflowNode) nodeResult

func (e *Executor) nodeHandlers() map[models.NodeType]nodeHandler {
	return map[models.NodeType]nodeHandler{
		models.NodeTypeStart:       e.executeStart,
		models.NodeTypeEnd:         e.executeEnd,
		models.NodeTypeServiceTask: e.executeServiceTask,
		models.NodeTypeUserTask:    e.executeUserTask,
		models.NodeTypeDecision:    e.executeDecision,
		models.NodeTypeParallel:    e.executeParallel,
		models.NodeTypeTimer:       e.executeTimer,
	}
}

func (e *Executor) execute(ctx context.Context, inst *models.WorkflowInstance, node *models.WorkflowNode) nodeResult {
	handler, ok := e.handlers[node.Type]
	if !ok {
		return failed(fmt.Errorf("%w: unsupported node type %q", models.ErrNodeExecution, node.Type))
	}

	return handler(ctx, inst, node)
}

func (e *Executor) executeStart(_ context.Context, _ *models.WorkflowInstance, node *models.WorkflowNode) nodeResult {
	return completed(nil, node.Targets())
}

func (e *Executor) executeEnd(_ context.Context, _ *models.WorkflowInstance, _ *models.WorkflowNode) nodeResult {
	return completed(nil, nil)
}

func (e *Executor) executeServiceTask(ctx context.Context, inst *models.WorkflowInstance, node *models.WorkflowNode) nodeResult {
	if e.invoker == nil {
		return failed(fmt.Errorf("%w: %s.%s: %w", models.ErrNodeExecution, node.Component, node.Operation, errNoInvoker))
	}

	out, err := e.invoker.Invoke(ctx, node.Component, node.Operation, inst.Context)
	if err != nil {
		return failed(fmt.Errorf("%w: %s.%s: %w", models.ErrNodeExecution, node.Component, node.Operation, err))
	}

	return completed(out, node.Targets())
}

func (e *Executor) executeUserTask(_ context.Context, inst *models.WorkflowInstance, node *models.WorkflowNode) nodeResult {
	now := e.now()
	candidates := taskCandidates(node)

	task := &models.WorkflowTask{
		ID:             uuid.New().String(),
		InstanceID:     inst.ID,
		TenantID:       inst.TenantID,
		NodeID:         node.ID,
		Name:           node.Name,
		Description:    node.Description,
		Assignee:       node.Assignee,
		CandidateUsers: candidates,
		Status:         models.TaskCreated,
		CreatedAt:      now,
	}

	if task.Name == "" {
		task.Name = node.ID
	}

	// A preset assignee without a single candidate still waits for AssignTask.
	if len(candidates) == 1 {
		task.Assignee = candidates[0]
		task.Status = models.TaskAssigned
	}

	if days, ok := taskDueDays(node); ok {
		due := now.AddDate(0, 0, days)
		task.DueAt = &due
	}

	return nodeResult{
		outcome: outcomeWaiting,
		wait:    &models.Wait{Kind: models.WaitTask, TaskID: task.ID},
		task:    task,
	}
}

func (e *Executor) executeDecision(_ context.Context, inst *models.WorkflowInstance, node *models.WorkflowNode) nodeResult {
	rc := &models.RuleContext{
		EntityType: workflowEntityType,
		EntityID:   inst.ID,
		TenantID:   inst.TenantID,
		Data:       inst.Context,
		ExecutedAt: e.now(),
	}

	if node.Discriminant != "" {
		return routeByLabel(node, rc)
	}

	if node.Condition == nil || len(node.Outgoing) != 2 {
		return failed(fmt.Errorf("%w: decision %s needs a condition and two edges", models.ErrNodeExecution, node.ID))
	}

	decision, err := e.evaluator.Evaluate(*node.Condition, rc)
	if err != nil {
		return failed(fmt.Errorf("%w: decision %s: %w", models.ErrNodeExecution, node.ID, err))
	}

	edge := node.Outgoing[1]
	if decision {
		edge = node.Outgoing[0]
	}

	return completed(map[string]any{"decision": decision}, []string{edge.Target})
}

func routeByLabel(node *models.WorkflowNode, rc *models.RuleContext) nodeResult {
	label := ""
	if value, ok := condition.Resolve(node.Discriminant, rc); ok && value != nil {
		label = fmt.Sprint(value)
	}

	var fallback *models.Edge

	for i, edge := range node.Outgoing {
		if edge.Label == label && label != "" {
			return completed(map[string]any{"decision": label}, []string{edge.Target})
		}

		if edge.Label == models.DefaultEdgeLabel && fallback == nil {
			fallback = &node.Outgoing[i]
		}
	}

	if fallback != nil {
		return completed(map[string]any{"decision": models.DefaultEdgeLabel}, []string{fallback.Target})
	}

	return failed(fmt.Errorf("%w: decision %s has no edge for %q", models.ErrNodeExecution, node.ID, label))
}

func (e *Executor) executeParallel(_ context.Context, _ *models.WorkflowInstance, node *models.WorkflowNode) nodeResult {
	return completed(map[string]any{"parallelBranches": len(node.Outgoing)}, node.Targets())
}

func (e *Executor) executeTimer(_ context.Context, _ *models.WorkflowInstance, node *models.WorkflowNode) nodeResult {
	d, err := parseDelay(node.Delay)
	if err != nil {
		return failed(fmt.Errorf("%w: timer %s: %w", models.ErrNodeExecution, node.ID, err))
	}

	due := d.dueAt(e.now())

	return nodeResult{
		outcome: outcomeWaiting,
		wait:    &models.Wait{Kind: models.WaitTimer, Delay: node.Delay, DueAt: &due},
	}
}

// taskCandidates prefers the typed pool and falls back to a comma separated property.
func taskCandidates(node *models.WorkflowNode) []string {
	if len(node.CandidateUsers) > 0 {
		return append([]string(nil), node.CandidateUsers...)
	}

	raw, _ := node.Properties[propCandidateUsers].(string)
	if raw == "" {
		return nil
	}

	var users []string

	for _, u := range strings.Split(raw, ",") {
		if u = strings.TrimSpace(u); u != "" {
			users = append(users, u)
		}
	}

	return users
}

// taskDueDays reads DueInDays or the dueDays property. Unparsable values mean no due date.
func taskDueDays(node *models.WorkflowNode) (int, bool) {
	if node.DueInDays != nil {
		return *node.DueInDays, true
	}

	switch v := node.Properties[propDueDays].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	case string:
		days, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}

		return days, true
	}

	return 0, false
}
