package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ycslms/lmsflow/pkg/condition"
	"github.com/ycslms/lmsflow/pkg/events"
	"github.com/ycslms/lmsflow/pkg/models"
	"github.com/ycslms/lmsflow/pkg/otelhelper"
	"github.com/ycslms/lmsflow/pkg/persistence"
	"github.com/ycslms/lmsflow/pkg/persistence/memory"
	"github.com/ycslms/lmsflow/pkg/protocol"
	"github.com/ycslms/lmsflow/pkg/tenancy"
)

// Executor runs workflow instances. Node executions are asynchronous; the
// state of one instance is only mutated while holding that instance's lock.
type Executor struct {
	logger    *slog.Logger
	registry  *Registry
	store     persistence.Persistence
	invoker   protocol.OperationInvoker
	evaluator *condition.Evaluator
	publisher protocol.EventPublisher
	tracer    trace.Tracer
	now       func() time.Time

	locks    *instanceLocks
	wg       sync.WaitGroup
	handlers map[models.NodeType]nodeHandler
}

type Option func(*Executor)

// WithStore sets where instances and tasks live. Defaults to an in-memory store.
func WithStore(s persistence.Persistence) Option {
	return func(e *Executor) { e.store = s }
}

// WithInvoker sets the invoker used by service-task nodes.
func WithInvoker(i protocol.OperationInvoker) Option {
	return func(e *Executor) { e.invoker = i }
}

func WithEvaluator(ev *condition.Evaluator) Option {
	return func(e *Executor) { e.evaluator = ev }
}

func WithPublisher(p protocol.EventPublisher) Option {
	return func(e *Executor) { e.publisher = p }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

func NewExecutor(logger *slog.Logger, registry *Registry, opts ...Option) *Executor {
	e := &Executor{
		logger:    logger,
		registry:  registry,
		publisher: protocol.NopPublisher{},
		tracer:    otelhelper.Tracer(),
		now:       time.Now,
		locks:     newInstanceLocks(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.store == nil {
		e.store = memory.NewPersistence()
	}

	if e.evaluator == nil {
		e.evaluator = condition.NewEvaluator(nil)
	}

	e.handlers = e.nodeHandlers()

	return e
}

// Start creates an instance of workflowID for tenantID and schedules its start
// node. It returns the instance id without waiting for any node to run.
func (e *Executor) Start(ctx context.Context, workflowID, tenantID string, initial map[string]any, startedBy string) (string, error) {
	tenantID = tenancy.OrDefault(tenantID)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.start",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.TenantIDKey, tenantID),
	)
	defer span.End()

	def, err := e.registry.resolve(workflowID, tenantID)
	if err != nil {
		otelhelper.SetError(span, err)

		return "", err
	}

	data := models.CopyMap(initial)
	if data == nil {
		data = make(map[string]any)
	}

	now := e.now()
	inst := &models.WorkflowInstance{
		ID:                uuid.New().String(),
		WorkflowID:        def.ID,
		DefinitionVersion: def.Version,
		TenantID:          tenantID,
		CurrentNode:       def.StartNode,
		Status:            models.InstanceRunning,
		Context:           data,
		StartedBy:         startedBy,
		StartedAt:         now,
		UpdatedAt:         now,
		ActiveBranches:    1,
	}

	span.SetAttributes(attribute.String(otelhelper.InstanceIDKey, inst.ID))

	if err := e.store.SaveInstance(ctx, inst); err != nil {
		otelhelper.SetError(span, err)

		return "", newInstanceError("Start", inst.ID, err)
	}

	e.logger.InfoContext(ctx, "Started workflow instance",
		"instance_id", inst.ID, "workflow_id", def.ID, "tenant_id", tenantID, "started_by", startedBy)

	e.publish(ctx, inst.ID, events.InstanceStarted{
		BaseEvent:  events.NewBaseEvent(events.InstanceStartedEvent, tenantID),
		InstanceID: inst.ID,
		WorkflowID: def.ID,
		StartedBy:  startedBy,
		Context:    models.CopyMap(data),
	})

	e.dispatch(ctx, inst.ID, def.StartNode)
	otelhelper.SetOK(span)

	return inst.ID, nil
}

// ExecuteNode schedules nodeID of instanceID as an additional branch. Unknown
// instances or nodes and terminal instances are logged and ignored.
func (e *Executor) ExecuteNode(ctx context.Context, instanceID, nodeID string) {
	if !e.addBranch(ctx, instanceID, nodeID) {
		return
	}

	e.dispatch(ctx, instanceID, nodeID)
}

func (e *Executor) addBranch(ctx context.Context, instanceID, nodeID string) bool {
	logger := e.logger.With("instance_id", instanceID, "node_id", nodeID)

	unlock := e.locks.lock(instanceID)
	defer unlock()

	inst, err := e.store.InstanceByID(ctx, instanceID)
	if err != nil {
		logger.WarnContext(ctx, "Ignoring node execution for unknown instance", "error", err)

		return false
	}

	if inst.Status.Terminal() {
		logger.InfoContext(ctx, "Ignoring node execution on terminal instance", "status", inst.Status)

		return false
	}

	def, err := e.registry.resolve(inst.WorkflowID, inst.TenantID)
	if err != nil {
		logger.WarnContext(ctx, "Ignoring node execution without definition", "error", err)

		return false
	}

	if _, ok := def.Node(nodeID); !ok {
		logger.WarnContext(ctx, "Ignoring execution of undefined node", "workflow_id", inst.WorkflowID)

		return false
	}

	inst.ActiveBranches++
	inst.Status = branchStatus(inst)
	inst.UpdatedAt = e.now()

	if err := e.store.SaveInstance(ctx, inst); err != nil {
		logger.ErrorContext(ctx, "Failed to save instance before node execution", "error", err)

		return false
	}

	return true
}

// Wait blocks until every scheduled node execution has finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}

func (e *Executor) Instance(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	return e.store.InstanceByID(ctx, id)
}

// Instances lists instances of one tenant, newest first.
func (e *Executor) Instances(ctx context.Context, filter persistence.InstanceFilter) ([]*models.WorkflowInstance, error) {
	filter.TenantID = tenancy.OrDefault(filter.TenantID)

	return e.store.Instances(ctx, filter)
}

// FireTimer resumes a timer the instance is waiting on. nodeID is the wait key,
// which is the timer node id unless another branch already waits there.
func (e *Executor) FireTimer(ctx context.Context, instanceID, nodeID string) error {
	unlock := e.locks.lock(instanceID)
	defer unlock()

	inst, err := e.store.InstanceByID(ctx, instanceID)
	if err != nil {
		return newInstanceError("FireTimer", instanceID, err)
	}

	wait, ok := inst.Waits[nodeID]
	if inst.Status.Terminal() || !ok || wait.Kind != models.WaitTimer {
		return newInstanceError("FireTimer", instanceID,
			fmt.Errorf("%w: no timer waiting on node %s", models.ErrInvalidState, nodeID))
	}

	def, err := e.registry.resolve(inst.WorkflowID, inst.TenantID)
	if err != nil {
		return newInstanceError("FireTimer", instanceID, err)
	}

	node, ok := def.Node(wait.NodeID)
	if !ok {
		return newInstanceError("FireTimer", instanceID,
			fmt.Errorf("%w: node %s is no longer defined", models.ErrInvalidState, wait.NodeID))
	}

	delete(inst.Waits, nodeID)

	e.logger.InfoContext(ctx, "Timer fired", "instance_id", instanceID, "node_id", nodeID)

	return e.advance(ctx, inst, node.ID, nil, node.Targets())
}

func (e *Executor) dispatch(ctx context.Context, instanceID, nodeID string) {
	e.wg.Add(1)

	go func() {
		defer e.wg.Done()

		e.run(context.WithoutCancel(ctx), instanceID, nodeID)
	}()
}

func (e *Executor) run(ctx context.Context, instanceID, nodeID string) {
	snapshot, node, ok := e.begin(ctx, instanceID, nodeID)
	if !ok {
		return
	}

	ctx = tenancy.WithTenant(ctx, snapshot.TenantID)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.node",
		attribute.String(otelhelper.InstanceIDKey, instanceID),
		attribute.String(otelhelper.WorkflowIDKey, snapshot.WorkflowID),
		attribute.String(otelhelper.TenantIDKey, snapshot.TenantID),
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
	)
	defer span.End()

	result := e.execute(ctx, snapshot, node)

	if result.err != nil {
		otelhelper.SetError(span, result.err)
	} else {
		otelhelper.SetOK(span)
	}

	e.apply(ctx, instanceID, node, result)
}

// begin marks nodeID as current and returns a snapshot to execute against.
func (e *Executor) begin(ctx context.Context, instanceID, nodeID string) (*models.WorkflowInstance, *models.WorkflowNode, bool) {
	logger := e.logger.With("instance_id", instanceID, "node_id", nodeID)

	unlock := e.locks.lock(instanceID)
	defer unlock()

	inst, err := e.store.InstanceByID(ctx, instanceID)
	if err != nil {
		logger.WarnContext(ctx, "Dropping node execution for unknown instance", "error", err)

		return nil, nil, false
	}

	if inst.Status.Terminal() {
		logger.InfoContext(ctx, "Dropping node execution on terminal instance", "status", inst.Status)

		return nil, nil, false
	}

	def, err := e.registry.resolve(inst.WorkflowID, inst.TenantID)
	if err != nil {
		logger.WarnContext(ctx, "Dropping node execution without definition", "error", err)

		return nil, nil, false
	}

	node, ok := def.Node(nodeID)
	if !ok {
		logger.WarnContext(ctx, "Dropping execution of undefined node", "workflow_id", inst.WorkflowID)

		return nil, nil, false
	}

	inst.CurrentNode = node.ID
	inst.Status = models.InstanceRunning
	inst.UpdatedAt = e.now()

	if err := e.store.SaveInstance(ctx, inst); err != nil {
		logger.ErrorContext(ctx, "Failed to save instance before node execution", "error", err)

		return nil, nil, false
	}

	logger.DebugContext(ctx, "Executing node", "node_type", node.Type)

	return inst.Clone(), node, true
}

// apply folds a node result into the current instance state.
func (e *Executor) apply(ctx context.Context, instanceID string, node *models.WorkflowNode, result nodeResult) {
	logger := e.logger.With("instance_id", instanceID, "node_id", node.ID)

	unlock := e.locks.lock(instanceID)
	defer unlock()

	inst, err := e.store.InstanceByID(ctx, instanceID)
	if err != nil {
		logger.ErrorContext(ctx, "Instance vanished during node execution", "error", err)

		return
	}

	if inst.Status.Terminal() {
		logger.InfoContext(ctx, "Discarding node result on terminal instance", "status", inst.Status)

		return
	}

	switch result.outcome {
	case outcomeCompleted:
		err = e.advance(ctx, inst, node.ID, result.data, result.next)
	case outcomeWaiting:
		err = e.suspend(ctx, inst, node, result)
	case outcomeFailed:
		err = e.fail(ctx, inst, node.ID, result.err)
	}

	if err != nil {
		logger.ErrorContext(ctx, "Failed to apply node result", "error", err)
	}
}

// advance merges data and schedules next. The caller holds the instance lock.
func (e *Executor) advance(ctx context.Context, inst *models.WorkflowInstance, nodeID string, data map[string]any, next []string) error {
	if inst.Context == nil {
		inst.Context = make(map[string]any)
	}

	maps.Copy(inst.Context, models.CopyMap(data))

	now := e.now()
	inst.UpdatedAt = now
	inst.ActiveBranches += len(next) - 1

	if len(next) == 0 && inst.ActiveBranches <= 0 {
		if len(inst.Waits) > 0 {
			e.logger.WarnContext(ctx, "Completing instance with open waits",
				"instance_id", inst.ID, "node_id", nodeID, "waits", len(inst.Waits))
		}

		inst.ActiveBranches = 0
		inst.Waits = nil
		inst.Status = models.InstanceCompleted
		inst.CompletedAt = &now

		if err := e.store.SaveInstance(ctx, inst); err != nil {
			return newInstanceError("Complete", inst.ID, err)
		}

		e.logger.InfoContext(ctx, "Workflow instance completed",
			"instance_id", inst.ID, "workflow_id", inst.WorkflowID, "node_id", nodeID)

		e.cancelOpenTasks(ctx, inst)

		e.publish(ctx, inst.ID, events.InstanceCompleted{
			BaseEvent:  events.NewBaseEvent(events.InstanceCompletedEvent, inst.TenantID),
			InstanceID: inst.ID,
			WorkflowID: inst.WorkflowID,
			Context:    models.CopyMap(inst.Context),
			Duration:   now.Sub(inst.StartedAt),
		})

		return nil
	}

	inst.Status = branchStatus(inst)

	if err := e.store.SaveInstance(ctx, inst); err != nil {
		return newInstanceError("Advance", inst.ID, err)
	}

	for _, target := range next {
		e.dispatch(ctx, inst.ID, target)
	}

	return nil
}

// suspend records a wait for node. The caller holds the instance lock.
func (e *Executor) suspend(ctx context.Context, inst *models.WorkflowInstance, node *models.WorkflowNode, result nodeResult) error {
	now := e.now()

	if result.task != nil {
		if err := e.store.SaveTask(ctx, result.task); err != nil {
			return e.fail(ctx, inst, node.ID, fmt.Errorf("%w: saving task: %w", models.ErrNodeExecution, err))
		}
	}

	if inst.Waits == nil {
		inst.Waits = make(map[string]*models.Wait)
	}

	wait := result.wait
	wait.NodeID = node.ID
	wait.Since = now
	inst.Waits[waitKey(inst.Waits, node.ID, wait.TaskID)] = wait
	inst.UpdatedAt = now
	inst.Status = branchStatus(inst)

	if err := e.store.SaveInstance(ctx, inst); err != nil {
		return newInstanceError("Suspend", inst.ID, err)
	}

	e.logger.InfoContext(ctx, "Workflow instance waiting",
		"instance_id", inst.ID, "node_id", node.ID, "wait_kind", wait.Kind, "status", inst.Status)

	e.publish(ctx, inst.ID, events.InstanceWaiting{
		BaseEvent:  events.NewBaseEvent(events.InstanceWaitingEvent, inst.TenantID),
		InstanceID: inst.ID,
		WorkflowID: inst.WorkflowID,
		NodeID:     node.ID,
		WaitKind:   string(wait.Kind),
	})

	if task := result.task; task != nil {
		e.publish(ctx, inst.ID, events.TaskCreated{
			BaseEvent:      events.NewBaseEvent(events.TaskCreatedEvent, inst.TenantID),
			TaskID:         task.ID,
			InstanceID:     inst.ID,
			NodeID:         node.ID,
			Name:           task.Name,
			Assignee:       task.Assignee,
			CandidateUsers: task.CandidateUsers,
			DueAt:          task.DueAt,
		})
	}

	return nil
}

// fail stops the instance and cancels its open tasks. The caller holds the instance lock.
func (e *Executor) fail(ctx context.Context, inst *models.WorkflowInstance, nodeID string, cause error) error {
	inst.Status = models.InstanceFailed
	inst.Error = cause.Error()
	inst.UpdatedAt = e.now()

	if err := e.store.SaveInstance(ctx, inst); err != nil {
		return newInstanceError("Fail", inst.ID, err)
	}

	e.logger.ErrorContext(ctx, "Workflow instance failed",
		"instance_id", inst.ID, "workflow_id", inst.WorkflowID, "node_id", nodeID, "error", cause)

	e.cancelOpenTasks(ctx, inst)

	e.publish(ctx, inst.ID, events.InstanceFailed{
		BaseEvent:  events.NewBaseEvent(events.InstanceFailedEvent, inst.TenantID),
		InstanceID: inst.ID,
		WorkflowID: inst.WorkflowID,
		NodeID:     nodeID,
		Error:      inst.Error,
	})

	return nil
}

// cancelOpenTasks cancels every non-terminal task of a terminal instance.
func (e *Executor) cancelOpenTasks(ctx context.Context, inst *models.WorkflowInstance) {
	tasks, err := e.store.Tasks(ctx, persistence.TaskFilter{InstanceID: inst.ID})
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to list tasks of instance", "instance_id", inst.ID, "error", err)

		return
	}

	for _, task := range tasks {
		if task.Status.Terminal() {
			continue
		}

		task.Status = models.TaskCancelled
		if err := e.store.SaveTask(ctx, task); err != nil {
			e.logger.ErrorContext(ctx, "Failed to cancel task", "task_id", task.ID, "error", err)
		}
	}
}

func (e *Executor) publish(ctx context.Context, key string, event events.Event) {
	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

// branchStatus is waiting once every live branch is suspended.
func branchStatus(inst *models.WorkflowInstance) models.InstanceStatus {
	if inst.ActiveBranches > 0 && len(inst.Waits) >= inst.ActiveBranches {
		return models.InstanceWaiting
	}

	return models.InstanceRunning
}

// waitKey is nodeID unless another branch already waits on that node, then the
// task id or a numbered node key.
func waitKey(waits map[string]*models.Wait, nodeID, taskID string) string {
	if _, taken := waits[nodeID]; !taken {
		return nodeID
	}

	if taskID != "" {
		return taskID
	}

	for n := 2; ; n++ {
		key := nodeID + "#" + strconv.Itoa(n)
		if _, taken := waits[key]; !taken {
			return key
		}
	}
}
