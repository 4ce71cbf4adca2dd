// Package web provides the REST handlers over the rule engine and the workflow executor.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/ycslms/lmsflow/pkg/models"
	"github.com/ycslms/lmsflow/pkg/persistence"
	"github.com/ycslms/lmsflow/pkg/rules"
	"github.com/ycslms/lmsflow/pkg/tenancy"
	"github.com/ycslms/lmsflow/pkg/workflow"
)

type APIHandlers struct {
	engine    *rules.Engine
	workflows *workflow.Registry
	executor  *workflow.Executor
	store     persistence.Persistence
	validator *validator.Validate
}

func NewAPIHandlers(
	engine *rules.Engine,
	workflows *workflow.Registry,
	executor *workflow.Executor,
	store persistence.Persistence,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		engine:    engine,
		workflows: workflows,
		executor:  executor,
		store:     store,
		validator: validator,
	}
}

func tenant(c fiber.Ctx) string {
	return tenancy.OrDefault(c.Get(TenantHeader))
}

func (h *APIHandlers) ListWorkflows(c fiber.Ctx) error {
	return c.JSON(h.workflows.Definitions(tenant(c)))
}

// RegisterWorkflow stores a definition for the caller's tenant.
func (h *APIHandlers) RegisterWorkflow(c fiber.Ctx) error {
	var def models.WorkflowDefinition
	if err := c.Bind().JSON(&def); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	def.TenantID = tenant(c)

	if err := h.workflows.Register(&def); err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(def)
}

func (h *APIHandlers) StartInstance(c fiber.Ctx) error {
	var req StartInstanceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	id, err := h.executor.Start(c.Context(), c.Params("id"), tenant(c), req.Context, req.StartedBy)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(StartInstanceResponse{InstanceID: id})
}

func (h *APIHandlers) ListInstances(c fiber.Ctx) error {
	list, err := h.executor.Instances(c.Context(), persistence.InstanceFilter{
		TenantID:   tenant(c),
		WorkflowID: c.Query("workflow_id"),
		Status:     models.InstanceStatus(c.Query("status")),
	})
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(list)
}

// instance loads an instance, hiding the ones owned by other tenants.
func (h *APIHandlers) instance(c fiber.Ctx) (*models.WorkflowInstance, error) {
	inst, err := h.executor.Instance(c.Context(), c.Params("id"))
	if err != nil {
		return nil, err
	}

	if inst.TenantID != tenant(c) {
		return nil, models.ErrInstanceNotFound
	}

	return inst, nil
}

func (h *APIHandlers) GetInstance(c fiber.Ctx) error {
	inst, err := h.instance(c)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(inst)
}

func (h *APIHandlers) FireTimer(c fiber.Ctx) error {
	inst, err := h.instance(c)
	if err != nil {
		return handleError(c, err)
	}

	if err := h.executor.FireTimer(c.Context(), inst.ID, c.Params("nodeId")); err != nil {
		return handleError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) ListTasks(c fiber.Ctx) error {
	user := c.Query("user")
	if user == "" {
		return badRequest(c, "Query parameter user is required")
	}

	tasks, err := h.executor.ListTasksForUser(c.Context(), user, tenant(c), models.TaskStatus(c.Query("status")))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(tasks)
}

func (h *APIHandlers) task(c fiber.Ctx) (*models.WorkflowTask, error) {
	task, err := h.executor.Task(c.Context(), c.Params("id"))
	if err != nil {
		return nil, err
	}

	if task.TenantID != tenant(c) {
		return nil, models.ErrTaskNotFound
	}

	return task, nil
}

func (h *APIHandlers) AssignTask(c fiber.Ctx) error {
	var req AssignTaskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	task, err := h.task(c)
	if err != nil {
		return handleError(c, err)
	}

	if err := h.executor.AssignTask(c.Context(), task.ID, req.UserID); err != nil {
		return handleError(c, err)
	}

	return h.respondTask(c, task.ID)
}

func (h *APIHandlers) CompleteTask(c fiber.Ctx) error {
	var req CompleteTaskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	task, err := h.task(c)
	if err != nil {
		return handleError(c, err)
	}

	if err := h.executor.CompleteTask(c.Context(), task.ID, req.Result, req.CompletedBy); err != nil {
		return handleError(c, err)
	}

	return h.respondTask(c, task.ID)
}

func (h *APIHandlers) respondTask(c fiber.Ctx, id string) error {
	task, err := h.executor.Task(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) ruleContext(c fiber.Ctx) (*models.RuleContext, error) {
	var req ExecuteRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return nil, err
	}

	if err := h.validator.Struct(req); err != nil {
		return nil, err
	}

	return &models.RuleContext{
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		TenantID:   tenant(c),
		Data:       req.Data,
		ExecutedAt: time.Now(),
	}, nil
}

// ExecuteRule evaluates one rule. Its actions are not applied.
func (h *APIHandlers) ExecuteRule(c fiber.Ctx) error {
	rc, err := h.ruleContext(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.engine.ExecuteRule(c.Context(), c.Params("id"), rc)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) ExecuteRuleSet(c fiber.Ctx) error {
	rc, err := h.ruleContext(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.engine.ExecuteRuleSet(c.Context(), c.Params("id"), rc)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(result)
}

// ExecuteForEntity runs every applicable rule and applies the actions of
// the passing ones to the posted data.
func (h *APIHandlers) ExecuteForEntity(c fiber.Ctx) error {
	var req EntityRulesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if req.Data == nil {
		req.Data = make(map[string]any)
	}

	ctx := tenancy.WithTenant(c.Context(), tenant(c))

	results, err := h.engine.ExecuteForEntity(ctx, c.Params("type"), c.Params("id"), req.Data)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(EntityRulesResponse{Results: results, Data: req.Data})
}

// RuleLogs lists the logged results of the caller's tenant. from and to are
// RFC 3339 timestamps; from defaults to the beginning and to defaults to now.
func (h *APIHandlers) RuleLogs(c fiber.Ctx) error {
	var from time.Time

	to := time.Now()

	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest(c, "Invalid from: "+err.Error())
		}

		from = t
	}

	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest(c, "Invalid to: "+err.Error())
		}

		to = t
	}

	id := tenant(c)
	logs := make([]*models.RuleExecutionResult, 0)

	for _, r := range h.engine.Logs(from, to) {
		if r.TenantID == id {
			logs = append(logs, r)
		}
	}

	return c.JSON(logs)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "lmsflow is healthy"
	httpStatus := http.StatusOK
	storeCheck := "ok"

	if err := h.store.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "lmsflow is unhealthy"
		httpStatus = http.StatusInternalServerError
		storeCheck = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"store": storeCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
