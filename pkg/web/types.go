package web

import "github.com/ycslms/lmsflow/pkg/models"

// TenantHeader selects the tenant of a request. Absent means the default tenant.
const TenantHeader = "X-Tenant-ID"

type StartInstanceRequest struct {
	Context   map[string]any `json:"context"`
	StartedBy string         `json:"started_by" validate:"required"`
}

type StartInstanceResponse struct {
	InstanceID string `json:"instance_id"`
}

type AssignTaskRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type CompleteTaskRequest struct {
	Result      map[string]any `json:"result"`
	CompletedBy string         `json:"completed_by" validate:"required"`
}

// ExecuteRuleRequest carries the entity snapshot a rule or rule set is evaluated against.
type ExecuteRuleRequest struct {
	EntityType string         `json:"entity_type" validate:"required"`
	EntityID   string         `json:"entity_id"   validate:"required"`
	Data       map[string]any `json:"data"`
}

type EntityRulesRequest struct {
	Data map[string]any `json:"data"`
}

// EntityRulesResponse returns the results together with the data the actions changed.
type EntityRulesResponse struct {
	Results []*models.RuleExecutionResult `json:"results"`
	Data    map[string]any                `json:"data"`
}
