package models

import "time"

// DefaultTenant is the reserved tenant used when no tenant is given and as the
// fallback owner of workflow definitions.
const DefaultTenant = "default"

// Entity types the built-in rules apply to.
const (
	EntityOrder     = "ORDER"
	EntityUser      = "USER"
	EntityInventory = "INVENTORY"
)

// Severity grades the importance of a rule outcome.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
)

// ConditionType selects the variant of a Condition.
type ConditionType string

const (
	ConditionSimple    ConditionType = "simple"
	ConditionComposite ConditionType = "composite"
	ConditionPattern   ConditionType = "pattern"
)

// Operator is the comparison used by a simple condition.
type Operator string

const (
	OpEquals             Operator = "EQUALS"
	OpNotEquals          Operator = "NOT_EQUALS"
	OpGreaterThan        Operator = "GREATER_THAN"
	OpGreaterThanOrEqual Operator = "GREATER_THAN_OR_EQUAL"
	OpLessThan           Operator = "LESS_THAN"
	OpLessThanOrEqual    Operator = "LESS_THAN_OR_EQUAL"
	OpContains           Operator = "CONTAINS"
	OpStartsWith         Operator = "STARTS_WITH"
	OpEndsWith           Operator = "ENDS_WITH"
)

// Logical combines the sub-conditions of a composite condition.
type Logical string

const (
	LogicalAnd Logical = "AND"
	LogicalOr  Logical = "OR"
)

// Predicate names one of the recognized business predicates a pattern condition can test.
type Predicate string

const (
	PredicateVolumeExceedsThreshold Predicate = "volume_exceeds_threshold"
	PredicateValueExceedsThreshold  Predicate = "value_exceeds_threshold"
	PredicateMemberCodeMissing      Predicate = "member_code_missing"
	PredicateValidationSucceeded    Predicate = "validation_succeeded"
	PredicateAutoCheckApproved      Predicate = "auto_check_approved"
)

// Condition is a tagged variant: Type decides which of the other fields are meaningful.
//
//   - simple:    Field, Operator, Value
//   - composite: Logical, Conditions
//   - pattern:   Predicate, Value (optional threshold override)
type Condition struct {
	Type       ConditionType `json:"type"                 validate:"required,oneof=simple composite pattern"`
	Field      string        `json:"field,omitempty"`
	Operator   Operator      `json:"operator,omitempty"`
	Value      any           `json:"value,omitempty"`
	Logical    Logical       `json:"logical,omitempty"`
	Conditions []Condition   `json:"conditions,omitempty"`
	Predicate  Predicate     `json:"predicate,omitempty"`
}

// Simple builds a field comparison condition.
func Simple(field string, op Operator, value any) Condition {
	return Condition{Type: ConditionSimple, Field: field, Operator: op, Value: value}
}

// All builds a composite AND condition.
func All(conditions ...Condition) Condition {
	return Condition{Type: ConditionComposite, Logical: LogicalAnd, Conditions: conditions}
}

// Any builds a composite OR condition.
func Any(conditions ...Condition) Condition {
	return Condition{Type: ConditionComposite, Logical: LogicalOr, Conditions: conditions}
}

// Pattern builds a named-predicate condition.
func Pattern(predicate Predicate) Condition {
	return Condition{Type: ConditionPattern, Predicate: predicate}
}

// ActionType selects what an Action does.
type ActionType string

const (
	ActionUpdateField      ActionType = "update_field"
	ActionSendNotification ActionType = "send_notification"
	ActionLogEvent         ActionType = "log_event"
	ActionExecuteService   ActionType = "execute_service"
	ActionSetFlag          ActionType = "set_flag"
)

// Action is a side effect applied when a rule passes.
type Action struct {
	Type       ActionType     `json:"type"       validate:"required,oneof=update_field send_notification log_event execute_service set_flag"`
	Parameters map[string]any `json:"parameters"`
}

// Rule is a named condition with actions applied to matching entities.
type Rule struct {
	ID                 string    `json:"id"                  validate:"required"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	ApplicableEntities []string  `json:"applicable_entities" validate:"required,min=1"`
	Priority           int       `json:"priority"`
	Active             bool      `json:"active"`
	Condition          Condition `json:"condition"           validate:"required"`
	Actions            []Action  `json:"actions,omitempty"   validate:"dive"`
	Severity           Severity  `json:"severity"            validate:"required"`
	SuccessMessage     string    `json:"success_message,omitempty"`
	FailureMessage     string    `json:"failure_message,omitempty"`
}

// AppliesTo reports whether the rule targets the entity type.
func (r *Rule) AppliesTo(entityType string) bool {
	for _, e := range r.ApplicableEntities {
		if e == entityType {
			return true
		}
	}

	return false
}

// Clone returns a deep copy of the rule.
func (r *Rule) Clone() *Rule {
	c := *r
	c.ApplicableEntities = append([]string(nil), r.ApplicableEntities...)
	c.Condition = r.Condition.clone()

	if r.Actions != nil {
		c.Actions = make([]Action, len(r.Actions))
		for i, a := range r.Actions {
			c.Actions[i] = Action{Type: a.Type, Parameters: CopyMap(a.Parameters)}
		}
	}

	return &c
}

func (c Condition) clone() Condition {
	if c.Conditions == nil {
		return c
	}

	sub := make([]Condition, len(c.Conditions))
	for i, s := range c.Conditions {
		sub[i] = s.clone()
	}

	c.Conditions = sub

	return c
}

// ExecutionMode controls how a rule set reacts to failing members.
type ExecutionMode string

const (
	ModeRunAll             ExecutionMode = "run_all"
	ModeStopOnFirstFailure ExecutionMode = "stop_on_first_failure"
)

// RuleSet is an ordered group of rules sharing an execution mode.
type RuleSet struct {
	ID          string        `json:"id"                    validate:"required"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	RuleIDs     []string      `json:"rule_ids"              validate:"required,min=1"`
	Mode        ExecutionMode `json:"mode"                  validate:"required,oneof=run_all stop_on_first_failure"`
	Active      bool          `json:"active"`
}

// RuleContext is the entity snapshot rules are evaluated against.
// Data is mutated in place by rule actions.
type RuleContext struct {
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	TenantID   string         `json:"tenant_id"`
	Data       map[string]any `json:"data"`
	ExecutedAt time.Time      `json:"executed_at"`
}

// RuleExecutionResult is the immutable outcome of a single rule evaluation.
type RuleExecutionResult struct {
	RuleID     string        `json:"rule_id"`
	RuleName   string        `json:"rule_name"`
	EntityType string        `json:"entity_type"`
	EntityID   string        `json:"entity_id"`
	TenantID   string        `json:"tenant_id"`
	Passed     bool          `json:"passed"`
	Duration   time.Duration `json:"duration"`
	ExecutedAt time.Time     `json:"executed_at"`
	Message    string        `json:"message"`
	Error      string        `json:"error,omitempty"`
	Severity   Severity      `json:"severity"`
}

// RuleSetExecutionResult aggregates the results of a rule set run.
type RuleSetExecutionResult struct {
	RuleSetID  string                 `json:"rule_set_id"`
	ExecutedAt time.Time              `json:"executed_at"`
	Passed     bool                   `json:"passed"`
	Results    []*RuleExecutionResult `json:"results"`
}
