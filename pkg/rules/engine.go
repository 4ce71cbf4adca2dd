// Package rules registers business rules and rule sets and evaluates them against entity snapshots.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ycslms/lmsflow/pkg/actions"
	"github.com/ycslms/lmsflow/pkg/condition"
	"github.com/ycslms/lmsflow/pkg/events"
	"github.com/ycslms/lmsflow/pkg/models"
	"github.com/ycslms/lmsflow/pkg/otelhelper"
	"github.com/ycslms/lmsflow/pkg/protocol"
	"github.com/ycslms/lmsflow/pkg/tenancy"
)

const (
	defaultSuccessMessage = "Rule passed"
	defaultFailureMessage = "Rule failed"
	errorMessagePrefix    = "Rule execution error: "
)

// Config bounds the execution log.
type Config struct {
	LogRetention time.Duration
	LogCapacity  int
}

func DefaultConfig() Config {
	return Config{
		LogRetention: 7 * 24 * time.Hour,
		LogCapacity:  10000,
	}
}

// Engine is the rule registry and evaluator. It is safe for concurrent use.
type Engine struct {
	logger    *slog.Logger
	config    Config
	evaluator *condition.Evaluator
	actions   *actions.Executor
	publisher protocol.EventPublisher
	tracer    trace.Tracer
	validate  *validator.Validate
	now       func() time.Time

	mu    sync.RWMutex
	rules map[string]*models.Rule
	sets  map[string]*models.RuleSet

	log *executionLog
}

type Option func(*Engine)

func WithConfig(c Config) Option {
	return func(e *Engine) { e.config = c }
}

func WithEvaluator(ev *condition.Evaluator) Option {
	return func(e *Engine) { e.evaluator = ev }
}

// WithActions sets the executor used by ExecuteForEntity for passing rules.
func WithActions(a *actions.Executor) Option {
	return func(e *Engine) { e.actions = a }
}

func WithPublisher(p protocol.EventPublisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger:    logger,
		config:    DefaultConfig(),
		publisher: protocol.NopPublisher{},
		tracer:    otelhelper.Tracer(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
		rules:     make(map[string]*models.Rule),
		sets:      make(map[string]*models.RuleSet),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.evaluator == nil {
		e.evaluator = condition.NewEvaluator(nil)
	}

	if e.actions == nil {
		e.actions = actions.NewExecutor(logger, actions.WithPublisher(e.publisher))
	}

	e.log = newExecutionLog(e.config.LogRetention, e.config.LogCapacity)

	return e
}

// Register stores a copy of rule, replacing any rule with the same id.
func (e *Engine) Register(rule *models.Rule) error {
	if rule == nil {
		return newRuleError("Register", "", fmt.Errorf("%w: nil rule", models.ErrInvalidRule))
	}

	err := e.validate.Struct(rule)
	if err != nil {
		return newRuleError("Register", rule.ID, fmt.Errorf("%w: %w", models.ErrInvalidRule, err))
	}

	e.mu.Lock()
	e.rules[rule.ID] = rule.Clone()
	e.mu.Unlock()

	e.logger.Debug("Registered rule", "rule_id", rule.ID, "priority", rule.Priority)

	return nil
}

// RegisterSet stores a copy of set, replacing any set with the same id.
// Member ids are not checked; unknown members fail at execution time.
func (e *Engine) RegisterSet(set *models.RuleSet) error {
	if set == nil {
		return newRuleError("RegisterSet", "", fmt.Errorf("%w: nil rule set", models.ErrInvalidRule))
	}

	err := e.validate.Struct(set)
	if err != nil {
		return newRuleError("RegisterSet", set.ID, fmt.Errorf("%w: %w", models.ErrInvalidRule, err))
	}

	c := *set
	c.RuleIDs = append([]string(nil), set.RuleIDs...)

	e.mu.Lock()
	e.sets[set.ID] = &c
	e.mu.Unlock()

	return nil
}

func (e *Engine) Rule(id string) (*models.Rule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rule, ok := e.rules[id]
	if !ok {
		return nil, newRuleError("Rule", id, models.ErrRuleNotFound)
	}

	return rule.Clone(), nil
}

func (e *Engine) RuleSet(id string) (*models.RuleSet, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	set, ok := e.sets[id]
	if !ok {
		return nil, newRuleError("RuleSet", id, models.ErrRuleSetNotFound)
	}

	c := *set
	c.RuleIDs = append([]string(nil), set.RuleIDs...)

	return &c, nil
}

// Rules lists every registered rule by ascending priority, then id.
func (e *Engine) Rules() []*models.Rule {
	e.mu.RLock()
	list := make([]*models.Rule, 0, len(e.rules))

	for _, r := range e.rules {
		list = append(list, r.Clone())
	}
	e.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}

		return list[i].ID < list[j].ID
	})

	return list
}

// ExecuteRule evaluates one rule without applying its actions. Evaluation
// failures are reported in the result, never as an error.
func (e *Engine) ExecuteRule(ctx context.Context, ruleID string, rc *models.RuleContext) (*models.RuleExecutionResult, error) {
	rule, err := e.Rule(ruleID)
	if err != nil {
		return nil, newRuleError("ExecuteRule", ruleID, models.ErrRuleNotFound)
	}

	return e.execute(ctx, rule, rc), nil
}

// ExecuteRuleSet evaluates the members of a rule set in list order.
func (e *Engine) ExecuteRuleSet(ctx context.Context, setID string, rc *models.RuleContext) (*models.RuleSetExecutionResult, error) {
	set, err := e.RuleSet(setID)
	if err != nil {
		return nil, newRuleError("ExecuteRuleSet", setID, models.ErrRuleSetNotFound)
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "rules.execute_rule_set",
		attribute.String(otelhelper.RuleSetIDKey, setID),
		attribute.String(otelhelper.EntityIDKey, rc.EntityID),
	)
	defer span.End()

	e.logger.DebugContext(ctx, "Executing rule set", "rule_set_id", setID, "rules", len(set.RuleIDs))

	result := &models.RuleSetExecutionResult{
		RuleSetID:  setID,
		ExecutedAt: e.now(),
		Passed:     true,
		Results:    make([]*models.RuleExecutionResult, 0, len(set.RuleIDs)),
	}

	for _, ruleID := range set.RuleIDs {
		var r *models.RuleExecutionResult

		rule, err := e.Rule(ruleID)
		if err != nil {
			e.logger.WarnContext(ctx, "Rule not found in rule set", "rule_set_id", setID, "rule_id", ruleID)
			r = e.missingRuleResult(ruleID, rc)
		} else {
			r = e.execute(ctx, rule, rc)
		}

		result.Results = append(result.Results, r)

		if !r.Passed {
			result.Passed = false

			if set.Mode == models.ModeStopOnFirstFailure {
				break
			}
		}
	}

	return result, nil
}

// ExecuteForEntity runs every active rule applicable to entityType in
// ascending priority. Actions of a passing rule are applied to data before
// the next rule is evaluated. The tenant comes from ctx.
func (e *Engine) ExecuteForEntity(ctx context.Context, entityType, entityID string, data map[string]any) ([]*models.RuleExecutionResult, error) {
	if data == nil {
		data = make(map[string]any)
	}

	rc := &models.RuleContext{
		EntityType: entityType,
		EntityID:   entityID,
		TenantID:   tenancy.FromContext(ctx),
		Data:       data,
		ExecutedAt: e.now(),
	}

	applicable := make([]*models.Rule, 0)

	for _, rule := range e.Rules() {
		if rule.Active && rule.AppliesTo(entityType) {
			applicable = append(applicable, rule)
		}
	}

	sort.SliceStable(applicable, func(i, j int) bool {
		return applicable[i].Priority < applicable[j].Priority
	})

	results := make([]*models.RuleExecutionResult, 0, len(applicable))

	for _, rule := range applicable {
		r := e.execute(ctx, rule, rc)
		results = append(results, r)

		if !r.Passed {
			continue
		}

		err := e.actions.Apply(ctx, rule, rc)
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to apply rule actions",
				"rule_id", rule.ID,
				"entity_id", entityID,
				"error", err,
			)
		}
	}

	return results, nil
}

// Logs returns logged results with from <= ExecutedAt < to, oldest first.
func (e *Engine) Logs(from, to time.Time) []*models.RuleExecutionResult {
	return e.log.between(from, to)
}

func (e *Engine) execute(ctx context.Context, rule *models.Rule, rc *models.RuleContext) *models.RuleExecutionResult {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "rules.execute_rule",
		attribute.String(otelhelper.RuleIDKey, rule.ID),
		attribute.String(otelhelper.EntityTypeKey, rc.EntityType),
		attribute.String(otelhelper.EntityIDKey, rc.EntityID),
		attribute.String(otelhelper.TenantIDKey, rc.TenantID),
	)
	defer span.End()

	started := e.now()
	passed, err := e.evaluator.Evaluate(rule.Condition, rc)

	result := &models.RuleExecutionResult{
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		EntityType: rc.EntityType,
		EntityID:   rc.EntityID,
		TenantID:   rc.TenantID,
		Passed:     passed,
		ExecutedAt: e.now(),
		Severity:   rule.Severity,
	}
	result.Duration = result.ExecutedAt.Sub(started)

	switch {
	case err != nil:
		e.logger.ErrorContext(ctx, "Rule execution failed", "rule_id", rule.ID, "entity_id", rc.EntityID, "error", err)
		otelhelper.SetError(span, err)

		result.Passed = false
		result.Severity = models.SeverityError
		result.Error = err.Error()
		result.Message = errorMessagePrefix + err.Error()
	case passed:
		result.Message = orDefault(rule.SuccessMessage, defaultSuccessMessage)
	default:
		result.Message = orDefault(rule.FailureMessage, defaultFailureMessage)
	}

	e.record(ctx, result)

	return result
}

func (e *Engine) missingRuleResult(ruleID string, rc *models.RuleContext) *models.RuleExecutionResult {
	now := e.now()
	msg := models.ErrRuleNotFound.Error()

	result := &models.RuleExecutionResult{
		RuleID:     ruleID,
		EntityType: rc.EntityType,
		EntityID:   rc.EntityID,
		TenantID:   rc.TenantID,
		ExecutedAt: now,
		Severity:   models.SeverityError,
		Error:      msg,
		Message:    errorMessagePrefix + msg,
	}

	e.log.append(result, now)

	return result
}

func (e *Engine) record(ctx context.Context, result *models.RuleExecutionResult) {
	e.log.append(result, e.now())

	e.logger.DebugContext(ctx, "Rule executed",
		"rule_id", result.RuleID,
		"entity_type", result.EntityType,
		"entity_id", result.EntityID,
		"passed", result.Passed,
		"duration", result.Duration,
	)

	err := e.publisher.Publish(ctx, result.EntityID, &events.RuleExecuted{
		BaseEvent:  events.NewBaseEvent(events.RuleExecutedEvent, result.TenantID),
		RuleID:     result.RuleID,
		EntityType: result.EntityType,
		EntityID:   result.EntityID,
		Passed:     result.Passed,
		Severity:   string(result.Severity),
		Message:    result.Message,
	})
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to publish rule result", "rule_id", result.RuleID, "error", err)
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}

	return s
}
