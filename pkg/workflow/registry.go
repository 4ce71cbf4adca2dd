// Package workflow registers workflow definitions and executes their instances.
package workflow

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/ycslms/lmsflow/pkg/models"
)

type definitionKey struct {
	tenantID string
	id       string
}

// Registry holds workflow definitions keyed by tenant and id.
type Registry struct {
	logger   *slog.Logger
	validate *validator.Validate

	mu          sync.RWMutex
	definitions map[definitionKey]*models.WorkflowDefinition
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:      logger,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		definitions: make(map[definitionKey]*models.WorkflowDefinition),
	}
}

// Register validates def and stores a copy, replacing an earlier registration
// with the same tenant and id.
func (r *Registry) Register(def *models.WorkflowDefinition) error {
	if def == nil {
		return fmt.Errorf("%w: nil definition", models.ErrInvalidDefinition)
	}

	if err := r.validate.Struct(def); err != nil {
		return fmt.Errorf("%w: workflow %s: %w", models.ErrInvalidDefinition, def.ID, err)
	}

	if err := checkGraph(def); err != nil {
		return fmt.Errorf("%w: workflow %s: %w", models.ErrInvalidDefinition, def.ID, err)
	}

	r.mu.Lock()
	r.definitions[definitionKey{tenantID: def.TenantID, id: def.ID}] = def.Clone()
	r.mu.Unlock()

	r.logger.Debug("Registered workflow", "workflow_id", def.ID, "tenant_id", def.TenantID, "version", def.Version)

	return nil
}

// Resolve returns a copy of the definition visible to tenantID, falling back
// to the default tenant.
func (r *Registry) Resolve(id, tenantID string) (*models.WorkflowDefinition, error) {
	def, err := r.resolve(id, tenantID)
	if err != nil {
		return nil, err
	}

	return def.Clone(), nil
}

// resolve returns the stored definition. Callers must not modify it.
func (r *Registry) resolve(id, tenantID string) (*models.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if def, ok := r.definitions[definitionKey{tenantID: tenantID, id: id}]; ok {
		return def, nil
	}

	if def, ok := r.definitions[definitionKey{tenantID: models.DefaultTenant, id: id}]; ok {
		return def, nil
	}

	return nil, fmt.Errorf("%w: %s", models.ErrWorkflowNotFound, id)
}

// Definitions lists the definitions visible to tenantID sorted by id. A tenant
// definition shadows the default definition with the same id.
func (r *Registry) Definitions(tenantID string) []*models.WorkflowDefinition {
	r.mu.RLock()

	visible := make(map[string]*models.WorkflowDefinition)

	for key, def := range r.definitions {
		switch key.tenantID {
		case tenantID:
			visible[key.id] = def
		case models.DefaultTenant:
			if _, ok := visible[key.id]; !ok {
				visible[key.id] = def
			}
		}
	}
	r.mu.RUnlock()

	list := make([]*models.WorkflowDefinition, 0, len(visible))
	for _, def := range visible {
		list = append(list, def.Clone())
	}

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	return list
}

func checkGraph(def *models.WorkflowDefinition) error {
	if _, ok := def.Nodes[def.StartNode]; !ok {
		return fmt.Errorf("start node %q is not defined", def.StartNode)
	}

	for id, node := range def.Nodes {
		if node == nil {
			return fmt.Errorf("node %q is nil", id)
		}

		if node.ID != id {
			return fmt.Errorf("node key %q does not match node id %q", id, node.ID)
		}

		for _, edge := range node.Outgoing {
			if _, ok := def.Nodes[edge.Target]; !ok {
				return fmt.Errorf("node %q points to undefined node %q", id, edge.Target)
			}
		}

		if err := checkNode(node); err != nil {
			return fmt.Errorf("node %q: %w", id, err)
		}
	}

	return nil
}

func checkNode(node *models.WorkflowNode) error {
	switch node.Type {
	case models.NodeTypeDecision:
		if node.Discriminant != "" {
			if len(node.Outgoing) == 0 {
				return errors.New("discriminant decision needs at least one edge")
			}

			return nil
		}

		if node.Condition == nil {
			return errors.New("decision needs a condition or a discriminant")
		}

		if len(node.Outgoing) != 2 {
			return fmt.Errorf("boolean decision needs exactly 2 edges, got %d", len(node.Outgoing))
		}
	case models.NodeTypeServiceTask:
		if node.Component == "" || node.Operation == "" {
			return errors.New("service task needs a component and an operation")
		}
	case models.NodeTypeTimer:
		if _, err := parseDelay(node.Delay); err != nil {
			return err
		}
	case models.NodeTypeUserTask:
		if node.ResultSchema != nil {
			if _, err := compileSchema(node.ResultSchema); err != nil {
				return err
			}
		}
	}

	return nil
}
