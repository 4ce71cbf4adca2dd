package models

import (
	"maps"
	"time"
)

// InstanceStatus is the lifecycle state of a workflow instance.
type InstanceStatus string

const (
	InstanceRunning   InstanceStatus = "running"
	InstanceWaiting   InstanceStatus = "waiting"
	InstanceCompleted InstanceStatus = "completed"
	InstanceFailed    InstanceStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s InstanceStatus) Terminal() bool {
	return s == InstanceCompleted || s == InstanceFailed
}

// WaitKind tells what a suspended branch is waiting for.
type WaitKind string

const (
	WaitTask  WaitKind = "task"
	WaitTimer WaitKind = "timer"
)

// Wait records a branch suspended on a node until external resumption.
type Wait struct {
	NodeID string     `json:"node_id"`
	Kind   WaitKind   `json:"kind"`
	TaskID string     `json:"task_id,omitempty"`
	Delay  string     `json:"delay,omitempty"`
	DueAt  *time.Time `json:"due_at,omitempty"`
	Since  time.Time  `json:"since"`
}

// WorkflowInstance is one execution of a workflow definition.
type WorkflowInstance struct {
	ID                string           `json:"id"`
	WorkflowID        string           `json:"workflow_id"`
	DefinitionVersion string           `json:"definition_version"`
	TenantID          string           `json:"tenant_id"`
	CurrentNode       string           `json:"current_node"`
	Status            InstanceStatus   `json:"status"`
	Context           map[string]any   `json:"context"`
	StartedBy         string           `json:"started_by"`
	StartedAt         time.Time        `json:"started_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
	Error             string           `json:"error,omitempty"`
	ActiveBranches    int              `json:"active_branches"`
	Waits             map[string]*Wait `json:"waits,omitempty"`
}

// Clone returns a deep copy safe to hand out of the executor.
func (i *WorkflowInstance) Clone() *WorkflowInstance {
	c := *i
	c.Context = CopyMap(i.Context)

	if i.CompletedAt != nil {
		t := *i.CompletedAt
		c.CompletedAt = &t
	}

	if i.Waits != nil {
		c.Waits = make(map[string]*Wait, len(i.Waits))
		for k, w := range i.Waits {
			wc := *w
			c.Waits[k] = &wc
		}
	}

	return &c
}

// CopyMap deep-copies nested maps and slices of a JSON-like map.
func CopyMap(original map[string]any) map[string]any {
	if original == nil {
		return nil
	}

	c := make(map[string]any, len(original))
	for k, v := range original {
		c[k] = copyValue(v)
	}

	return c
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CopyMap(t)
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = copyValue(e)
		}

		return s
	case map[string]string:
		return maps.Clone(t)
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
