package models

import (
	"slices"
	"time"
)

// TaskStatus is the lifecycle state of a human task.
type TaskStatus string

const (
	TaskCreated   TaskStatus = "created"
	TaskAssigned  TaskStatus = "assigned"
	TaskCompleted TaskStatus = "completed"
	TaskCancelled TaskStatus = "cancelled"
)

// Terminal reports whether the task can no longer change.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskCancelled
}

// WorkflowTask is a unit of human work created by a user-task node.
type WorkflowTask struct {
	ID             string         `json:"id"`
	InstanceID     string         `json:"instance_id"`
	TenantID       string         `json:"tenant_id"`
	NodeID         string         `json:"node_id"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	Assignee       string         `json:"assignee,omitempty"`
	CandidateUsers []string       `json:"candidate_users,omitempty"`
	Status         TaskStatus     `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	DueAt          *time.Time     `json:"due_at,omitempty"`
	CompletedBy    string         `json:"completed_by,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	Result         map[string]any `json:"result,omitempty"`
}

// VisibleTo reports whether the user is the assignee or in the candidate pool.
func (t *WorkflowTask) VisibleTo(userID string) bool {
	return t.Assignee == userID || slices.Contains(t.CandidateUsers, userID)
}

// Clone returns a deep copy of the task.
func (t *WorkflowTask) Clone() *WorkflowTask {
	c := *t
	c.CandidateUsers = append([]string(nil), t.CandidateUsers...)
	c.Result = CopyMap(t.Result)

	if t.DueAt != nil {
		d := *t.DueAt
		c.DueAt = &d
	}

	if t.CompletedAt != nil {
		d := *t.CompletedAt
		c.CompletedAt = &d
	}

	return &c
}
