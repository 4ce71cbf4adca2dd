package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ycslms/lmsflow/pkg/models"
	"github.com/ycslms/lmsflow/pkg/persistence"
)

// TaskRepository handles workflow task database operations.
type TaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *sql.DB, logger *slog.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

func (r *TaskRepository) Save(ctx context.Context, task *models.WorkflowTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return persistence.NewTaskError("SaveTask", task.ID, fmt.Errorf("failed to marshal task: %w", err))
	}

	candidates := task.CandidateUsers
	if candidates == nil {
		candidates = []string{}
	}

	candidatesJSON, err := json.Marshal(candidates)
	if err != nil {
		return persistence.NewTaskError("SaveTask", task.ID, fmt.Errorf("failed to marshal candidate users: %w", err))
	}

	query := `
		INSERT INTO workflow_tasks (id, instance_id, tenant_id, assignee, candidate_users, status, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			assignee = EXCLUDED.assignee,
			candidate_users = EXCLUDED.candidate_users,
			status = EXCLUDED.status,
			data = EXCLUDED.data
	`

	_, err = r.db.ExecContext(ctx, query,
		task.ID,
		task.InstanceID,
		task.TenantID,
		task.Assignee,
		candidatesJSON,
		task.Status,
		data,
		task.CreatedAt,
	)
	if err != nil {
		return persistence.NewTaskError("SaveTask", task.ID, err)
	}

	return nil
}

func (r *TaskRepository) ByID(ctx context.Context, id string) (*models.WorkflowTask, error) {
	var data []byte

	err := r.db.QueryRowContext(ctx, `SELECT data FROM workflow_tasks WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewTaskError("TaskByID", id, models.ErrTaskNotFound)
	}

	if err != nil {
		return nil, persistence.NewTaskError("TaskByID", id, err)
	}

	var task models.WorkflowTask
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, persistence.NewTaskError("TaskByID", id, fmt.Errorf("failed to unmarshal task: %w", err))
	}

	return &task, nil
}

// List returns tasks matching filter, newest first. A user matches as assignee or candidate.
func (r *TaskRepository) List(ctx context.Context, filter persistence.TaskFilter) ([]*models.WorkflowTask, error) {
	var (
		where []string
		args  []any
	)

	next := func(value any) string {
		args = append(args, value)

		return "$" + strconv.Itoa(len(args))
	}

	if filter.TenantID != "" {
		where = append(where, "tenant_id = "+next(filter.TenantID))
	}

	if filter.InstanceID != "" {
		where = append(where, "instance_id = "+next(filter.InstanceID))
	}

	if filter.Status != "" {
		where = append(where, "status = "+next(string(filter.Status)))
	}

	if filter.UserID != "" {
		placeholder := next(filter.UserID) + "::text"
		where = append(where, "(assignee = "+placeholder+" OR candidate_users ? "+placeholder+")")
	}

	query := `SELECT data FROM workflow_tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	list := make([]*models.WorkflowTask, 0)

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		var task models.WorkflowTask
		if err := json.Unmarshal(data, &task); err != nil {
			r.logger.WarnContext(ctx, "Skipping unreadable task row", "error", err)

			continue
		}

		list = append(list, &task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return list, nil
}

func (p *Persistence) SaveTask(ctx context.Context, task *models.WorkflowTask) error {
	return p.tasks.Save(ctx, task)
}

func (p *Persistence) TaskByID(ctx context.Context, id string) (*models.WorkflowTask, error) {
	return p.tasks.ByID(ctx, id)
}

func (p *Persistence) Tasks(ctx context.Context, filter persistence.TaskFilter) ([]*models.WorkflowTask, error) {
	return p.tasks.List(ctx, filter)
}
