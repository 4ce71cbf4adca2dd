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

// InstanceRepository handles workflow instance database operations.
type InstanceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewInstanceRepository creates a new instance repository.
func NewInstanceRepository(db *sql.DB, logger *slog.Logger) *InstanceRepository {
	return &InstanceRepository{db: db, logger: logger}
}

// Save upserts an instance. The full record lives in data; the other columns are for filtering.
func (r *InstanceRepository) Save(ctx context.Context, inst *models.WorkflowInstance) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return persistence.NewInstanceError("SaveInstance", inst.ID, fmt.Errorf("failed to marshal instance: %w", err))
	}

	query := `
		INSERT INTO workflow_instances (id, workflow_id, tenant_id, status, data, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id,
			tenant_id = EXCLUDED.tenant_id,
			status = EXCLUDED.status,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		inst.ID,
		inst.WorkflowID,
		inst.TenantID,
		inst.Status,
		data,
		inst.StartedAt,
		inst.UpdatedAt,
	)
	if err != nil {
		return persistence.NewInstanceError("SaveInstance", inst.ID, err)
	}

	return nil
}

// ByID retrieves an instance by id.
func (r *InstanceRepository) ByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	var data []byte

	err := r.db.QueryRowContext(ctx, `SELECT data FROM workflow_instances WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewInstanceError("InstanceByID", id, models.ErrInstanceNotFound)
	}

	if err != nil {
		return nil, persistence.NewInstanceError("InstanceByID", id, err)
	}

	var inst models.WorkflowInstance
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, persistence.NewInstanceError("InstanceByID", id, fmt.Errorf("failed to unmarshal instance: %w", err))
	}

	return &inst, nil
}

// List returns instances matching filter, newest first.
func (r *InstanceRepository) List(ctx context.Context, filter persistence.InstanceFilter) ([]*models.WorkflowInstance, error) {
	var (
		where []string
		args  []any
	)

	add := func(column, value string) {
		args = append(args, value)
		where = append(where, column+" = $"+strconv.Itoa(len(args)))
	}

	if filter.TenantID != "" {
		add("tenant_id", filter.TenantID)
	}

	if filter.WorkflowID != "" {
		add("workflow_id", filter.WorkflowID)
	}

	if filter.Status != "" {
		add("status", string(filter.Status))
	}

	query := `SELECT data FROM workflow_instances`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query += " ORDER BY started_at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer rows.Close()

	list := make([]*models.WorkflowInstance, 0)

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}

		var inst models.WorkflowInstance
		if err := json.Unmarshal(data, &inst); err != nil {
			r.logger.WarnContext(ctx, "Skipping unreadable instance row", "error", err)

			continue
		}

		list = append(list, &inst)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate instances: %w", err)
	}

	return list, nil
}

func (p *Persistence) SaveInstance(ctx context.Context, instance *models.WorkflowInstance) error {
	return p.instances.Save(ctx, instance)
}

func (p *Persistence) InstanceByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	return p.instances.ByID(ctx, id)
}

func (p *Persistence) Instances(ctx context.Context, filter persistence.InstanceFilter) ([]*models.WorkflowInstance, error) {
	return p.instances.List(ctx, filter)
}
