// Package redis provides Redis persistence for workflow instances and tasks.
//
// Records are stored as JSON strings. Sorted sets scored by creation time index
// them per tenant and per instance so listings come back newest first.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/ycslms/lmsflow/pkg/models"
	"github.com/ycslms/lmsflow/pkg/persistence"
)

const defaultPrefix = "lmsflow"

// Persistence implements persistence.Persistence on a Redis client.
type Persistence struct {
	client redis.UniversalClient
	logger *slog.Logger
	prefix string
	owned  bool
}

// NewPersistence connects to the Redis server at url (redis://...).
func NewPersistence(ctx context.Context, logger *slog.Logger, url string) (*Persistence, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	p := NewWithClient(client, logger, defaultPrefix)
	p.owned = true

	return p, nil
}

// NewWithClient wraps an existing client. Keys are namespaced under prefix.
// The client is not closed by Close.
func NewWithClient(client redis.UniversalClient, logger *slog.Logger, prefix string) *Persistence {
	if prefix == "" {
		prefix = defaultPrefix
	}

	return &Persistence{client: client, logger: logger, prefix: prefix}
}

func (p *Persistence) instanceKey(id string) string { return p.prefix + ":instance:" + id }
func (p *Persistence) taskKey(id string) string     { return p.prefix + ":task:" + id }

func (p *Persistence) instanceIndex(tenantID string) string {
	if tenantID == "" {
		return p.prefix + ":instances"
	}

	return p.prefix + ":instances:tenant:" + tenantID
}

func (p *Persistence) taskIndex(tenantID string) string {
	if tenantID == "" {
		return p.prefix + ":tasks"
	}

	return p.prefix + ":tasks:tenant:" + tenantID
}

func (p *Persistence) instanceTaskIndex(instanceID string) string {
	return p.prefix + ":tasks:instance:" + instanceID
}

func (p *Persistence) SaveInstance(ctx context.Context, instance *models.WorkflowInstance) error {
	data, err := json.Marshal(instance)
	if err != nil {
		return persistence.NewInstanceError("SaveInstance", instance.ID, err)
	}

	score := float64(instance.StartedAt.UnixNano())
	member := redis.Z{Score: score, Member: instance.ID}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.instanceKey(instance.ID), data, 0)
		pipe.ZAdd(ctx, p.instanceIndex(""), member)
		pipe.ZAdd(ctx, p.instanceIndex(instance.TenantID), member)

		return nil
	})
	if err != nil {
		return persistence.NewInstanceError("SaveInstance", instance.ID, err)
	}

	return nil
}

func (p *Persistence) InstanceByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	data, err := p.client.Get(ctx, p.instanceKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.NewInstanceError("InstanceByID", id, models.ErrInstanceNotFound)
	}

	if err != nil {
		return nil, persistence.NewInstanceError("InstanceByID", id, err)
	}

	var inst models.WorkflowInstance
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, persistence.NewInstanceError("InstanceByID", id, err)
	}

	return &inst, nil
}

func (p *Persistence) Instances(ctx context.Context, filter persistence.InstanceFilter) ([]*models.WorkflowInstance, error) {
	values, err := p.load(ctx, p.instanceIndex(filter.TenantID), p.instanceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load instances: %w", err)
	}

	list := make([]*models.WorkflowInstance, 0, len(values))

	for _, raw := range values {
		var inst models.WorkflowInstance
		if err := json.Unmarshal([]byte(raw), &inst); err != nil {
			p.logger.WarnContext(ctx, "Skipping unreadable instance", "error", err)

			continue
		}

		if filter.Match(&inst) {
			list = append(list, &inst)
		}
	}

	persistence.SortInstances(list)

	return list, nil
}

func (p *Persistence) SaveTask(ctx context.Context, task *models.WorkflowTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return persistence.NewTaskError("SaveTask", task.ID, err)
	}

	member := redis.Z{Score: float64(task.CreatedAt.UnixNano()), Member: task.ID}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.taskKey(task.ID), data, 0)
		pipe.ZAdd(ctx, p.taskIndex(""), member)
		pipe.ZAdd(ctx, p.taskIndex(task.TenantID), member)
		pipe.ZAdd(ctx, p.instanceTaskIndex(task.InstanceID), member)

		return nil
	})
	if err != nil {
		return persistence.NewTaskError("SaveTask", task.ID, err)
	}

	return nil
}

func (p *Persistence) TaskByID(ctx context.Context, id string) (*models.WorkflowTask, error) {
	data, err := p.client.Get(ctx, p.taskKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.NewTaskError("TaskByID", id, models.ErrTaskNotFound)
	}

	if err != nil {
		return nil, persistence.NewTaskError("TaskByID", id, err)
	}

	var task models.WorkflowTask
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, persistence.NewTaskError("TaskByID", id, err)
	}

	return &task, nil
}

func (p *Persistence) Tasks(ctx context.Context, filter persistence.TaskFilter) ([]*models.WorkflowTask, error) {
	index := p.taskIndex(filter.TenantID)
	if filter.InstanceID != "" {
		index = p.instanceTaskIndex(filter.InstanceID)
	}

	values, err := p.load(ctx, index, p.taskKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	list := make([]*models.WorkflowTask, 0, len(values))

	for _, raw := range values {
		var task models.WorkflowTask
		if err := json.Unmarshal([]byte(raw), &task); err != nil {
			p.logger.WarnContext(ctx, "Skipping unreadable task", "error", err)

			continue
		}

		if filter.Match(&task) {
			list = append(list, &task)
		}
	}

	persistence.SortTasks(list)

	return list, nil
}

// load reads every record referenced by the sorted set index.
func (p *Persistence) load(ctx context.Context, index string, key func(string) string) ([]string, error) {
	ids, err := p.client.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}

	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(values))

	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}

	return out, nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	if !p.owned {
		return nil
	}

	if err := p.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}
