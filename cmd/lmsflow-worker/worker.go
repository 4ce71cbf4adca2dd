package main

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ycslms/lmsflow/pkg/eventbus"
	"github.com/ycslms/lmsflow/pkg/events"
	"github.com/ycslms/lmsflow/pkg/models"
	"github.com/ycslms/lmsflow/pkg/otelhelper"
	"github.com/ycslms/lmsflow/pkg/tenancy"
	"github.com/ycslms/lmsflow/pkg/workflow"
)

// Worker executes workflow commands received from the event bus and fires due timers.
type Worker struct {
	logger   *slog.Logger
	executor *workflow.Executor
	eventBus eventbus.EventBus
	poller   *workflow.TimerPoller
}

func NewWorker(
	logger *slog.Logger,
	executor *workflow.Executor,
	eventBus eventbus.EventBus,
	poller *workflow.TimerPoller,
) *Worker {
	return &Worker{
		logger:   logger,
		executor: executor,
		eventBus: eventBus,
		poller:   poller,
	}
}

// Start subscribes to the command events and blocks until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker subscriptions")

	if err := w.eventBus.Handle(events.StartRequestedEvent, w.handleStartRequested); err != nil {
		return fmt.Errorf("failed to register start handler: %w", err)
	}

	if err := w.eventBus.Handle(events.TaskCompleteRequestedEvent, w.handleTaskCompleteRequested); err != nil {
		return fmt.Errorf("failed to register task completion handler: %w", err)
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	err := w.poller.Run(ctx)

	w.logger.InfoContext(ctx, "Shutting down worker")
	w.executor.Wait()

	return err
}

// rejected reports errors that redelivery cannot fix.
func rejected(err error) bool {
	return models.IsNotFound(err) || models.IsInvalidState(err) || models.IsValidation(err)
}

func (w *Worker) handleStartRequested(ctx context.Context, event events.Event) error {
	req, ok := event.(*events.StartRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for StartRequested", "type", event.GetType())

		return nil
	}

	tenantID := tenancy.OrDefault(req.TenantID)

	ctx, span := otelhelper.StartSpan(ctx, otelhelper.Tracer(), "worker.start_requested",
		attribute.String(otelhelper.WorkflowIDKey, req.WorkflowID),
		attribute.String(otelhelper.TenantIDKey, tenantID),
	)
	defer span.End()

	logger := w.logger.With("workflow_id", req.WorkflowID, "tenant_id", tenantID, "event_id", req.ID)
	logger.InfoContext(ctx, "Processing start request")

	id, err := w.executor.Start(ctx, req.WorkflowID, tenantID, req.Context, req.StartedBy)
	if err != nil {
		otelhelper.SetError(span, err)

		if rejected(err) {
			logger.WarnContext(ctx, "Start request rejected", "error", err)

			return nil
		}

		logger.ErrorContext(ctx, "Failed to start workflow", "error", err)

		return err
	}

	otelhelper.SetOK(span)
	logger.InfoContext(ctx, "Workflow started", "instance_id", id)

	return nil
}

func (w *Worker) handleTaskCompleteRequested(ctx context.Context, event events.Event) error {
	req, ok := event.(*events.TaskCompleteRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for TaskCompleteRequested", "type", event.GetType())

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, otelhelper.Tracer(), "worker.task_complete_requested",
		attribute.String(otelhelper.TaskIDKey, req.TaskID),
	)
	defer span.End()

	logger := w.logger.With("task_id", req.TaskID, "completed_by", req.CompletedBy, "event_id", req.ID)

	task, err := w.executor.Task(ctx, req.TaskID)
	if err == nil && task.TenantID != tenancy.OrDefault(req.TenantID) {
		err = models.ErrTaskNotFound
	}

	if err == nil {
		err = w.executor.CompleteTask(ctx, req.TaskID, req.Result, req.CompletedBy)
	}

	if err != nil {
		otelhelper.SetError(span, err)

		if rejected(err) {
			logger.WarnContext(ctx, "Task completion rejected", "error", err)

			return nil
		}

		logger.ErrorContext(ctx, "Failed to complete task", "error", err)

		return err
	}

	otelhelper.SetOK(span)
	logger.InfoContext(ctx, "Task completed", "instance_id", task.InstanceID)

	return nil
}
