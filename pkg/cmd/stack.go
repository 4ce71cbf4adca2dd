// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ycslms/lmsflow/pkg/actions"
	"github.com/ycslms/lmsflow/pkg/catalog"
	"github.com/ycslms/lmsflow/pkg/eventbus"
	"github.com/ycslms/lmsflow/pkg/log"
	"github.com/ycslms/lmsflow/pkg/notify"
	"github.com/ycslms/lmsflow/pkg/otelhelper"
	"github.com/ycslms/lmsflow/pkg/persistence"
	"github.com/ycslms/lmsflow/pkg/registry"
	"github.com/ycslms/lmsflow/pkg/rules"
	"github.com/ycslms/lmsflow/pkg/workflow"
)

// Stack is the wired rule engine and workflow executor shared by the processes.
type Stack struct {
	Operations *registry.Registry
	Workflows  *workflow.Registry
	Engine     *rules.Engine
	Executor   *workflow.Executor
	Store      persistence.Persistence
	EventBus   eventbus.EventBus

	shutdown otelhelper.ShutdownFunc
}

const tracerShutdownTimeout = 5 * time.Second

// NewStack wires the engine and executor over store and bus, loads operation
// plugins from pluginsPath and installs the built-in catalog.
func NewStack(ctx context.Context, store persistence.Persistence, bus eventbus.EventBus, pluginsPath string) (*Stack, error) {
	ops := registry.NewRegistry(log.WithModule("registry"))
	if err := ops.LoadPlugins(ctx, pluginsPath); err != nil {
		return nil, fmt.Errorf("failed to load plugins: %w", err)
	}

	notifier := notify.Multi{
		notify.NewLogNotifier(log.WithModule("notify")),
		notify.NewEventNotifier(bus),
	}

	engineLogger := log.WithModule("rules")
	engine := rules.NewEngine(engineLogger,
		rules.WithActions(actions.NewExecutor(engineLogger,
			actions.WithNotifier(notifier),
			actions.WithInvoker(ops),
			actions.WithPublisher(bus),
		)),
		rules.WithPublisher(bus),
	)

	workflows := workflow.NewRegistry(log.WithModule("workflow_registry"))
	executor := workflow.NewExecutor(log.WithModule("workflow"), workflows,
		workflow.WithStore(store),
		workflow.WithInvoker(ops),
		workflow.WithPublisher(bus),
	)

	if err := catalog.Install(engine, workflows, ops, notifier); err != nil {
		return nil, err
	}

	return &Stack{
		Operations: ops,
		Workflows:  workflows,
		Engine:     engine,
		Executor:   executor,
		Store:      store,
		EventBus:   bus,
	}, nil
}

// Close waits for in-flight node executions, then closes the bus, the store
// and the tracer provider.
func (s *Stack) Close(ctx context.Context, logger *slog.Logger) {
	s.Executor.Wait()

	if err := s.EventBus.Close(); err != nil {
		logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
	}

	if err := s.Store.Close(ctx); err != nil {
		logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
	}

	if s.shutdown == nil {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tracerShutdownTimeout)
	defer cancel()

	if err := s.shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
	}
}
