// Package registry maps (component, operation) names to the Go functions that implement them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"
	"sort"
	"sync"
)

// ErrOperationNotRegistered is returned by Invoke for unknown names.
var ErrOperationNotRegistered = errors.New("operation not registered")

// Operation is a named unit of business logic invoked by service tasks and rule actions.
type Operation func(ctx context.Context, input map[string]any) (map[string]any, error)

// PluginSymbol is the function a plugin exports to contribute operations.
const PluginSymbol = "Register"

type Registry struct {
	logger     *slog.Logger
	mu         sync.RWMutex
	operations map[string]Operation
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:     log,
		operations: make(map[string]Operation),
	}
}

func key(component, operation string) string {
	return component + "." + operation
}

// Register adds or replaces an operation.
func (r *Registry) Register(component, operation string, op Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.operations[key(component, operation)] = op
}

func (r *Registry) Has(component, operation string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.operations[key(component, operation)]

	return ok
}

// Operations returns the registered names as "component.operation", sorted.
func (r *Registry) Operations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.operations))
	for name := range r.operations {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Invoke runs the named operation. A nil result is returned as an empty map.
func (r *Registry) Invoke(ctx context.Context, component, operation string, input map[string]any) (map[string]any, error) {
	r.mu.RLock()
	op, ok := r.operations[key(component, operation)]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotRegistered, key(component, operation))
	}

	r.logger.DebugContext(ctx, "Invoking operation", "component", component, "operation", operation)

	out, err := op(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", key(component, operation), err)
	}

	if out == nil {
		out = map[string]any{}
	}

	return out, nil
}

// LoadPlugins opens every .so under pluginsPath and calls its exported
// Register(*Registry) function. A missing directory is not an error.
func (r *Registry) LoadPlugins(ctx context.Context, pluginsPath string) error {
	if pluginsPath == "" {
		return nil
	}

	if _, err := os.Stat(pluginsPath); errors.Is(err, fs.ErrNotExist) {
		r.logger.InfoContext(ctx, "Plugins directory not found, skipping", "path", pluginsPath)

		return nil
	}

	paths, err := fs.Glob(os.DirFS(pluginsPath), "*.so")
	if err != nil {
		return fmt.Errorf("failed to list plugins: %w", err)
	}

	l := r.logger.With(slog.String("path", pluginsPath))
	l.InfoContext(ctx, "Loading plugins", "count", len(paths))

	for _, p := range paths {
		plg, err := plugin.Open(filepath.Join(pluginsPath, p))
		if err != nil {
			return fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		sym, err := plg.Lookup(PluginSymbol)
		if err != nil {
			return fmt.Errorf("plugin %s has no %s symbol: %w", p, PluginSymbol, err)
		}

		register, ok := sym.(func(*Registry))
		if !ok {
			return fmt.Errorf("plugin %s: %s has type %T", p, PluginSymbol, sym)
		}

		register(r)

		l.InfoContext(ctx, "Loaded plugin", slog.String("plugin", p))
	}

	return nil
}
