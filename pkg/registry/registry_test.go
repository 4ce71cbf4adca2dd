package registry_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ycslms/lmsflow/pkg/registry"
)

func TestRegistry_Invoke(t *testing.T) {
	t.Parallel()

	reg := registry.NewRegistry(slog.Default())
	reg.Register("PaymentService", "processPayment", func(_ context.Context, input map[string]any) (map[string]any, error) {
		return map[string]any{"paid": input["amount"]}, nil
	})

	out, err := reg.Invoke(t.Context(), "PaymentService", "processPayment", map[string]any{"amount": 10})
	require.NoError(t, err)
	assert.Equal(t, 10, out["paid"])
	assert.True(t, reg.Has("PaymentService", "processPayment"))
}

func TestRegistry_InvokeUnknown(t *testing.T) {
	t.Parallel()

	reg := registry.NewRegistry(slog.Default())

	_, err := reg.Invoke(t.Context(), "Nope", "nothing", nil)
	require.ErrorIs(t, err, registry.ErrOperationNotRegistered)
}

func TestRegistry_InvokePropagatesErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("gateway down")
	reg := registry.NewRegistry(slog.Default())
	reg.Register("PaymentService", "processPayment", func(context.Context, map[string]any) (map[string]any, error) {
		return nil, boom
	})

	_, err := reg.Invoke(t.Context(), "PaymentService", "processPayment", nil)
	require.ErrorIs(t, err, boom)
}

func TestRegistry_NilResultBecomesEmptyMap(t *testing.T) {
	t.Parallel()

	reg := registry.NewRegistry(slog.Default())
	reg.Register("A", "b", func(context.Context, map[string]any) (map[string]any, error) {
		return nil, nil
	})

	out, err := reg.Invoke(t.Context(), "A", "b", nil)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestRegistry_Operations(t *testing.T) {
	t.Parallel()

	reg := registry.NewRegistry(slog.Default())
	noop := func(context.Context, map[string]any) (map[string]any, error) { return nil, nil }

	reg.Register("Shipment", "dispatch", noop)
	reg.Register("Label", "generate", noop)

	assert.Equal(t, []string{"Label.generate", "Shipment.dispatch"}, reg.Operations())
}

func TestRegistry_LoadPluginsMissingDir(t *testing.T) {
	t.Parallel()

	reg := registry.NewRegistry(slog.Default())

	require.NoError(t, reg.LoadPlugins(t.Context(), t.TempDir()+"/missing"))
	require.NoError(t, reg.LoadPlugins(t.Context(), t.TempDir()))
}
