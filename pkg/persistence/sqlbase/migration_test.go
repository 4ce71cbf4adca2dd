package sqlbase_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ycslms/lmsflow/pkg/persistence/sqlbase"
)

func TestNewSchema(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		steps      []sqlbase.Step
		wantErr    bool
		wantTarget int
	}{
		{"empty", nil, false, 0},
		{"unordered", []sqlbase.Step{{Version: 2, Name: "tasks"}, {Version: 1, Name: "instances"}}, false, 2},
		{"duplicate version", []sqlbase.Step{{Version: 1, Name: "a"}, {Version: 1, Name: "b"}}, true, 0},
		{"zero version", []sqlbase.Step{{Version: 0, Name: "a"}}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			schema, err := sqlbase.NewSchema(slog.Default(), nil, tt.steps)
			if tt.wantErr {
				require.ErrorIs(t, err, sqlbase.ErrInvalidSchema)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantTarget, schema.Target())
		})
	}
}
