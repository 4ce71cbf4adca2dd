package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	base := NewBaseEvent(InstanceStartedEvent, "acme")

	assert.NotEmpty(t, base.ID)
	assert.Equal(t, InstanceStartedEvent, base.Type)
	assert.Equal(t, "acme", base.TenantID)
	assert.False(t, base.Timestamp.IsZero())
	assert.NotNil(t, base.Metadata)
}

func TestDecode_StartRequested(t *testing.T) {
	original := &StartRequested{
		BaseEvent:  NewBaseEvent(StartRequestedEvent, "acme"),
		WorkflowID: "ORDER_PROCESSING",
		Context:    map[string]any{"orderId": "ORD-1"},
		StartedBy:  "importer",
	}

	payload, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"type":"workflow.start.requested"`)

	event, err := Decode(StartRequestedEvent, payload)
	require.NoError(t, err)

	decoded, ok := event.(*StartRequested)
	require.True(t, ok)
	assert.Equal(t, "ORDER_PROCESSING", decoded.WorkflowID)
	assert.Equal(t, "acme", decoded.TenantID)
	assert.Equal(t, "ORD-1", decoded.Context["orderId"])
	assert.Equal(t, StartRequestedEvent, decoded.GetType())
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := Decode("workflow.teleported", []byte(`{}`))
	require.ErrorIs(t, err, ErrUnknownEventType)
}

func TestDecode_InvalidPayload(t *testing.T) {
	_, err := Decode(TaskCompletedEvent, []byte(`not-json`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownEventType)
}

func TestEveryEventTypeDecodes(t *testing.T) {
	for eventType := range payloads {
		event, err := Decode(eventType, []byte(`{}`))
		require.NoError(t, err, eventType)
		assert.Equal(t, eventType, event.GetType())
	}
}
