package kafka_test

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ycslms/lmsflow/pkg/channels/kafka"
)

func TestParseBrokers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, kafka.ParseBrokers(" k1:9092, ,k2:9092 "))
	assert.Empty(t, kafka.ParseBrokers(""))
}

func TestCreateChannel_NoBrokers(t *testing.T) {
	t.Parallel()

	_, _, err := kafka.CreateChannel(watermill.NopLogger{}, nil, "lmsflow")
	require.ErrorIs(t, err, kafka.ErrNoBrokers)
}
