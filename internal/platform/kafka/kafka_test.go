package kafka

import (
	"testing"

	kgo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoai/eventflow/internal/broker"
)

func TestCleanBrokers(t *testing.T) {
	got := cleanBrokers([]string{" kafka-1:9092 ", "kafka-2:9092,kafka-3:9092", ""})
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092", "kafka-3:9092"}, got)
}

func TestNew(t *testing.T) {
	_, err := New([]string{" "}, broker.DefaultRetryPolicy(), nil)
	assert.Error(t, err)

	b, err := New([]string{"localhost:9092"}, broker.DefaultRetryPolicy(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost:9092"}, b.brokers)
	assert.NoError(t, b.Close())
}

func TestToMessage(t *testing.T) {
	msg := toMessage(kgo.Message{
		Topic:     "task-updates",
		Partition: 2,
		Offset:    41,
		Key:       []byte("task-1"),
		Value:     []byte(`{}`),
	})

	assert.Equal(t, "2-41", msg.ID)
	assert.Equal(t, "task-updates", msg.Topic)
	assert.Equal(t, "task-1", msg.Key)
	assert.Equal(t, []byte(`{}`), msg.Body)
}
