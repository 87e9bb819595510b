package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"

	"github.com/todoai/eventflow/internal/broker"
)

func TestToMessage(t *testing.T) {
	entry := goredis.XMessage{
		ID: "1700000000000-0",
		Values: map[string]interface{}{
			"key":  "0e9d8c7b-6a54-4321-8fed-cba987654321",
			"body": `{"event_type":"task-created"}`,
		},
	}

	msg := toMessage("task-events", entry)

	assert.Equal(t, "1700000000000-0", msg.ID)
	assert.Equal(t, "task-events", msg.Topic)
	assert.Equal(t, "0e9d8c7b-6a54-4321-8fed-cba987654321", msg.Key)
	assert.JSONEq(t, `{"event_type":"task-created"}`, string(msg.Body))
}

func TestToMessage_MissingFields(t *testing.T) {
	msg := toMessage("reminders", goredis.XMessage{ID: "1-0", Values: map[string]interface{}{"body": 12}})

	assert.Empty(t, msg.Key)
	assert.Empty(t, msg.Body)
}

func TestIsBusyGroup(t *testing.T) {
	assert.True(t, isBusyGroup(errors.New("BUSYGROUP Consumer Group name already exists")))
	assert.False(t, isBusyGroup(errors.New("NOGROUP No such key")))
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "://bad", nil)
	assert.Error(t, err)
}

func TestWithClaimIdle(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:0"})
	defer func() { _ = client.Close() }()

	b := New(client, broker.DefaultRetryPolicy(), nil)
	assert.Equal(t, DefaultClaimIdle, b.claimIdle)
	assert.Equal(t, DefaultClaimInterval, b.claimInterval)

	b.WithClaimIdle(0, -time.Second)
	assert.Equal(t, DefaultClaimIdle, b.claimIdle)
	assert.Equal(t, DefaultClaimInterval, b.claimInterval)

	b.WithClaimIdle(5*time.Minute, time.Minute)
	assert.Equal(t, 5*time.Minute, b.claimIdle)
	assert.Equal(t, time.Minute, b.claimInterval)
}

func TestNew_ConsumerNamesAreUniquePerBroker(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:0"})
	defer func() { _ = client.Close() }()

	first := New(client, broker.DefaultRetryPolicy(), nil)
	second := New(client, broker.DefaultRetryPolicy(), nil)
	assert.NotEqual(t, first.consumer, second.consumer)
}
