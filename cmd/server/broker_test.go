package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoai/eventflow/internal/broker"
	"github.com/todoai/eventflow/internal/config"
	"github.com/todoai/eventflow/internal/platform/kafka"
	"github.com/todoai/eventflow/internal/platform/logger"
)

func TestNewBroker(t *testing.T) {
	log, _ := logger.NewTestLogger(t)
	base := config.BrokerConfig{RetryBaseMs: 100, RetryMaxMs: 1000}

	t.Run("memory", func(t *testing.T) {
		cfg := base
		cfg.Driver = config.BrokerMemory
		b, err := newBroker(context.Background(), cfg, log)
		require.NoError(t, err)
		assert.IsType(t, &broker.Memory{}, b)
	})

	t.Run("kafka", func(t *testing.T) {
		cfg := base
		cfg.Driver = config.BrokerKafka
		cfg.KafkaBrokers = []string{"localhost:9092"}
		b, err := newBroker(context.Background(), cfg, log)
		require.NoError(t, err)
		assert.IsType(t, &kafka.Broker{}, b)
		assert.NoError(t, b.Close())
	})

	t.Run("kafka without brokers", func(t *testing.T) {
		cfg := base
		cfg.Driver = config.BrokerKafka
		_, err := newBroker(context.Background(), cfg, log)
		assert.Error(t, err)
	})

	t.Run("redis with invalid url", func(t *testing.T) {
		cfg := base
		cfg.Driver = config.BrokerRedis
		cfg.RedisURL = "not a url"
		_, err := newBroker(context.Background(), cfg, log)
		assert.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := base
		cfg.Driver = "rabbitmq"
		_, err := newBroker(context.Background(), cfg, log)
		assert.ErrorContains(t, err, "unsupported broker driver")
	})
}
