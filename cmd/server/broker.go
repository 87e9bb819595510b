package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/todoai/eventflow/internal/broker"
	"github.com/todoai/eventflow/internal/config"
	"github.com/todoai/eventflow/internal/platform/kafka"
	"github.com/todoai/eventflow/internal/platform/redis"
)

// newBroker builds the transport selected by cfg.Driver.
func newBroker(ctx context.Context, cfg config.BrokerConfig, logger *slog.Logger) (broker.Broker, error) {
	policy := broker.RetryPolicy{Base: cfg.RetryBase(), Max: cfg.RetryMax()}

	switch cfg.Driver {
	case config.BrokerMemory:
		logger.Warn("using in-memory broker; events are not durable and stay in this process")
		return broker.NewMemory(policy, logger), nil

	case config.BrokerRedis:
		client, err := redis.Connect(ctx, cfg.RedisURL, logger)
		if err != nil {
			return nil, err
		}
		return redis.New(client, policy, logger).WithClaimIdle(cfg.RedisClaimIdle(), 0), nil

	case config.BrokerKafka:
		return kafka.New(cfg.KafkaBrokers, policy, logger)

	default:
		return nil, fmt.Errorf("unsupported broker driver %q", cfg.Driver)
	}
}
