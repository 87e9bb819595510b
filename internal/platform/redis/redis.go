// Package redis implements broker.Broker on Redis Streams.
//
// Each topic is a stream and each consumer group a Redis consumer group.
// Entries are acknowledged with XACK only once their handler succeeds or
// fails permanently. Consumer names are unique per process, so entries left
// pending by a member that went away are taken over with XAUTOCLAIM once they
// have been idle for the claim threshold. XAUTOCLAIM needs Redis 6.2 or later.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/todoai/eventflow/internal/broker"
	"github.com/todoai/eventflow/internal/platform/logger"
	"github.com/todoai/eventflow/internal/redact"
)

// Stream entry fields.
const (
	fieldKey  = "key"
	fieldBody = "body"
)

const (
	defaultBlock  = 2 * time.Second
	defaultCount  = 16
	defaultMaxLen = 100000

	// DefaultClaimIdle is how long an entry stays pending with another
	// consumer before it is claimed. It must exceed the longest redelivery
	// backoff so a live member's in-flight entry is not taken from it.
	DefaultClaimIdle = time.Minute

	// DefaultClaimInterval is how often a subscriber looks for stale entries.
	DefaultClaimInterval = 30 * time.Second
)

// Broker is a Redis Streams transport.
type Broker struct {
	client        *goredis.Client
	policy        broker.RetryPolicy
	consumer      string
	block         time.Duration
	maxLen        int64
	claimIdle     time.Duration
	claimInterval time.Duration
	logger        *slog.Logger
}

// Ensure Broker implements broker.Broker.
var _ broker.Broker = (*Broker)(nil)

// Connect parses url, creates a client and verifies it with PING.
func Connect(ctx context.Context, url string, log *slog.Logger) (*goredis.Client, error) {
	if log == nil {
		log = slog.Default()
	}
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := goredis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", redact.URL(url), err)
	}

	log.Info("connected to redis", slog.String("url", redact.URL(url)))
	return client, nil
}

// New wraps client as a broker. The consumer name is unique per process;
// use WithClaimIdle to tune when another member's pending entries are taken over.
func New(client *goredis.Client, policy broker.RetryPolicy, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	host, _ := os.Hostname()
	return &Broker{
		client:        client,
		policy:        policy,
		consumer:      fmt.Sprintf("%s-%s", host, uuid.NewString()[:8]),
		block:         defaultBlock,
		maxLen:        defaultMaxLen,
		claimIdle:     DefaultClaimIdle,
		claimInterval: DefaultClaimInterval,
		logger:        logger.With(slog.String("component", "redis_broker")),
	}
}

// WithClaimIdle sets the idle threshold and the check interval for claiming
// entries other consumers left pending. Non-positive values keep the defaults.
func (b *Broker) WithClaimIdle(idle, interval time.Duration) *Broker {
	if idle > 0 {
		b.claimIdle = idle
	}
	if interval > 0 {
		b.claimInterval = interval
	}
	return b
}

// Publish appends an entry to the topic stream.
func (b *Broker) Publish(ctx context.Context, topic, key string, body []byte) error {
	err := b.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: topic,
		MaxLen: b.maxLen,
		Approx: true,
		Values: map[string]interface{}{fieldKey: key, fieldBody: body},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", topic, err)
	}
	return nil
}

// Subscribe consumes topic as a member of group until ctx is cancelled.
func (b *Broker) Subscribe(ctx context.Context, topic, group string, handler broker.Handler) error {
	log := b.logger.With(
		slog.String("topic", topic),
		slog.String("group", group),
		slog.String("consumer", b.consumer))
	ctx = logger.WithLogger(ctx, log)

	if err := b.ensureGroup(ctx, topic, group); err != nil {
		return err
	}
	log.Info("subscribed to stream")

	// "0" re-reads this consumer's pending entries; ">" reads new ones.
	cursor := "0"
	var lastClaim time.Time
	for {
		if ctx.Err() != nil {
			return nil
		}

		if time.Since(lastClaim) >= b.claimInterval {
			lastClaim = time.Now()
			acked, err := b.reclaim(ctx, topic, group, handler)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if !acked {
				return nil
			}
		}

		streams, err := b.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    group,
			Consumer: b.consumer,
			Streams:  []string{topic, cursor},
			Count:    defaultCount,
			Block:    b.block,
		}).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("xreadgroup %s/%s: %w", topic, group, err)
		}

		entries := 0
		for _, stream := range streams {
			for _, entry := range stream.Messages {
				entries++
				if !b.deliver(ctx, topic, group, entry, handler) {
					return nil
				}
			}
		}

		if cursor == "0" && entries == 0 {
			cursor = ">"
		}
	}
}

// reclaim takes over entries of group that have been pending with any
// consumer for at least claimIdle and delivers them. It reports false when
// a delivery was left unacknowledged and the subscription should stop.
func (b *Broker) reclaim(ctx context.Context, topic, group string, handler broker.Handler) (bool, error) {
	log := logger.FromContextOrDefault(ctx, b.logger)

	start := "0-0"
	for {
		entries, next, err := b.client.XAutoClaim(ctx, &goredis.XAutoClaimArgs{
			Stream:   topic,
			Group:    group,
			Consumer: b.consumer,
			MinIdle:  b.claimIdle,
			Start:    start,
			Count:    defaultCount,
		}).Result()
		if err != nil {
			return false, fmt.Errorf("xautoclaim %s/%s: %w", topic, group, err)
		}
		if len(entries) > 0 {
			log.Warn("claimed stale pending entries", slog.Int("count", len(entries)))
		}

		for _, entry := range entries {
			if !b.deliver(ctx, topic, group, entry, handler) {
				return false, nil
			}
		}

		if next == "" || next == "0-0" {
			return true, nil
		}
		start = next
	}
}

// deliver runs handler for entry and acknowledges it when the outcome is
// final. It reports false when the entry was left pending.
func (b *Broker) deliver(
	ctx context.Context,
	topic, group string,
	entry goredis.XMessage,
	handler broker.Handler,
) bool {
	err := broker.Deliver(ctx, b.policy, toMessage(topic, entry), handler)
	if !broker.ShouldAck(err) {
		return false
	}
	if err := b.client.XAck(ctx, topic, group, entry.ID).Err(); err != nil {
		logger.FromContextOrDefault(ctx, b.logger).Error("failed to ack stream entry",
			slog.String("message_id", entry.ID),
			slog.String("error", err.Error()))
	}
	return true
}

// Close closes the underlying client.
func (b *Broker) Close() error {
	return b.client.Close()
}

func (b *Broker) ensureGroup(ctx context.Context, topic, group string) error {
	err := b.client.XGroupCreateMkStream(ctx, topic, group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("failed to create consumer group %s on %s: %w", group, topic, err)
	}
	return nil
}

func isBusyGroup(err error) bool {
	return strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func toMessage(topic string, entry goredis.XMessage) broker.Message {
	return broker.Message{
		ID:    entry.ID,
		Topic: topic,
		Key:   stringValue(entry.Values[fieldKey]),
		Body:  []byte(stringValue(entry.Values[fieldBody])),
	}
}

func stringValue(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return ""
	}
}
