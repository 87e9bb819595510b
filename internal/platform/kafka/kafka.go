// Package kafka implements broker.Broker on Kafka using segmentio/kafka-go.
//
// Offsets are committed manually, after the handler succeeds or fails
// permanently, so an uncommitted message is redelivered to the group after
// a restart or rebalance.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	kgo "github.com/segmentio/kafka-go"

	"github.com/todoai/eventflow/internal/broker"
	"github.com/todoai/eventflow/internal/platform/logger"
)

const (
	publishTimeout = 5 * time.Second
	commitTimeout  = 3 * time.Second
)

// Broker is a Kafka transport.
type Broker struct {
	brokers []string
	writer  *kgo.Writer
	policy  broker.RetryPolicy
	logger  *slog.Logger
}

// Ensure Broker implements broker.Broker.
var _ broker.Broker = (*Broker)(nil)

// New creates a Kafka broker for the given bootstrap servers.
func New(brokers []string, policy broker.RetryPolicy, logger *slog.Logger) (*Broker, error) {
	brokers = cleanBrokers(brokers)
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker address is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Topic is set per message.
	w := &kgo.Writer{
		Addr:                   kgo.TCP(brokers...),
		Balancer:               &kgo.Hash{},
		RequiredAcks:           kgo.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return &Broker{
		brokers: brokers,
		writer:  w,
		policy:  policy,
		logger:  logger.With(slog.String("component", "kafka_broker")),
	}, nil
}

// Publish writes one message. Messages with the same key land on the same
// partition, which keeps the events of one task in order.
func (b *Broker) Publish(ctx context.Context, topic, key string, body []byte) error {
	cctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := b.writer.WriteMessages(cctx, kgo.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: body,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("kafka write to %s: %w", topic, err)
	}
	return nil
}

// Subscribe consumes topic as a member of group until ctx is cancelled.
func (b *Broker) Subscribe(ctx context.Context, topic, group string, handler broker.Handler) error {
	log := b.logger.With(slog.String("topic", topic), slog.String("group", group))
	ctx = logger.WithLogger(ctx, log)

	r := kgo.NewReader(kgo.ReaderConfig{
		Brokers:  b.brokers,
		Topic:    topic,
		GroupID:  group,
		MinBytes: 1,
		MaxBytes: 10e6,
		// CommitInterval 0 means offsets are only committed by CommitMessages.
		CommitInterval: 0,
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Error("failed to close kafka reader", slog.String("error", err.Error()))
		}
	}()
	log.Info("subscribed to kafka topic")

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka fetch from %s: %w", topic, err)
		}

		msg := toMessage(m)
		if err := broker.Deliver(ctx, b.policy, msg, handler); !broker.ShouldAck(err) {
			return nil
		}

		if err := b.commit(ctx, r, m); err != nil {
			log.Error("failed to commit offset",
				slog.String("message_id", msg.ID),
				slog.String("error", err.Error()))
		}
	}
}

// Close flushes and closes the writer.
func (b *Broker) Close() error {
	return b.writer.Close()
}

func (b *Broker) commit(ctx context.Context, r *kgo.Reader, m kgo.Message) error {
	cctx, cancel := context.WithTimeout(ctx, commitTimeout)
	defer cancel()
	return r.CommitMessages(cctx, m)
}

func toMessage(m kgo.Message) broker.Message {
	return broker.Message{
		ID:    fmt.Sprintf("%d-%d", m.Partition, m.Offset),
		Topic: m.Topic,
		Key:   string(m.Key),
		Body:  m.Value,
	}
}

func cleanBrokers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, entry := range in {
		for _, addr := range strings.Split(entry, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				out = append(out, addr)
			}
		}
	}
	return out
}
