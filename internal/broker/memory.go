package broker

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/todoai/eventflow/internal/platform/logger"
)

// Memory is an in-process Broker. Each consumer group of a topic owns an
// unbounded queue; members of the group compete for messages on it.
// Publish never blocks, so a handler may publish to the topic it consumes.
// Messages published before any group has subscribed to a topic are discarded.
type Memory struct {
	mu     sync.RWMutex
	topics map[string]map[string]*memoryGroup
	closed bool

	policy RetryPolicy
	seq    atomic.Uint64
	logger *slog.Logger
}

type memoryGroup struct {
	mu      sync.Mutex
	pending []Message
	ready   chan struct{}

	members int // guarded by Memory.mu
}

func newMemoryGroup() *memoryGroup {
	return &memoryGroup{ready: make(chan struct{}, 1)}
}

func (g *memoryGroup) push(msg Message) {
	g.mu.Lock()
	g.pending = append(g.pending, msg)
	g.mu.Unlock()
	g.signal()
}

// pushFront returns an unacknowledged message to the head of the queue.
func (g *memoryGroup) pushFront(msg Message) {
	g.mu.Lock()
	g.pending = append([]Message{msg}, g.pending...)
	g.mu.Unlock()
	g.signal()
}

func (g *memoryGroup) pop() (Message, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.pending) == 0 {
		return Message{}, false
	}
	msg := g.pending[0]
	g.pending[0] = Message{}
	g.pending = g.pending[1:]
	if len(g.pending) > 0 {
		// Wake another member for the rest.
		g.signal()
	}
	return msg, true
}

func (g *memoryGroup) len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

func (g *memoryGroup) signal() {
	select {
	case g.ready <- struct{}{}:
	default:
	}
}

// Ensure Memory implements Broker.
var _ Broker = (*Memory)(nil)

// NewMemory creates an in-process broker.
func NewMemory(policy RetryPolicy, logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		topics: make(map[string]map[string]*memoryGroup),
		policy: policy,
		logger: logger.With(slog.String("component", "memory_broker")),
	}
}

// Publish enqueues the message on every group subscribed to topic.
func (m *Memory) Publish(ctx context.Context, topic, key string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	groups := make([]*memoryGroup, 0, len(m.topics[topic]))
	for _, g := range m.topics[topic] {
		groups = append(groups, g)
	}
	m.mu.RUnlock()

	msg := Message{
		ID:    strconv.FormatUint(m.seq.Add(1), 10),
		Topic: topic,
		Key:   key,
		Body:  body,
	}

	if len(groups) == 0 {
		m.logger.Debug("no subscribers for topic, message discarded",
			slog.String("topic", topic),
			slog.String("message_id", msg.ID))
		return nil
	}

	for _, g := range groups {
		g.push(msg)
	}
	return nil
}

// Subscribe joins group on topic and handles messages until ctx is cancelled.
// A message whose delivery is interrupted by cancellation is put back on the
// group queue for the next member.
func (m *Memory) Subscribe(ctx context.Context, topic, group string, handler Handler) error {
	g := m.join(topic, group)
	defer m.leave(topic, group)

	log := m.logger.With(slog.String("topic", topic), slog.String("group", group))
	ctx = logger.WithLogger(ctx, log)
	log.Debug("subscribed")

	for {
		msg, ok := g.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-g.ready:
				continue
			}
		}
		if ctx.Err() != nil {
			g.pushFront(msg)
			return nil
		}

		err := Deliver(ctx, m.policy, msg, handler)
		if ShouldAck(err) {
			continue
		}
		g.pushFront(msg)
		return nil
	}
}

// Pending returns the number of messages queued for group on topic.
func (m *Memory) Pending(topic, group string) int {
	m.mu.RLock()
	g, ok := m.topics[topic][group]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return g.len()
}

// SubscriberCount returns the number of members across all groups of topic.
func (m *Memory) SubscriberCount(topic string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, g := range m.topics[topic] {
		n += g.members
	}
	return n
}

// Close stops accepting new messages.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) join(topic, group string) *memoryGroup {
	m.mu.Lock()
	defer m.mu.Unlock()

	groups, ok := m.topics[topic]
	if !ok {
		groups = make(map[string]*memoryGroup)
		m.topics[topic] = groups
	}
	g, ok := groups[group]
	if !ok {
		g = newMemoryGroup()
		groups[group] = g
	}
	g.members++
	return g
}

// leave keeps the group queue so pending messages survive a restart of its members.
func (m *Memory) leave(topic, group string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.topics[topic][group]; ok {
		g.members--
	}
}
