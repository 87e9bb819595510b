package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/todoai/eventflow/internal/platform/logger"
)

// Conn is one client connection.
type Conn interface {
	// ID identifies the connection in logs.
	ID() string
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Broadcaster fans messages out to every connected client.
type Broadcaster struct {
	mu     sync.Mutex
	conns  map[Conn]struct{}
	logger *slog.Logger
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		conns:  make(map[Conn]struct{}),
		logger: logger.With(slog.String("component", "realtime_broadcaster")),
	}
}

// Connect adds c to the connection set.
func (b *Broadcaster) Connect(c Conn) {
	b.mu.Lock()
	b.conns[c] = struct{}{}
	n := len(b.conns)
	b.mu.Unlock()

	b.logger.Debug("client connected", slog.String("conn_id", c.ID()), slog.Int("connections", n))
}

// Disconnect removes c and closes it. Disconnecting an unknown or already
// removed connection is a no-op.
func (b *Broadcaster) Disconnect(c Conn) {
	if !b.remove(c) {
		return
	}
	if err := c.Close(); err != nil {
		b.logger.Debug("error closing connection", slog.String("conn_id", c.ID()), slog.Any("error", err))
	}
}

func (b *Broadcaster) remove(c Conn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.conns[c]; !ok {
		return false
	}
	delete(b.conns, c)
	return true
}

// CloseAll disconnects every connection.
func (b *Broadcaster) CloseAll() {
	b.mu.Lock()
	snapshot := make([]Conn, 0, len(b.conns))
	for c := range b.conns {
		snapshot = append(snapshot, c)
	}
	b.mu.Unlock()

	for _, c := range snapshot {
		b.Disconnect(c)
	}
}

// Count returns the number of open connections.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Broadcast marshals msg to JSON and sends it to every connection.
// It returns the number of successful sends. Connections that fail are
// removed after the pass; an empty set is a no-op.
func (b *Broadcaster) Broadcast(ctx context.Context, msg any) (int, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal broadcast message: %w", err)
	}

	b.mu.Lock()
	snapshot := make([]Conn, 0, len(b.conns))
	for c := range b.conns {
		snapshot = append(snapshot, c)
	}
	b.mu.Unlock()

	log := logger.FromContextOrDefault(ctx, b.logger)

	delivered := 0
	var stale []Conn
	for _, c := range snapshot {
		if err := c.Send(ctx, payload); err != nil {
			log.Warn("push failed, dropping connection",
				slog.String("conn_id", c.ID()),
				slog.Any("error", err))
			stale = append(stale, c)
			continue
		}
		delivered++
	}

	for _, c := range stale {
		b.Disconnect(c)
	}

	log.Debug("broadcast complete",
		slog.Int("delivered", delivered),
		slog.Int("dropped", len(stale)))
	return delivered, nil
}
