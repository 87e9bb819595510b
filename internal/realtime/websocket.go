package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// DefaultWriteTimeout bounds a single push when none is configured.
const DefaultWriteTimeout = 5 * time.Second

// WSConn adapts a gorilla websocket connection to Conn.
// Writes are serialized; gorilla allows only one concurrent writer.
type WSConn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewWSConn wraps ws. A non-positive writeTimeout uses DefaultWriteTimeout.
func NewWSConn(ws *websocket.Conn, writeTimeout time.Duration) *WSConn {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &WSConn{
		id:           uuid.NewString(),
		ws:           ws,
		writeTimeout: writeTimeout,
	}
}

// ID implements Conn.
func (c *WSConn) ID() string { return c.id }

// Send writes payload as a text frame. The deadline is the earlier of the
// context deadline and the write timeout.
func (c *WSConn) Send(ctx context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Close sends a close frame and closes the underlying connection.
func (c *WSConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.ws.Close()
}

// Server upgrades HTTP requests to websocket connections registered with a
// Broadcaster. Clients only receive; inbound frames are read and discarded
// so that control frames are processed and peer closure is noticed.
type Server struct {
	broadcaster  *Broadcaster
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewServer creates a websocket Server. checkOrigin may be nil to accept
// any origin.
func NewServer(
	b *Broadcaster,
	writeTimeout time.Duration,
	checkOrigin func(r *http.Request) bool,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Server{
		broadcaster: b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		writeTimeout: writeTimeout,
		logger:       logger.With(slog.String("component", "realtime_server")),
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		s.logger.Debug("websocket upgrade failed", slog.Any("error", err))
		return
	}

	conn := NewWSConn(ws, s.writeTimeout)
	s.broadcaster.Connect(conn)
	defer s.broadcaster.Disconnect(conn)

	for {
		if _, _, err := ws.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket closed unexpectedly",
					slog.String("conn_id", conn.ID()),
					slog.Any("error", err))
			}
			return
		}
	}
}
