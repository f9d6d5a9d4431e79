package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// defaultWriteTimeout bounds a single frame write to a subscriber.
const defaultWriteTimeout = 5 * time.Second

// WSSubscriber adapts a WebSocket connection to [Subscriber].
//
// gorilla/websocket allows one concurrent writer, so every write goes
// through mu. Each write carries a deadline; a subscriber that cannot keep
// up fails its send instead of blocking the broadcast.
type WSSubscriber struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewWSSubscriber wraps conn. A zero writeTimeout uses 5s.
func NewWSSubscriber(conn *websocket.Conn, writeTimeout time.Duration) *WSSubscriber {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &WSSubscriber{
		id:           uuid.NewString(),
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

// ID identifies the subscriber in logs.
func (s *WSSubscriber) ID() string {
	return s.id
}

// Send writes msg as a single text frame.
func (s *WSSubscriber) Send(msg []byte) error {
	return s.write(websocket.TextMessage, msg)
}

// Ping writes a ping control frame.
func (s *WSSubscriber) Ping() error {
	return s.write(websocket.PingMessage, nil)
}

func (s *WSSubscriber) write(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSubscriberClosed
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, data)
}

// Close sends a close frame (best-effort) and closes the connection.
// Safe to call multiple times.
func (s *WSSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.conn.Close()
}
