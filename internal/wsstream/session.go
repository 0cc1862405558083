// Package wsstream maintains the command stream between the agent and
// the control server over a WebSocket connection.
package wsstream

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/serverpulse/agent/internal/observability/log"
)

// Config bounds the session's handshake and frame deadlines.
type Config struct {
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
}

// DefaultConfig returns the deadlines the session runs with unless the
// caller overrides them.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     30 * time.Second,
	}
}

// Command is one instruction received from the control server. Spec,
// when present, is a YAML document the client decodes.
type Command struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Spec string `json:"spec,omitempty"`
}

// Ack reports the outcome of a command back to the server.
type Ack struct {
	CommandID string `json:"command_id"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// Session is a single WebSocket connection to the control server.
// Writes are serialized; reads belong to one reader goroutine.
type Session struct {
	id     string
	conn   *websocket.Conn
	config Config
	logger log.Log

	writeMu sync.Mutex
	closed  int32

	lastActivity int64
}

// Dial opens a session against url, authenticating with token.
func Dial(ctx context.Context, url, token string, config Config, logger log.Log) (*Session, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: config.HandshakeTimeout,
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return nil, errors.Wrapf(err, "handshake rejected with status %d", resp.StatusCode)
		}
		return nil, err
	}

	s := &Session{
		id:           uuid.New().String(),
		conn:         conn,
		config:       config,
		logger:       logger.With(log.String("component", "wsstream")),
		lastActivity: time.Now().Unix(),
	}

	// An answered ping proves the peer is alive, so it also pushes the
	// read deadline out; otherwise an idle but healthy session would be
	// torn down after ReadTimeout.
	conn.SetPongHandler(func(string) error {
		atomic.StoreInt64(&s.lastActivity, time.Now().Unix())
		if config.ReadTimeout > 0 {
			return conn.SetReadDeadline(time.Now().Add(config.ReadTimeout))
		}
		return nil
	})

	s.logger.Info("session established",
		log.String("session_id", s.id),
		log.String("remote_addr", conn.RemoteAddr().String()))

	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// ReadCommand blocks for the next command frame. It must be called from
// a single goroutine.
func (s *Session) ReadCommand() (*Command, error) {
	if s.IsClosed() {
		return nil, errors.New("session is closed")
	}

	if s.config.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	}

	var cmd Command
	if err := s.conn.ReadJSON(&cmd); err != nil {
		return nil, err
	}

	atomic.StoreInt64(&s.lastActivity, time.Now().Unix())

	return &cmd, nil
}

// Send writes v as a JSON frame.
func (s *Session) Send(v any) error {
	if s.IsClosed() {
		return errors.New("session is closed")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.config.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}

	if err := s.conn.WriteJSON(v); err != nil {
		return errors.Wrap(err, "write frame")
	}

	atomic.StoreInt64(&s.lastActivity, time.Now().Unix())
	return nil
}

// Ping sends a control ping to keep the connection alive.
func (s *Session) Ping() error {
	if s.IsClosed() {
		return errors.New("session is closed")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline := time.Now().Add(s.config.WriteTimeout)
	return s.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

// Close sends a close frame and tears the connection down. Safe to call
// more than once.
func (s *Session) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}

	s.writeMu.Lock()
	deadline := time.Now().Add(s.config.WriteTimeout)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	s.writeMu.Unlock()

	s.logger.Info("session closed", log.String("session_id", s.id))
	return s.conn.Close()
}

// IsClosed reports whether Close has run.
func (s *Session) IsClosed() bool {
	return atomic.LoadInt32(&s.closed) == 1
}

// LastActivity returns the time of the most recent frame in either
// direction.
func (s *Session) LastActivity() time.Time {
	return time.Unix(atomic.LoadInt64(&s.lastActivity), 0)
}
