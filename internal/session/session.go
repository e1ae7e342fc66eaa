package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jpalmerr/worldsync/internal/hub"
	"github.com/jpalmerr/worldsync/internal/store"
)

// ErrMalformedFrame is returned when an inbound frame is not a JSON object
// mapping entity IDs to attribute objects.
var ErrMalformedFrame = errors.New("malformed frame")

// Conn is the part of a [websocket.Conn] a session needs.
//
// Exactly one goroutine calls ReadMessage and exactly one calls WriteMessage;
// Close may be called concurrently with both.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// deadlineConn is implemented by connections that support write deadlines,
// such as *websocket.Conn.
type deadlineConn interface {
	SetWriteDeadline(t time.Time) error
}

// State is the lifecycle phase of a session.
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session is a single client connection bound to the shared store and hub.
type Session struct {
	conn         Conn
	store        store.Store
	hub          *hub.Hub
	writeTimeout time.Duration
	logger       *slog.Logger

	state atomic.Int32
	sub   *hub.Subscriber
}

// New creates a session for conn. Nothing runs until [Session.Run].
//
// writeTimeout bounds each outbound write when the connection supports
// write deadlines; zero disables it.
func New(conn Conn, st store.Store, h *hub.Hub, writeTimeout time.Duration, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		conn:         conn,
		store:        st,
		hub:          h,
		writeTimeout: writeTimeout,
		sub:          h.NewSubscriber(),
	}
	s.logger = logger.With("session", s.sub.ID())
	return s
}

// ID returns the session's subscriber ID.
func (s *Session) ID() string {
	return s.sub.ID()
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Run registers the session with the hub and serves the connection until the
// peer goes away, an I/O or decoding error occurs, or ctx is cancelled.
//
// Run closes the connection and unregisters the subscriber before returning.
// The returned error is the cause of the shutdown; use [IsNormalClosure] to
// tell ordinary disconnects from faults.
func (s *Session) Run(ctx context.Context) error {
	s.hub.Register(s.sub)
	s.state.Store(int32(StateOpen))
	s.logger.Debug("session opened")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- s.readLoop()
	}()
	go func() {
		defer wg.Done()
		errs <- s.writeLoop(runCtx)
	}()

	var cause error
	select {
	case cause = <-errs:
	case <-s.sub.Done():
		// reset by the hub's queue limit while the writer may be stuck
		cause = s.sub.Err()
	case <-ctx.Done():
		cause = ctx.Err()
	}

	s.state.Store(int32(StateClosing))
	cancel()
	// unblocks a reader parked in ReadMessage
	if err := s.conn.Close(); err != nil {
		s.logger.Debug("close connection", "error", err)
	}
	wg.Wait()

	s.hub.Unregister(s.sub)
	s.state.Store(int32(StateClosed))

	if IsNormalClosure(cause) {
		s.logger.Debug("session closed", "reason", cause)
	} else {
		s.logger.Warn("session closed with error", "error", cause)
	}
	return cause
}

// readLoop applies inbound frames until the connection fails.
func (s *Session) readLoop() error {
	for {
		_, p, err := s.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if err := s.apply(p); err != nil {
			return err
		}
	}
}

// apply decodes {entity: attributes, ...} and replaces each entity in turn.
func (s *Session) apply(p []byte) error {
	var frame map[string]store.Attributes
	if err := json.Unmarshal(p, &frame); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if frame == nil {
		return fmt.Errorf("%w: expected a JSON object", ErrMalformedFrame)
	}

	for entity, attrs := range frame {
		s.store.Set(entity, attrs)
	}
	return nil
}

// writeLoop drains the subscriber onto the connection until ctx is done, the
// subscriber is closed, or a write fails.
func (s *Session) writeLoop(ctx context.Context) error {
	dc, deadlines := s.conn.(deadlineConn)
	deadlines = deadlines && s.writeTimeout > 0

	for {
		msg, err := s.sub.Next(ctx)
		if err != nil {
			return err
		}

		if deadlines {
			if err := dc.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
				return fmt.Errorf("set write deadline: %w", err)
			}
		}
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}
}

// IsNormalClosure reports whether err is an ordinary end of a session: the
// peer disconnecting, a normal close frame, cancellation, or the subscriber
// being closed by the hub.
func IsNormalClosure(err error) bool {
	if err == nil {
		return true
	}
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, context.Canceled),
		errors.Is(err, hub.ErrSubscriberClosed),
		errors.Is(err, websocket.ErrCloseSent):
		return true
	}

	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return true
		}
	}
	return false
}
