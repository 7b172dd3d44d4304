// Package stream bridges one long-lived client connection to one poll
// topic on the pub/sub bus.
package stream

import (
	"context"
	"log/slog"
	"sync/atomic"

	"realtime-voting/internal/pubsub"
)

// Conn is the narrow surface a session needs from a websocket
// connection. *websocket.Conn from gorilla/websocket satisfies it.
type Conn interface {
	WriteJSON(v any) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

type State int32

const (
	StateConnecting State = iota
	StateSubscribed
	StateStreaming
	StateIdle
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	case StateIdle:
		return "idle"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session forwards every tally snapshot published for its poll to the
// connection until the client disconnects, the context is canceled, or
// a write fails. Closed is terminal; a session never resubscribes.
type Session struct {
	conn  Conn
	sub   *pubsub.Subscription
	state atomic.Int32
	log   *slog.Logger
}

func New(conn Conn, sub *pubsub.Subscription) *Session {
	s := &Session{
		conn: conn,
		sub:  sub,
		log:  slog.Default(),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Run drives the session to completion. It returns once the session
// has reached the Closed state and the subscription is released.
func (s *Session) Run(ctx context.Context) {
	defer s.close()

	s.setState(StateSubscribed)

	// The read pump exists only to observe the client going away; the
	// stream itself is one-directional.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := s.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		s.setState(StateIdle)
		select {
		case <-ctx.Done():
			return
		case <-disconnected:
			return
		case snap, ok := <-s.sub.C():
			if !ok {
				return
			}
			s.setState(StateStreaming)
			if err := s.conn.WriteJSON(snap); err != nil {
				s.log.Warn("result stream write failed",
					"poll_id", s.sub.PollID(),
					"error", err,
				)
				return
			}
		}
	}
}

func (s *Session) close() {
	s.sub.Unsubscribe()
	_ = s.conn.Close()
	s.state.Store(int32(StateClosed))
}

func (s *Session) setState(st State) {
	// Closed is sticky.
	if State(s.state.Load()) == StateClosed {
		return
	}
	s.state.Store(int32(st))
}
