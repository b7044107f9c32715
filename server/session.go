package server

import (
	"chat-relay/contract"
	chaterrors "chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/protocol"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

const readBufferSize = 4096

// Caller is what the Router sees of a connection: a delivery target plus its
// authentication state. An empty Username means anonymous.
type Caller interface {
	contract.Peer
	// Reply queues an answer to the caller's own request. It waits for room
	// in the queue instead of dropping the caller.
	Reply(env protocol.Envelope) error
	Username() string
	SetUsername(username string)
}

// Session owns one client connection.
// The read loop runs in Run; a single writer goroutine drains the outbound
// queue, so Send and Reply only enqueue and never touch the network.
type Session struct {
	id      string
	conn    net.Conn
	codec   protocol.Codec
	router  *Router
	log     *slog.Logger
	metrics *observability.Metrics

	idleTimeout  time.Duration
	writeTimeout time.Duration

	mu       sync.Mutex // guards closed and username
	closed   bool
	username string
	outbound chan protocol.Envelope
	done     chan struct{}

	closeOnce  sync.Once
	writerDone chan struct{}
}

var _ Caller = (*Session)(nil)

type SessionConfig struct {
	Codec        protocol.Codec
	BufferSize   int
	IdleTimeout  time.Duration
	WriteTimeout time.Duration
}

func NewSession(log *slog.Logger, conn net.Conn, router *Router, metrics *observability.Metrics, config SessionConfig) *Session {
	bufferSize := config.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1
	}
	id := uuid.NewString()
	return &Session{
		id:           id,
		conn:         conn,
		codec:        config.Codec,
		router:       router,
		log:          log.With("session", id, "remote", conn.RemoteAddr().String()),
		metrics:      metrics,
		idleTimeout:  config.IdleTimeout,
		writeTimeout: config.WriteTimeout,
		outbound:     make(chan protocol.Envelope, bufferSize),
		done:         make(chan struct{}),
		writerDone:   make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

func (s *Session) SetUsername(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
}

// Send enqueues env for the writer. A full queue means the peer does not keep
// up: the session is closed and ErrQueueFull returned.
func (s *Session) Send(env protocol.Envelope) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return chaterrors.ErrSessionClosed
	}
	select {
	case s.outbound <- env:
		s.mu.Unlock()
		return nil
	default:
	}
	s.mu.Unlock()

	s.metrics.SlowConsumers.Inc()
	s.log.Warn("Outbound queue full, closing session", "username", s.Username())
	s.Close()
	return chaterrors.ErrQueueFull
}

// Reply blocks until env is queued or the session closes. It runs on the
// read loop, so a peer that stops reading also stops being read.
func (s *Session) Reply(env protocol.Envelope) error {
	select {
	case <-s.done:
		return chaterrors.ErrSessionClosed
	default:
	}
	select {
	case s.outbound <- env:
		return nil
	case <-s.done:
		return chaterrors.ErrSessionClosed
	}
}

// Close stops accepting frames. Frames already queued are still written,
// then the connection is closed, which ends the read loop.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.done)
		s.mu.Unlock()
	})
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Run serves the connection until the peer leaves, a framing error occurs or
// ctx ends. On return the connection is closed and the user unbound.
func (s *Session) Run(ctx context.Context) {
	s.metrics.ConnectionsTotal.Inc()
	s.metrics.ConnectionsActive.Inc()
	defer s.metrics.ConnectionsActive.Dec()

	stop := context.AfterFunc(ctx, s.Close)
	defer stop()

	go s.writePump()
	s.log.Debug("Session started")

	s.readLoop(ctx)
	s.Close()

	// The store may still need to mark the user offline during shutdown.
	s.router.Disconnect(context.WithoutCancel(ctx), s)
	<-s.writerDone
	s.log.Debug("Session ended", "username", s.Username())
}

func (s *Session) readLoop(ctx context.Context) {
	assembler := s.codec.NewAssembler()
	buf := make([]byte, readBufferSize)

	for {
		if s.idleTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		n, err := s.conn.Read(buf)
		if n > 0 {
			envs, feedErr := assembler.Feed(buf[:n])
			for _, env := range envs {
				if s.isClosed() {
					return
				}
				s.router.Handle(ctx, s, env)
			}
			if feedErr != nil {
				s.metrics.FramingErrors.Inc()
				s.log.Warn("Framing error, closing session", "error", feedErr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Debug("Read stopped", "error", err)
			}
			return
		}
	}
}

func (s *Session) writePump() {
	defer close(s.writerDone)
	defer s.conn.Close()

	for {
		select {
		case env := <-s.outbound:
			if !s.write(env) {
				s.Close()
				return
			}
		case <-s.done:
			for {
				select {
				case env := <-s.outbound:
					if !s.write(env) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (s *Session) write(env protocol.Envelope) bool {
	frame, err := s.codec.Encode(env)
	if err != nil {
		s.log.Error("Dropping unencodable frame", "type", env.Type.String(), "error", err)
		return true
	}
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if _, err := s.conn.Write(frame); err != nil {
		s.log.Debug("Write failed", "error", err)
		return false
	}
	s.metrics.FramesOut.WithLabelValues(env.Type.String()).Inc()
	return true
}
