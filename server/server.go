// Package server accepts relay connections and runs one Session per client.
package server

import (
	"chat-relay/observability"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/net/netutil"
)

const acceptRetryDelay = 50 * time.Millisecond

// Server is the listener worker. Run binds addr itself so that the
// supervisor can restart it; tests call Serve with their own listener.
type Server struct {
	log            *slog.Logger
	addr           string
	router         *Router
	metrics        *observability.Metrics
	health         *observability.HealthServer // optional
	session        SessionConfig
	maxConnections int

	wg sync.WaitGroup
}

func NewServer(
	log *slog.Logger,
	addr string,
	router *Router,
	metrics *observability.Metrics,
	health *observability.HealthServer,
	session SessionConfig,
	maxConnections int,
) *Server {
	return &Server{
		log:            log,
		addr:           addr,
		router:         router,
		metrics:        metrics,
		health:         health,
		session:        session,
		maxConnections: maxConnections,
	}
}

func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts on listener until ctx ends, then waits for every session
// to finish. Sessions are closed through their own context.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if s.maxConnections > 0 {
		listener = netutil.LimitListener(listener, s.maxConnections)
	}
	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	s.setServing(true)
	defer s.setServing(false)
	s.log.Info("Relay listening", "addr", listener.Addr().String(), "max_connections", s.maxConnections)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info("Relay stopping, waiting for sessions")
				s.wg.Wait()
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.log.Warn("Accept timeout", "error", err)
				time.Sleep(acceptRetryDelay)
				continue
			}
			_ = listener.Close()
			return fmt.Errorf("accept: %w", err)
		}

		session := NewSession(s.log, conn, s.router, s.metrics, s.session)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			session.Run(ctx)
		}()
	}
}

func (s *Server) setServing(serving bool) {
	if s.health != nil {
		s.health.SetServing(serving)
	}
}
