package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SessionLister is the read side of the registry the admin API shows.
type SessionLister interface {
	Online() []string
	Count() int
}

type HealthResponse struct {
	Status    string `json:"status"`
	Sessions  int    `json:"sessions"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

type SessionsResponse struct {
	Count     int      `json:"count"`
	Usernames []string `json:"usernames"`
}

// AdminServer serves /metrics, /healthz and /sessions over HTTP.
type AdminServer struct {
	log      *slog.Logger
	addr     string
	metrics  *Metrics
	sessions SessionLister
	started  time.Time
}

func NewAdminServer(log *slog.Logger, addr string, metrics *Metrics, sessions SessionLister) *AdminServer {
	return &AdminServer{log: log, addr: addr, metrics: metrics, sessions: sessions, started: time.Now()}
}

func (a *AdminServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(a.metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", a.health)
	r.Get("/sessions", a.listSessions)
	return r
}

// Run serves until ctx ends. A listen failure is returned so the
// supervisor can retry.
func (a *AdminServer) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("admin listen on %s: %w", a.addr, err)
	}
	return a.Serve(ctx, listener)
}

func (a *AdminServer) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{Handler: a.Router(), ReadHeaderTimeout: 5 * time.Second}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	a.log.Info("Admin server listening", "address", listener.Addr().String())
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *AdminServer) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Sessions:  a.sessions.Count(),
		Uptime:    time.Since(a.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *AdminServer) listSessions(w http.ResponseWriter, _ *http.Request) {
	usernames := a.sessions.Online()
	if usernames == nil {
		usernames = []string{}
	}
	writeJSON(w, http.StatusOK, SessionsResponse{Count: len(usernames), Usernames: usernames})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
