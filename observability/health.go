package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name reported by the gRPC health service.
const ServiceName = "chat-relay"

// HealthServer answers grpc.health.v1.Health checks for the relay.
type HealthServer struct {
	log    *slog.Logger
	addr   string
	health *health.Server
}

func NewHealthServer(log *slog.Logger, addr string) *HealthServer {
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{log: log, addr: addr, health: hs}
}

// SetServing flips the reported status of the relay service.
func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(ServiceName, status)
}

func (h *HealthServer) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("health listen on %s: %w", h.addr, err)
	}
	return h.Serve(ctx, listener)
}

func (h *HealthServer) Serve(ctx context.Context, listener net.Listener) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, h.health)

	stop := context.AfterFunc(ctx, func() {
		h.health.Shutdown()
		srv.GracefulStop()
	})
	defer stop()

	h.log.Info("gRPC health server listening", "address", listener.Addr().String())
	if err := srv.Serve(listener); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
