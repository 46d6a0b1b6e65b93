package grpcx

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer is the gRPC side-channel every service exposes so peers can
// check it without going through the HTTP API.
type HealthServer struct {
	srv    *grpc.Server
	health *health.Server
	logger *slog.Logger
	addr   string
}

func NewHealthServer(addr string, logger *slog.Logger) *HealthServer {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(UnaryServerRequestIDInterceptor(), UnaryServerRecoveryInterceptor(logger)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &HealthServer{srv: srv, health: hs, logger: logger, addr: addr}
}

// SetServing flips the overall ("") status; readiness checks call it.
func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
}

// Run serves until ctx is cancelled, then stops gracefully.
func (h *HealthServer) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", h.addr, err)
	}
	h.SetServing(true)

	go func() {
		<-ctx.Done()
		h.health.Shutdown()
		h.srv.GracefulStop()
	}()

	h.logger.Info("grpc health server starting", "addr", lis.Addr().String())
	return h.srv.Serve(lis)
}

// HealthCheck returns a readiness check for a peer's health service.
func HealthCheck(conn *grpc.ClientConn) func(context.Context) error {
	client := healthpb.NewHealthClient(conn)
	return func(ctx context.Context) error {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
		if err != nil {
			return err
		}
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			return fmt.Errorf("peer status %s", resp.GetStatus())
		}
		return nil
	}
}
