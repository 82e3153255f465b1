package handler

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthServer exposes grpc.health.v1 for the stock service. It starts
// NOT_SERVING; the process flips it once the stock store answers a ping.
type HealthServer struct {
	srv *health.Server
}

func NewHealthServer() *HealthServer {
	srv := health.NewServer()
	srv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{srv: srv}
}

// Register attaches health and reflection to grpcSrv. Call before Serve.
func (h *HealthServer) Register(grpcSrv *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(grpcSrv, h.srv)
	reflection.Register(grpcSrv)
}

func (h *HealthServer) SetServing() {
	h.srv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
}

func (h *HealthServer) SetNotServing() {
	h.srv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}
