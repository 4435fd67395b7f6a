package api

import (
	"LogFlowSketcher/internal/model"
	"net"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// CounterServicePrefix prefixes the per-counter service names reported by
// the health server, e.g. "logflow.counter.endpoints".
const CounterServicePrefix = "logflow.counter."

// HealthServer serves the standard grpc.health.v1 service with an overall
// status ("") and one status per counter.
type HealthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
}

// NewHealthServer creates a health server reporting every task as serving.
func NewHealthServer(tasks []model.Task) *HealthServer {
	hs := health.NewServer()
	for _, t := range tasks {
		hs.SetServingStatus(CounterServicePrefix+t.Name(), healthpb.HealthCheckResponse_SERVING)
	}
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	return &HealthServer{grpcServer: s, health: hs}
}

// Serve accepts connections on lis until Stop is called.
func (h *HealthServer) Serve(lis net.Listener) error {
	log.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server listening")
	return h.grpcServer.Serve(lis)
}

// Stop marks every service as not serving and stops the server.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpcServer.GracefulStop()
}
