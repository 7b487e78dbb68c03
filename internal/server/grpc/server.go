// Package grpc serves utterance recording over gRPC.
package grpc

import (
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/emmett/utter/internal/observe"
)

// Server wraps the gRPC server and services
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	port       int
	logger     *slog.Logger
}

// Config holds server configuration
type Config struct {
	Port int
}

// NewServer creates a gRPC server exposing recorder and the health service
func NewServer(cfg Config, recorder Recorder, logger *slog.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = observe.Discard()
	}
	logger = logger.With("component", "grpc")

	s := &Server{
		grpcServer: grpc.NewServer(opts...),
		health:     health.NewServer(),
		port:       cfg.Port,
		logger:     logger,
	}

	RegisterListenerServer(s.grpcServer, NewListenerService(recorder, logger))
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return s
}

// Start listens on the configured port and serves until Stop
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.grpcServer.Serve(lis)
}

// Stop marks the service not serving and drains in-flight calls
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
