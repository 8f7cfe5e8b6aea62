// Package grpc serves the standard gRPC health protocol. The server reports
// SERVING only while the database schema is at the head revision known to
// this build.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/judoassistant/tournament-sync/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside the overall ("") status.
const ServiceName = "tournament-sync"

// DefaultCheckInterval is how often the schema revision is re-read.
const DefaultCheckInterval = 30 * time.Second

// SchemaChecker reports whether the schema is at head. *migrate.Engine
// satisfies it.
type SchemaChecker interface {
	AtHead(ctx context.Context) (bool, error)
}

type GRPCServer struct {
	address  string
	schema   SchemaChecker
	interval time.Duration
	logger   logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, schema SchemaChecker, interval time.Duration) *GRPCServer {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &GRPCServer{
		address:  a,
		schema:   schema,
		interval: interval,
		logger:   l.With("module", "grpc_server"),
	}
}

// refresh sets the serving status of hs from the current schema revision.
func (s *GRPCServer) refresh(ctx context.Context, hs *health.Server) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING

	ok, err := s.schema.AtHead(ctx)
	switch {
	case err != nil:
		s.logger.Warn(ctx, "schema check failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	case !ok:
		s.logger.Warn(ctx, "schema is not at head")
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	hs.SetServingStatus("", status)
	hs.SetServingStatus(ServiceName, status)
	return status
}

func (s *GRPCServer) watch(ctx context.Context, hs *health.Server) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx, hs)
		}
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := grpc.NewServer()

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	s.refresh(ctx, hs)

	go s.watch(ctx, hs)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		hs.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
