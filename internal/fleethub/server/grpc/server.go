// Package grpc serves the standard gRPC health protocol for the hub.
package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/autopeer-io/fleethub/pkg/log"
	"github.com/autopeer-io/fleethub/pkg/options"
)

// ServiceName is the health service name reported next to the overall ("") status.
const ServiceName = "fleethub.v1.Hub"

const healthInterval = 2 * time.Second

// ReadyCheck returns nil when a dependency is usable.
type ReadyCheck func() error

type Server struct {
	server  *grpc.Server
	health  *health.Server
	checks  []ReadyCheck
	options *options.GrpcOptions
}

func NewServer(opts *options.GrpcOptions, checks ...ReadyCheck) (*Server, error) {
	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s) // Enable grpc_cli support

	srv := &Server{
		server:  s,
		health:  hs,
		checks:  checks,
		options: opts,
	}
	srv.refreshHealth()
	return srv, nil
}

func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve runs the server on lis until ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	log.Info("Starting gRPC Server", "addr", lis.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case err := <-errCh:
			return err
		case <-ticker.C:
			s.refreshHealth()
		case <-ctx.Done():
			s.health.Shutdown()
			stopped := make(chan struct{})
			go func() {
				s.server.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-time.After(s.options.Timeout):
				s.server.Stop()
			}
			return nil
		}
	}
}

func (s *Server) refreshHealth() {
	status := healthpb.HealthCheckResponse_SERVING
	for _, check := range s.checks {
		if err := check(); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			break
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
